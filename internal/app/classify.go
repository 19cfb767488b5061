package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"leadcapture/pkg/ai"
	"leadcapture/pkg/domain"
)

// Classifier modes. Tag mode yields a categorical hot/warm/cold label;
// score mode yields a float in [0,1] with a short reason.
const (
	ModeTag   = "tag"
	ModeScore = "score"
)

// defaultCompanyContext describes the company on whose behalf leads are
// judged; overridable through config.
const defaultCompanyContext = "is an AI-powered customer engagement platform that helps SaaS and product-led growth companies\n" +
	"increase user retention, product adoption, and reduce churn using behavior-based workflows, feedback campaigns,\n" +
	"and activation nudges."

// Classification is the decoded judgment for one lead. Exactly one of
// Tag or Score carries the result, depending on the mode.
type Classification struct {
	Tag    domain.LeadTag
	Score  *float64
	Reason string
}

// Classifier renders a lead description into a prompt, asks the model,
// and decodes the answer against a strict schema with one repair re-ask.
type Classifier struct {
	generator      ai.TextGenerator
	mode           string
	companyName    string
	companyContext string
}

// NewClassifier constructs a classifier. mode must be ModeTag or ModeScore.
func NewClassifier(generator ai.TextGenerator, mode, companyName, companyContext string) *Classifier {
	if companyName == "" {
		companyName = "Delightloop"
	}
	if companyContext == "" {
		companyContext = defaultCompanyContext
	}
	return &Classifier{
		generator:      generator,
		mode:           mode,
		companyName:    companyName,
		companyContext: companyContext,
	}
}

// buildPrompt produces the deterministic lead description. Same inputs
// always render the same prompt text.
func (c *Classifier) buildPrompt(fields CardFields, emails, phones, interactions []string, activityCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an intelligent lead classification agent working for **%s**.\n\n", c.companyName)
	fmt.Fprintf(&b, "%s %s\n\n", c.companyName, c.companyContext)
	if c.mode == ModeScore {
		b.WriteString("Your task is to analyze the lead's details and assign an interest score between 0.0 and 1.0,\n")
		b.WriteString("where 1.0 means strong interest match plus prior activity and 0.0 means no relevance, together\n")
		b.WriteString("with a one-sentence reason.\n\n")
	} else {
		b.WriteString("Your task is to analyze the lead's details and assign a tag:\n")
		b.WriteString("- \"hot\": strong interest match + prior activity\n")
		b.WriteString("- \"warm\": some relevance, limited prior signals\n")
		b.WriteString("- \"cold\": weak/no relevance\n\n")
	}
	b.WriteString("Lead Details:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNA(fields.Name))
	fmt.Fprintf(&b, "- Email(s): %s\n", orNA(strings.Join(emails, ", ")))
	fmt.Fprintf(&b, "- Phone(s): %s\n", orNA(strings.Join(phones, ", ")))
	fmt.Fprintf(&b, "- Job title: %s\n", orNA(fields.JobTitle))
	fmt.Fprintf(&b, "- Company: %s\n\n", orNA(fields.Company))
	b.WriteString("Previous Interactions:\n")
	if len(interactions) == 0 {
		b.WriteString("None found\n")
	} else {
		for _, summary := range interactions {
			fmt.Fprintf(&b, "- %s\n", summary)
		}
	}
	fmt.Fprintf(&b, "\nSession Activity Matches: %d\n\n", activityCount)
	b.WriteString("Return only a valid JSON object in this format:\n")
	if c.mode == ModeScore {
		b.WriteString("{\n  \"interest_score\": 0.8,\n  \"reason\": \"short explanation\"\n}\n\n")
	} else {
		b.WriteString("{\n  \"tag\": \"hot\"\n}\n\n")
	}
	b.WriteString("Ensure the output is strictly valid JSON with no explanation or extra text.")
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// Classify runs the two-attempt judge: ask, decode, and on a malformed
// answer re-ask once with the malformed output attached. A second decode
// failure is terminal; the caller must not persist the lead.
func (c *Classifier) Classify(ctx context.Context, fields CardFields, emails, phones, interactions []string, activityCount int) (Classification, error) {
	prompt := c.buildPrompt(fields, emails, phones, interactions, activityCount)

	raw, err := c.generator.GenerateText(ctx, "", prompt)
	if err != nil {
		return Classification{}, fmt.Errorf("classification model call: %w", err)
	}
	result, decodeErr := c.decode(raw)
	if decodeErr == nil {
		return result, nil
	}

	// One repair attempt: show the model its own malformed output.
	repairPrompt := fmt.Sprintf(
		"The following output was supposed to be a valid JSON object but failed to parse:\n\n%s\n\nError: %v\n\n%s",
		raw, decodeErr, prompt)
	raw, err = c.generator.GenerateText(ctx, "", repairPrompt)
	if err != nil {
		return Classification{}, fmt.Errorf("classification repair call: %w", err)
	}
	result, decodeErr = c.decode(raw)
	if decodeErr != nil {
		return Classification{}, &ClassificationError{Raw: raw, Err: decodeErr}
	}
	return result, nil
}

func (c *Classifier) decode(raw string) (Classification, error) {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return Classification{}, fmt.Errorf("no JSON object in model output")
	}
	if c.mode == ModeScore {
		var out struct {
			InterestScore *float64 `json:"interest_score"`
			Reason        string   `json:"reason"`
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(jsonText)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&out); err != nil {
			return Classification{}, fmt.Errorf("decode score: %w", err)
		}
		if out.InterestScore == nil {
			return Classification{}, fmt.Errorf("missing interest_score")
		}
		if *out.InterestScore < 0 || *out.InterestScore > 1 {
			return Classification{}, fmt.Errorf("interest_score %v outside [0,1]", *out.InterestScore)
		}
		if strings.TrimSpace(out.Reason) == "" {
			return Classification{}, fmt.Errorf("missing reason")
		}
		return Classification{Score: out.InterestScore, Reason: out.Reason}, nil
	}

	var out struct {
		Tag string `json:"tag"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(jsonText)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return Classification{}, fmt.Errorf("decode tag: %w", err)
	}
	if !domain.ValidTag(out.Tag) {
		return Classification{}, fmt.Errorf("tag %q is not one of hot/warm/cold", out.Tag)
	}
	return Classification{Tag: domain.LeadTag(out.Tag)}, nil
}
