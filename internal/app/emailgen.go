package app

import (
	"context"
	"fmt"
	"html"
	"strings"

	"leadcapture/pkg/domain"
)

// TextToHTML escapes a plain-text body and renders newlines as <br> tags
// inside a minimal HTML document.
func TextToHTML(text string) string {
	escaped := html.EscapeString(text)
	withBreaks := strings.ReplaceAll(escaped, "\n", "<br>")
	return "<html><body>" + withBreaks + "</body></html>"
}

// buildEmailPrompt renders the follow-up email request for one lead.
func buildEmailPrompt(name, transcript string, fields domain.ParsedFields) string {
	var info strings.Builder
	fmt.Fprintf(&info, "Name: %s\n", name)
	writeInfoLine(&info, "Job Title", fields.JobTitle)
	writeInfoLine(&info, "Company", fields.Company)
	writeInfoLine(&info, "Website", fields.Website)
	writeInfoLine(&info, "Address", fields.Address)

	var b strings.Builder
	b.WriteString("You are a helpful assistant writing personalized follow-up emails for a company.\n")
	b.WriteString("Use the user's transcript and the provided information to craft a warm, thoughtful email.\n\n")
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Start with: 'Hi %s,'\n", name)
	b.WriteString("- Write 3-5 friendly, engaging sentences that reflect their experience\n")
	b.WriteString("- Include references to their job title, company, or interests if available\n")
	b.WriteString("- End with a kind sign-off like 'Warmly, The Team'\n")
	b.WriteString("- Output must be plain text only. No HTML. No markdown. No subject line.\n\n")
	fmt.Fprintf(&b, "Context:\n%s\nTranscript:\n%q\n\n", info.String(), transcript)
	b.WriteString("Return only the email body text.")
	return b.String()
}

func writeInfoLine(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

// GenerateFollowUpEmail asks the model for a plain-text body and derives
// the HTML rendering. Model failure degrades to a generic body rather
// than failing the audio pipeline.
func (a *App) GenerateFollowUpEmail(ctx context.Context, name, transcript string, fields domain.ParsedFields) (body, htmlBody string) {
	prompt := buildEmailPrompt(name, transcript, fields)
	raw, err := a.generator.GenerateText(ctx, "", prompt)
	if err != nil || strings.TrimSpace(raw) == "" {
		if err != nil {
			a.logger.Warn("follow-up email generation failed, using fallback", "error", err)
		}
		body = fmt.Sprintf("Hi %s,\n\nThank you for stopping by and chatting with us. We loved hearing about your work and would be glad to continue the conversation.\n\nWarmly, The Team", name)
		return body, TextToHTML(body)
	}
	body = strings.TrimSpace(raw)
	return body, TextToHTML(body)
}
