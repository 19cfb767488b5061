package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"leadcapture/pkg/domain"
)

// cardPrompt instructs the vision model to read a business card.
const cardPrompt = "You are an OCR and information extraction assistant for business and professional cards. " +
	"Extract all relevant information from the card and return it as a JSON object with key-value pairs. " +
	"Keys should be things like name, company, title, email, phone, address, website, etc. " +
	`If the image is not a card or no text is detected, return a JSON like {"message": "No card or text detected"}.`

// fieldAliases maps extractor key variants onto canonical field names.
// Keys are matched after lower-casing, trimming, and removing spaces,
// underscores, and dashes.
var fieldAliases = map[string]string{
	"fullname":     "name",
	"name":         "name",
	"emailaddress": "email",
	"email":        "email",
	"emails":       "email",
	"phone":        "phone",
	"phones":       "phone",
	"phonenumber":  "phone",
	"mobile":       "phone",
	"tel":          "phone",
	"telephone":    "phone",
	"company":      "company",
	"org":          "company",
	"organization": "company",
	"jobtitle":     "job_title",
	"title":        "job_title",
	"designation":  "job_title",
	"role":         "job_title",
	"address":      "address",
	"location":     "address",
	"website":      "website",
	"site":         "website",
	"url":          "website",
	"customfields": "custom_fields",
}

// CardFields is the normalized output of a card extraction: the canonical
// keys are always present, and everything the alias table could not place
// lands in CustomFields under its original key.
type CardFields struct {
	Name         string
	Email        string
	Phone        string
	Company      string
	JobTitle     string
	Address      string
	Website      string
	CustomFields map[string]string
}

// ParsedFields converts the canonical record into the persisted shape.
func (f CardFields) ParsedFields() domain.ParsedFields {
	return domain.ParsedFields{
		FullName:     f.Name,
		Company:      f.Company,
		JobTitle:     f.JobTitle,
		Address:      f.Address,
		Website:      f.Website,
		CustomFields: f.CustomFields,
	}
}

// CardEntry is one raw key/value pair from the extractor's JSON object.
type CardEntry struct {
	Key   string
	Value any
}

// CardPayload holds the extractor's fields in document order, so repeated
// or aliased keys resolve deterministically (last one wins).
type CardPayload []CardEntry

// DecodeCardPayload turns a raw model response into the extractor's field
// list. Markdown code fences and surrounding prose are tolerated; the
// first balanced brace-delimited block is decoded. Returns ErrNoCardDetected
// when the provider answered with its "message" key, regardless of what
// else the object carries.
func DecodeCardPayload(raw string) (CardPayload, error) {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return nil, &UpstreamFormatError{Raw: raw, Err: fmt.Errorf("no JSON object in response")}
	}
	payload, err := decodeOrderedObject(jsonText)
	if err != nil {
		return nil, &UpstreamFormatError{Raw: raw, Err: err}
	}
	for _, entry := range payload {
		if entry.Key == "message" {
			return nil, fmt.Errorf("%w: %v", ErrNoCardDetected, entry.Value)
		}
	}
	return payload, nil
}

// decodeOrderedObject reads a JSON object token by token, keeping the
// keys in the order the document lists them.
func decodeOrderedObject(jsonText string) (CardPayload, error) {
	dec := json.NewDecoder(strings.NewReader(jsonText))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}
	var payload CardPayload
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		payload = append(payload, CardEntry{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return payload, nil
}

// extractJSONObject strips code fences and returns the first balanced
// {...} block, or empty string if none exists.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// NormalizeFields resolves the raw extraction fields onto the canonical
// schema, walking them in document order so later keys overwrite earlier
// ones. Unrecognized keys keep their original spelling in CustomFields;
// empty values are skipped entirely.
func NormalizeFields(payload CardPayload) CardFields {
	fields := CardFields{CustomFields: map[string]string{}}
	for _, entry := range payload {
		key, value := entry.Key, entry.Value
		str, ok := stringify(value)
		if !ok {
			continue
		}
		canonical := fieldAliases[normalizeKey(key)]
		switch canonical {
		case "name":
			fields.Name = str
		case "email":
			fields.Email = str
		case "phone":
			fields.Phone = str
		case "company":
			fields.Company = str
		case "job_title":
			fields.JobTitle = str
		case "address":
			fields.Address = str
		case "website":
			fields.Website = str
		case "custom_fields":
			if nested, ok := value.(map[string]any); ok {
				for k, v := range nested {
					if s, ok := stringify(v); ok {
						fields.CustomFields[k] = s
					}
				}
			} else {
				fields.CustomFields[key] = str
			}
		default:
			fields.CustomFields[key] = str
		}
	}
	return fields
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
}

// stringify flattens an extraction value to a string. Lists join with
// commas, mappings re-encode as JSON. Empty values report ok=false.
func stringify(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case []any:
		if len(v) == 0 {
			return "", false
		}
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := stringify(item); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ", "), true
	case map[string]any:
		if len(v) == 0 {
			return "", false
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	case bool:
		if !v {
			return "", false
		}
		return "true", true
	case float64:
		if v == 0 {
			return "", false
		}
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), true
		}
		return fmt.Sprintf("%g", v), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
