package app

import (
	"sort"
	"strings"
)

// ExtractEmails splits a raw email field into a deduplicated, sorted list.
// Values are comma-separated on cards that carry more than one address.
// Emails are lower-cased before dedup; entries without an "@" are dropped.
func ExtractEmails(raw string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		email := strings.ToLower(strings.TrimSpace(part))
		if email == "" || !strings.Contains(email, "@") {
			continue
		}
		if !seen[email] {
			seen[email] = true
			out = append(out, email)
		}
	}
	sort.Strings(out)
	return out
}

// ExtractPhones splits a raw phone field into a deduplicated, sorted list.
// Digits and formatting are preserved as printed on the card.
func ExtractPhones(raw string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		phone := strings.TrimSpace(part)
		if phone == "" {
			continue
		}
		if !seen[phone] {
			seen[phone] = true
			out = append(out, phone)
		}
	}
	sort.Strings(out)
	return out
}
