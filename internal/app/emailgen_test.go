package app

import (
	"strings"
	"testing"
)

func TestTextToHTML(t *testing.T) {
	got := TextToHTML("Hi Jane,\nGreat meeting you & the team.\nWarmly, The Team")
	if !strings.HasPrefix(got, "<html><body>") || !strings.HasSuffix(got, "</body></html>") {
		t.Fatalf("html wrapper missing: %q", got)
	}
	if !strings.Contains(got, "Hi Jane,<br>Great meeting you &amp; the team.<br>Warmly, The Team") {
		t.Fatalf("newlines or escaping wrong: %q", got)
	}
}

func TestBuildEmailPromptIncludesContext(t *testing.T) {
	fields := testFields().ParsedFields()
	prompt := buildEmailPrompt("Jane Doe", "we talked about onboarding flows", fields)
	if !strings.Contains(prompt, "Hi Jane Doe,") {
		t.Fatalf("prompt missing greeting instruction:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Job Title: CTO") || !strings.Contains(prompt, "Company: Acme Corp") {
		t.Fatalf("prompt missing lead info:\n%s", prompt)
	}
	if !strings.Contains(prompt, "we talked about onboarding flows") {
		t.Fatalf("prompt missing transcript:\n%s", prompt)
	}
}
