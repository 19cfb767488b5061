package app

import (
	"reflect"
	"testing"
)

func TestExtractEmails(t *testing.T) {
	got := ExtractEmails("a@x.com, B@Y.com,a@x.com")
	want := []string{"a@x.com", "b@y.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("emails = %v, want %v", got, want)
	}
}

func TestExtractEmailsDropsInvalid(t *testing.T) {
	got := ExtractEmails("jane@acme.com, not-an-email, , www.acme.example")
	want := []string{"jane@acme.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("emails = %v, want %v", got, want)
	}
}

func TestExtractEmailsEmptyInput(t *testing.T) {
	if got := ExtractEmails(""); len(got) != 0 {
		t.Fatalf("emails = %v, want empty", got)
	}
}

func TestExtractPhonesPreservesFormatting(t *testing.T) {
	got := ExtractPhones("+1 (555) 010-0000, +1 (555) 010-0000 , +44 20 7946 0958")
	want := []string{"+1 (555) 010-0000", "+44 20 7946 0958"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("phones = %v, want %v", got, want)
	}
}
