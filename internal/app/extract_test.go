package app

import (
	"errors"
	"testing"
)

func payloadValue(p CardPayload, key string) any {
	for _, entry := range p {
		if entry.Key == key {
			return entry.Value
		}
	}
	return nil
}

func TestNormalizeFieldsAliases(t *testing.T) {
	for _, key := range []string{"full name", "FullName", "fullname", "Name"} {
		fields := NormalizeFields(CardPayload{{Key: key, Value: "Jane Doe"}})
		if fields.Name != "Jane Doe" {
			t.Fatalf("key %q: name = %q, want Jane Doe", key, fields.Name)
		}
		if len(fields.CustomFields) != 0 {
			t.Fatalf("key %q: custom fields should be empty, got %v", key, fields.CustomFields)
		}
	}

	fields := NormalizeFields(CardPayload{
		{Key: "org", Value: "Acme Corp"},
		{Key: "designation", Value: "CTO"},
		{Key: "mobile", Value: "+1 555 0100"},
		{Key: "site", Value: "acme.example"},
		{Key: "location", Value: "12 Main St"},
	})
	if fields.Company != "Acme Corp" || fields.JobTitle != "CTO" || fields.Phone != "+1 555 0100" {
		t.Fatalf("alias resolution failed: %+v", fields)
	}
	if fields.Website != "acme.example" || fields.Address != "12 Main St" {
		t.Fatalf("alias resolution failed: %+v", fields)
	}
}

func TestNormalizeFieldsLastAliasWins(t *testing.T) {
	fields := NormalizeFields(CardPayload{
		{Key: "Phone", Value: "+1 111"},
		{Key: "Mobile", Value: "+2 222"},
	})
	if fields.Phone != "+2 222" {
		t.Fatalf("phone = %q, want the later alias to win", fields.Phone)
	}

	// The same payload must resolve identically through the decoder,
	// however many times it runs.
	for i := 0; i < 50; i++ {
		payload, err := DecodeCardPayload(`{"Phone": "+1 111", "Mobile": "+2 222"}`)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got := NormalizeFields(payload).Phone; got != "+2 222" {
			t.Fatalf("run %d: phone = %q, want +2 222", i, got)
		}
	}
}

func TestNormalizeFieldsLaterFalsyKeepsEarlierValue(t *testing.T) {
	fields := NormalizeFields(CardPayload{
		{Key: "phone", Value: "+1 555 0100"},
		{Key: "mobile", Value: ""},
	})
	if fields.Phone != "+1 555 0100" {
		t.Fatalf("phone = %q, falsy value should not overwrite", fields.Phone)
	}
}

func TestNormalizeFieldsSkipsFalsyValues(t *testing.T) {
	fields := NormalizeFields(CardPayload{
		{Key: "name", Value: ""},
		{Key: "email", Value: []any{}},
		{Key: "phone", Value: nil},
		{Key: "company", Value: "   "},
	})
	if fields.Name != "" || fields.Email != "" || fields.Phone != "" || fields.Company != "" {
		t.Fatalf("falsy values should not populate canonical fields: %+v", fields)
	}
	if len(fields.CustomFields) != 0 {
		t.Fatalf("falsy values should not land in custom fields: %v", fields.CustomFields)
	}
	if fields.CustomFields == nil {
		t.Fatalf("custom fields must be a map even when empty")
	}
}

func TestNormalizeFieldsOverflow(t *testing.T) {
	fields := NormalizeFields(CardPayload{
		{Key: "name", Value: "Jane Doe"},
		{Key: "Twitter", Value: "@janedoe"},
		{Key: "fax", Value: "555-0199"},
		{Key: "custom_fields", Value: map[string]any{"linkedin": "in/janedoe"}},
	})
	if fields.CustomFields["Twitter"] != "@janedoe" {
		t.Fatalf("unknown key should keep its original spelling, got %v", fields.CustomFields)
	}
	if fields.CustomFields["fax"] != "555-0199" {
		t.Fatalf("fax should land in overflow, got %v", fields.CustomFields)
	}
	if fields.CustomFields["linkedin"] != "in/janedoe" {
		t.Fatalf("nested custom_fields should merge, got %v", fields.CustomFields)
	}
}

func TestNormalizeFieldsListAndNumericValues(t *testing.T) {
	fields := NormalizeFields(CardPayload{
		{Key: "emails", Value: []any{"a@x.com", "b@y.com"}},
		{Key: "floor", Value: float64(3)},
		{Key: "verified", Value: true},
	})
	if fields.Email != "a@x.com, b@y.com" {
		t.Fatalf("list value should join with commas, got %q", fields.Email)
	}
	if fields.CustomFields["floor"] != "3" {
		t.Fatalf("numeric overflow = %q, want 3", fields.CustomFields["floor"])
	}
	if fields.CustomFields["verified"] != "true" {
		t.Fatalf("bool overflow = %q, want true", fields.CustomFields["verified"])
	}
}

func TestDecodeCardPayloadStripsFences(t *testing.T) {
	raw := "```json\n{\"name\": \"Jane Doe\", \"company\": \"Acme\"}\n```"
	payload, err := DecodeCardPayload(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payloadValue(payload, "name") != "Jane Doe" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestDecodeCardPayloadExtractsBraceBlock(t *testing.T) {
	raw := "Here is the extracted data:\n{\"name\": \"Jane {Doe}\", \"note\": \"a \\\"quoted\\\" value\"}\nLet me know if you need more."
	payload, err := DecodeCardPayload(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payloadValue(payload, "name") != "Jane {Doe}" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestDecodeCardPayloadPreservesDocumentOrder(t *testing.T) {
	payload, err := DecodeCardPayload(`{"phone": "+1 111", "email": "a@x.com", "phone": "+2 222"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"phone", "email", "phone"}
	if len(payload) != len(want) {
		t.Fatalf("payload = %v, want %d entries", payload, len(want))
	}
	for i, key := range want {
		if payload[i].Key != key {
			t.Fatalf("entry %d key = %q, want %q", i, payload[i].Key, key)
		}
	}
}

func TestDecodeCardPayloadNoCardSentinel(t *testing.T) {
	_, err := DecodeCardPayload(`{"message": "No card or text detected"}`)
	if !errors.Is(err, ErrNoCardDetected) {
		t.Fatalf("expected ErrNoCardDetected, got %v", err)
	}
}

func TestDecodeCardPayloadMessageWithExtraKeys(t *testing.T) {
	_, err := DecodeCardPayload(`{"message": "No card or text detected", "confidence": 0.9}`)
	if !errors.Is(err, ErrNoCardDetected) {
		t.Fatalf("expected ErrNoCardDetected, got %v", err)
	}
}

func TestDecodeCardPayloadUnparseable(t *testing.T) {
	_, err := DecodeCardPayload("sorry, I could not read the image")
	var formatErr *UpstreamFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected UpstreamFormatError, got %v", err)
	}
	if formatErr.Raw == "" {
		t.Fatalf("format error should carry the raw response")
	}
}
