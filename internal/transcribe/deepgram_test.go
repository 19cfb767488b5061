package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleResponse = `{
	"results": {
		"channels": [
			{"alternatives": [{"transcript": "hello from the booth", "confidence": 0.98}]}
		]
	}
}`

func TestParseTranscript(t *testing.T) {
	got, err := ParseTranscript([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("parse transcript: %v", err)
	}
	if got != "hello from the booth" {
		t.Fatalf("transcript = %q, want %q", got, "hello from the booth")
	}
}

func TestParseTranscriptEmpty(t *testing.T) {
	_, err := ParseTranscript([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":""}]}]}}`))
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
	_, err = ParseTranscript([]byte(`{"results":{"channels":[]}}`))
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript for no channels, got %v", err)
	}
}

func TestTranscribeSendsAuthAndContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token dg-key" {
			t.Errorf("authorization = %q, want Token dg-key", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/wav" {
			t.Errorf("content-type = %q, want audio/wav", got)
		}
		if got := r.URL.Query().Get("punctuate"); got != "true" {
			t.Errorf("punctuate = %q, want true", got)
		}
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "dg-key")
	transcript, err := client.Transcribe(context.Background(), "audio/wav", []byte{0x00, 0x01})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if transcript != "hello from the booth" {
		t.Fatalf("transcript = %q", transcript)
	}
}

func TestTranscribeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "dg-key")
	if _, err := client.Transcribe(context.Background(), "audio/wav", []byte{0x00}); err == nil {
		t.Fatalf("expected error on upstream 401")
	}
}
