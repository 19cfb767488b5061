package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"leadcapture/pkg/domain"
	"leadcapture/pkg/store"
)

type stubExtractor struct {
	response string
	err      error
}

func (s *stubExtractor) ExtractCard(_ context.Context, _, _ string, _ []byte) (string, error) {
	return s.response, s.err
}

type stubTranscriber struct {
	transcript string
	err        error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ string, _ []byte) (string, error) {
	return s.transcript, s.err
}

type stubObjects struct {
	keys []string
}

func (s *stubObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	_, _ = io.ReadAll(r)
	s.keys = append(s.keys, key)
	return "https://objects.local/" + key, nil
}

func (s *stubObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.local/" + key, nil
}

func (s *stubObjects) Delete(_ context.Context, _ string) error { return nil }

const sessionA = "6f1c2f66-0db0-4c32-9e38-8a4f24c2a001"
const sessionB = "6f1c2f66-0db0-4c32-9e38-8a4f24c2a002"

const janeCard = "```json\n{\"Full Name\": \"Jane Doe\", \"Company\": \"Acme\", \"Title\": \"CTO\", " +
	"\"Email\": \"jane@acme.com, bad-email\", \"Phone\": \"+1 555 0100\", \"Twitter\": \"@janedoe\"}\n```"

func newTestApp(st store.Store, gen *scriptedGenerator, ext *stubExtractor, tr *stubTranscriber) *App {
	return New(Options{
		Store:       st,
		Objects:     &stubObjects{},
		Generator:   gen,
		Extractor:   ext,
		Transcriber: tr,
		CompanyName: "Delightloop",
	})
}

func TestScanCardPipeline(t *testing.T) {
	st := store.NewMemoryStore()
	gen := &scriptedGenerator{responses: []string{`{"tag": "hot"}`}}
	a := newTestApp(st, gen, &stubExtractor{response: janeCard}, nil)

	result, err := a.ScanCard(context.Background(), sessionA, "card.png", "image/png", []byte{0x89})
	if err != nil {
		t.Fatalf("scan card: %v", err)
	}
	lead := result.Lead
	if lead.ParsedFields.FullName != "Jane Doe" || lead.ParsedFields.Company != "Acme" {
		t.Fatalf("parsed fields = %+v", lead.ParsedFields)
	}
	if len(lead.Emails) != 1 || lead.Emails[0] != "jane@acme.com" {
		t.Fatalf("emails = %v, want [jane@acme.com]", lead.Emails)
	}
	if len(lead.Phones) != 1 || lead.Phones[0] != "+1 555 0100" {
		t.Fatalf("phones = %v", lead.Phones)
	}
	if lead.ParsedFields.CustomFields["Twitter"] != "@janedoe" {
		t.Fatalf("custom fields = %v", lead.ParsedFields.CustomFields)
	}
	if lead.Tag != domain.TagHot {
		t.Fatalf("tag = %q, want hot", lead.Tag)
	}
	if lead.ExistingCustomer {
		t.Fatalf("first scan should not be an existing customer")
	}
	if lead.ImageURL == "" {
		t.Fatalf("image URL should be set")
	}
	if result.LeadCount != 1 {
		t.Fatalf("lead count = %d, want 1", result.LeadCount)
	}
	if _, ok, _ := st.GetSession(sessionA); !ok {
		t.Fatalf("session should have been created lazily")
	}
}

func TestScanCardNoCardDetected(t *testing.T) {
	st := store.NewMemoryStore()
	ext := &stubExtractor{response: `{"message": "No card or text detected"}`}
	a := newTestApp(st, &scriptedGenerator{}, ext, nil)

	_, err := a.ScanCard(context.Background(), sessionA, "wall.png", "image/png", []byte{0x89})
	if !errors.Is(err, ErrNoCardDetected) {
		t.Fatalf("expected ErrNoCardDetected, got %v", err)
	}
	leads, _ := st.ListLeadsBySession(sessionA)
	if len(leads) != 0 {
		t.Fatalf("no lead should be persisted, got %d", len(leads))
	}
}

func TestScanCardClassificationFailureBlocksPersistence(t *testing.T) {
	st := store.NewMemoryStore()
	gen := &scriptedGenerator{responses: []string{"nope", "still nope"}}
	a := newTestApp(st, gen, &stubExtractor{response: janeCard}, nil)

	_, err := a.ScanCard(context.Background(), sessionA, "card.png", "image/png", []byte{0x89})
	var classErr *ClassificationError
	if !errors.As(err, &classErr) {
		t.Fatalf("expected ClassificationError, got %v", err)
	}
	leads, _ := st.ListLeadsBySession(sessionA)
	if len(leads) != 0 {
		t.Fatalf("classification failure must block lead persistence, got %d leads", len(leads))
	}
}

func TestScanCardExistingCustomerAcrossSessions(t *testing.T) {
	st := store.NewMemoryStore()
	gen := &scriptedGenerator{responses: []string{`{"tag": "warm"}`, `{"tag": "hot"}`}}
	a := newTestApp(st, gen, &stubExtractor{response: janeCard}, nil)

	first, err := a.ScanCard(context.Background(), sessionA, "card.png", "image/png", []byte{0x89})
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if first.Lead.ExistingCustomer {
		t.Fatalf("first scan should not match existing contacts")
	}

	second, err := a.ScanCard(context.Background(), sessionB, "card.png", "image/png", []byte{0x89})
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if !second.Lead.ExistingCustomer {
		t.Fatalf("second scan with same email should be an existing customer")
	}
}

func TestScanCardRejectsBadInput(t *testing.T) {
	a := newTestApp(store.NewMemoryStore(), &scriptedGenerator{}, &stubExtractor{}, nil)

	var valErr *ValidationError
	_, err := a.ScanCard(context.Background(), "not-a-uuid", "card.png", "image/png", []byte{0x89})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error for bad session id, got %v", err)
	}
	_, err = a.ScanCard(context.Background(), sessionA, "card.txt", "text/plain", []byte("hello"))
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error for non-image upload, got %v", err)
	}
}

func TestSubmitAudioPipeline(t *testing.T) {
	st := store.NewMemoryStore()
	// Scan first so the session has a named lead, then submit audio.
	gen := &scriptedGenerator{responses: []string{
		`{"tag": "hot"}`,
		"Jane is very interested in onboarding automation.",
		"Hi Jane Doe,\nLoved talking about onboarding automation.\nWarmly, The Team",
	}}
	a := newTestApp(st, gen, &stubExtractor{response: janeCard}, &stubTranscriber{transcript: "we discussed onboarding automation"})

	if _, err := a.ScanCard(context.Background(), sessionA, "card.png", "image/png", []byte{0x89}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	result, err := a.SubmitAudio(context.Background(), sessionA, "note.wav", "audio/wav", []byte{0x00})
	if err != nil {
		t.Fatalf("submit audio: %v", err)
	}
	if result.Session.Transcript != "we discussed onboarding automation" {
		t.Fatalf("transcript = %q", result.Session.Transcript)
	}
	if result.Session.Summary != "Jane is very interested in onboarding automation." {
		t.Fatalf("summary = %q", result.Session.Summary)
	}
	if result.Session.AudioURL == "" {
		t.Fatalf("audio URL should be set")
	}
	if result.Email == nil {
		t.Fatalf("follow-up email should be generated for a named lead")
	}
	if result.Email.HTMLBody == "" || result.Email.Body == "" {
		t.Fatalf("email should carry both renderings: %+v", result.Email)
	}

	emails, err := st.ListEmailsBySession(sessionA)
	if err != nil || len(emails) != 1 {
		t.Fatalf("emails = %v (err %v), want one stored email", emails, err)
	}
}

func TestSubmitAudioWithoutNamedLeadSkipsEmail(t *testing.T) {
	st := store.NewMemoryStore()
	gen := &scriptedGenerator{responses: []string{"a short summary"}}
	a := newTestApp(st, gen, &stubExtractor{}, &stubTranscriber{transcript: "hello there"})

	result, err := a.SubmitAudio(context.Background(), sessionA, "note.wav", "audio/wav", []byte{0x00})
	if err != nil {
		t.Fatalf("submit audio: %v", err)
	}
	if result.Email != nil {
		t.Fatalf("no email expected without a named lead, got %+v", result.Email)
	}
}

func TestSubmitAudioEmptyTranscript(t *testing.T) {
	a := newTestApp(store.NewMemoryStore(), &scriptedGenerator{}, &stubExtractor{}, &stubTranscriber{transcript: "   "})
	_, err := a.SubmitAudio(context.Background(), sessionA, "note.wav", "audio/wav", []byte{0x00})
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestSubmitAudioOverwritesTranscript(t *testing.T) {
	st := store.NewMemoryStore()
	gen := &scriptedGenerator{responses: []string{"first summary", "second summary"}}
	tr := &stubTranscriber{transcript: "first take"}
	a := newTestApp(st, gen, &stubExtractor{}, tr)

	if _, err := a.SubmitAudio(context.Background(), sessionA, "a.wav", "audio/wav", []byte{0x00}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	tr.transcript = "second take"
	result, err := a.SubmitAudio(context.Background(), sessionA, "b.wav", "audio/wav", []byte{0x00})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if result.Session.Transcript != "second take" || result.Session.Summary != "second summary" {
		t.Fatalf("last transcript should win: %+v", result.Session)
	}
	session, ok, _ := st.GetSession(sessionA)
	if !ok || session.Transcript != "second take" {
		t.Fatalf("stored session = %+v", session)
	}
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestApp(store.NewMemoryStore(), &scriptedGenerator{}, &stubExtractor{}, nil)

	session, err := a.CreateSession("booth 12")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	got, err := a.GetSession(session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Notes != "booth 12" {
		t.Fatalf("notes = %q", got.Notes)
	}
	if err := a.DeleteSession(session.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := a.GetSession(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := a.DeleteSession(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func TestSeedInteractionsFeedsMatcher(t *testing.T) {
	st := store.NewMemoryStore()
	gen := &scriptedGenerator{responses: []string{`{"tag": "hot"}`}}
	a := newTestApp(st, gen, &stubExtractor{response: janeCard}, nil)

	err := a.SeedInteractions([]domain.LeadInteraction{
		{Emails: []string{"jane@acme.com"}, Summary: "attended webinar in June"},
	})
	if err != nil {
		t.Fatalf("seed interactions: %v", err)
	}
	if _, err := a.ScanCard(context.Background(), sessionA, "card.png", "image/png", []byte{0x89}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	found := false
	for _, p := range gen.prompts {
		if strings.Contains(p, "attended webinar in June") {
			found = true
		}
	}
	if !found {
		t.Fatalf("classification prompt should include matched interaction summaries")
	}
}
