package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadcapture/internal/transcribe"
	"leadcapture/internal/util"
	"leadcapture/pkg/ai"
	"leadcapture/pkg/domain"
	"leadcapture/pkg/storage"
	"leadcapture/pkg/store"
)

// Transcriber converts a complete audio recording into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, contentType string, audio []byte) (string, error)
}

// App wires the lead-capture pipeline: card scans through extraction,
// normalization, matching, and classification into persisted leads; audio
// through transcription, summarization, and follow-up email generation.
type App struct {
	store       store.Store
	objects     storage.ObjectStore
	generator   ai.TextGenerator
	extractor   ai.CardExtractor
	transcriber Transcriber
	classifier  *Classifier
	logger      *slog.Logger
}

// Options configures App construction.
type Options struct {
	Store          store.Store
	Objects        storage.ObjectStore
	Generator      ai.TextGenerator
	Extractor      ai.CardExtractor
	Transcriber    Transcriber
	ClassifierMode string
	CompanyName    string
	CompanyContext string
	Logger         *slog.Logger
}

// New constructs the application core.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mode := opts.ClassifierMode
	if mode == "" {
		mode = ModeTag
	}
	return &App{
		store:       opts.Store,
		objects:     opts.Objects,
		generator:   opts.Generator,
		extractor:   opts.Extractor,
		transcriber: opts.Transcriber,
		classifier:  NewClassifier(opts.Generator, mode, opts.CompanyName, opts.CompanyContext),
		logger:      logger,
	}
}

// ScanResult is the outcome of one card scan.
type ScanResult struct {
	Lead      domain.Lead `json:"lead"`
	LeadCount int         `json:"lead_count"`
}

// AudioResult is the outcome of one audio submission.
type AudioResult struct {
	Session domain.Session            `json:"session"`
	Email   *domain.PersonalizedEmail `json:"personalized_email,omitempty"`
}

func validateSessionID(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return validationErr("session_id", "must be a valid UUID")
	}
	return nil
}

// CreateSession mints a fresh session with a server-generated identifier.
func (a *App) CreateSession(notes string) (domain.Session, error) {
	session := domain.Session{
		ID:        uuid.NewString(),
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveSession(session); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// GetSession returns a session by id.
func (a *App) GetSession(sessionID string) (domain.Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return domain.Session{}, err
	}
	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession removes a session record. Leads and emails that reference
// the session stay behind; they are standalone records.
func (a *App) DeleteSession(sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	_, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return a.store.DeleteSession(sessionID)
}

// ensureSession creates the session lazily on first use.
func (a *App) ensureSession(sessionID string) (domain.Session, error) {
	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	if ok {
		return session, nil
	}
	session = domain.Session{ID: sessionID, CreatedAt: time.Now().UTC()}
	if err := a.store.SaveSession(session); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// ScanCard runs the full card pipeline. Storage, extraction, and
// classification failures abort the scan; interaction matching and
// activity counting degrade gracefully.
func (a *App) ScanCard(ctx context.Context, sessionID, filename, contentType string, image []byte) (ScanResult, error) {
	if err := validateSessionID(sessionID); err != nil {
		return ScanResult{}, err
	}
	if !strings.HasPrefix(contentType, "image/") {
		return ScanResult{}, validationErr("file", "content type must be image/*")
	}
	if len(image) == 0 {
		return ScanResult{}, validationErr("file", "empty image upload")
	}

	key := "images/" + util.NewID() + path.Ext(filename)
	imageURL, err := a.objects.Put(ctx, key, bytes.NewReader(image), int64(len(image)), contentType)
	if err != nil {
		return ScanResult{}, fmt.Errorf("store card image: %w", err)
	}

	raw, err := a.extractor.ExtractCard(ctx, cardPrompt, contentType, image)
	if err != nil {
		return ScanResult{}, fmt.Errorf("card extraction: %w", err)
	}
	payload, err := DecodeCardPayload(raw)
	if err != nil {
		return ScanResult{}, err
	}
	fields := NormalizeFields(payload)
	emails := ExtractEmails(fields.Email)
	phones := ExtractPhones(fields.Phone)

	if _, err := a.ensureSession(sessionID); err != nil {
		return ScanResult{}, err
	}

	existingCustomer := false
	if len(emails) > 0 || len(phones) > 0 {
		existingCustomer, err = a.store.HasLeadContact(emails, phones)
		if err != nil {
			return ScanResult{}, fmt.Errorf("existing customer lookup: %w", err)
		}
	}

	interactions := a.matchInteractions(emails, phones, fields.Name, fields.Company)
	activityCount := a.countContactActivity(emails, phones)

	judgment, err := a.classifier.Classify(ctx, fields, emails, phones, interactions, activityCount)
	if err != nil {
		return ScanResult{}, err
	}

	lead := domain.Lead{
		ID:               util.NewID(),
		SessionID:        sessionID,
		ImageURL:         imageURL,
		Emails:           emails,
		Phones:           phones,
		Tag:              judgment.Tag,
		InterestScore:    judgment.Score,
		InterestReason:   judgment.Reason,
		ExistingCustomer: existingCustomer,
		ParsedFields:     fields.ParsedFields(),
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.store.SaveLead(lead); err != nil {
		return ScanResult{}, fmt.Errorf("save lead: %w", err)
	}

	count, err := a.store.CountLeadsBySession(sessionID)
	if err != nil {
		a.logger.Warn("lead count failed", "session_id", sessionID, "error", err)
		count = 0
	}
	return ScanResult{Lead: lead, LeadCount: count}, nil
}

// SubmitAudio runs the audio pipeline: store the artifact, transcribe,
// summarize, upsert the session (last transcript wins), and generate a
// follow-up email when the session has a named lead.
func (a *App) SubmitAudio(ctx context.Context, sessionID, filename, contentType string, audio []byte) (AudioResult, error) {
	if err := validateSessionID(sessionID); err != nil {
		return AudioResult{}, err
	}
	if len(audio) == 0 {
		return AudioResult{}, validationErr("file", "empty audio upload")
	}

	key := "audio/" + util.NewID() + path.Ext(filename)
	audioURL, err := a.objects.Put(ctx, key, bytes.NewReader(audio), int64(len(audio)), contentType)
	if err != nil {
		return AudioResult{}, fmt.Errorf("store audio: %w", err)
	}

	transcript, err := a.transcriber.Transcribe(ctx, contentType, audio)
	if err != nil {
		if errors.Is(err, transcribe.ErrEmptyTranscript) {
			return AudioResult{}, ErrNoTranscript
		}
		return AudioResult{}, fmt.Errorf("transcription: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return AudioResult{}, ErrNoTranscript
	}

	summary := a.Summarize(ctx, transcript)

	session, err := a.ensureSession(sessionID)
	if err != nil {
		return AudioResult{}, err
	}
	session.Transcript = transcript
	session.Summary = summary
	session.AudioURL = audioURL
	if err := a.store.SaveSession(session); err != nil {
		return AudioResult{}, fmt.Errorf("update session: %w", err)
	}

	result := AudioResult{Session: session}

	lead, ok, err := a.store.FirstNamedLead(sessionID)
	if err != nil {
		a.logger.Warn("named lead lookup failed, skipping follow-up email", "session_id", sessionID, "error", err)
		return result, nil
	}
	if !ok {
		a.logger.Info("no named lead for session, skipping follow-up email", "session_id", sessionID)
		return result, nil
	}

	body, htmlBody := a.GenerateFollowUpEmail(ctx, lead.ParsedFields.FullName, transcript, lead.ParsedFields)
	mail := domain.PersonalizedEmail{
		ID:        util.NewID(),
		SessionID: sessionID,
		Subject:   fmt.Sprintf("Great connecting with you, %s!", lead.ParsedFields.FullName),
		Body:      body,
		HTMLBody:  htmlBody,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SavePersonalizedEmail(mail); err != nil {
		return AudioResult{}, fmt.Errorf("save follow-up email: %w", err)
	}
	result.Email = &mail
	return result, nil
}

// ListLeads returns all leads captured in a session, oldest first.
func (a *App) ListLeads(sessionID string) ([]domain.Lead, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	leads, err := a.store.ListLeadsBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

// SessionEmails returns all follow-up emails generated for a session.
func (a *App) SessionEmails(sessionID string) ([]domain.PersonalizedEmail, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	emails, err := a.store.ListEmailsBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return emails, nil
}

// LatestEmail returns the most recent follow-up generated for a session.
func (a *App) LatestEmail(sessionID string) (domain.PersonalizedEmail, error) {
	emails, err := a.SessionEmails(sessionID)
	if err != nil {
		return domain.PersonalizedEmail{}, err
	}
	if len(emails) == 0 {
		return domain.PersonalizedEmail{}, validationErr("session_id", "no follow-up email generated for session")
	}
	latest := emails[0]
	for _, e := range emails[1:] {
		if e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	return latest, nil
}

// SeedInteractions stores historical interaction records, assigning ids
// where absent. Used by the development fixture endpoint.
func (a *App) SeedInteractions(interactions []domain.LeadInteraction) error {
	for _, it := range interactions {
		if it.ID == "" {
			it.ID = util.NewID()
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = time.Now().UTC()
		}
		if err := a.store.SaveInteraction(it); err != nil {
			return fmt.Errorf("save interaction: %w", err)
		}
	}
	return nil
}

// IsNotFound reports whether err maps to a missing-resource condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
