package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadcapture/internal/app"
	"leadcapture/internal/email"
	"leadcapture/internal/ratelimit"
	"leadcapture/internal/util"
	"leadcapture/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                     *app.App
	Sender                  email.Sender
	DeepgramLiveURL         string
	DeepgramAPIKey          string
	RedisAddr               string
	RedisPassword           string
	ScanRateLimitPerMinute  int
	AudioRateLimitPerMinute int
	EmailRateLimitPerMinute int
	MaxUploadBytes          int64
	EnableDevRoutes         bool
}

// Server exposes the HTTP API.
type Server struct {
	app             *app.App
	sender          email.Sender
	mux             *http.ServeMux
	maxUploadBytes  int64
	deepgramLiveURL string
	deepgramAPIKey  string
	enableDevRoutes bool
	scanLimiter     *ratelimit.FixedWindowLimiter
	audioLimiter    *ratelimit.FixedWindowLimiter
	emailLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	scanLimit := cfg.ScanRateLimitPerMinute
	if scanLimit <= 0 {
		scanLimit = 30
	}
	audioLimit := cfg.AudioRateLimitPerMinute
	if audioLimit <= 0 {
		audioLimit = 10
	}
	emailLimit := cfg.EmailRateLimitPerMinute
	if emailLimit <= 0 {
		emailLimit = 10
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "leadcapture:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	scanLimiter, err := newLimiter("scan", scanLimit)
	if err != nil {
		return nil, err
	}
	audioLimiter, err := newLimiter("audio", audioLimit)
	if err != nil {
		return nil, err
	}
	emailLimiter, err := newLimiter("email", emailLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:             cfg.App,
		sender:          cfg.Sender,
		mux:             http.NewServeMux(),
		maxUploadBytes:  normalizeMaxBytes(cfg.MaxUploadBytes),
		deepgramLiveURL: cfg.DeepgramLiveURL,
		deepgramAPIKey:  cfg.DeepgramAPIKey,
		enableDevRoutes: cfg.EnableDevRoutes,
		scanLimiter:     scanLimiter,
		audioLimiter:    audioLimiter,
		emailLimiter:    emailLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/v1/sessions", s.handleSessions)
	s.mux.HandleFunc("/v1/sessions/", s.handleSessionByID)

	s.mux.HandleFunc("/v1/card/ocr", s.handleCardOCR)
	s.mux.HandleFunc("/v1/audio/upload", s.handleAudioUpload)
	s.mux.HandleFunc("/v1/deepgram", s.handleAudioUpload)
	s.mux.HandleFunc("/v1/summarize", s.handleSummarize)
	s.mux.HandleFunc("/v1/email/send", s.handleEmailSend)
	s.mux.HandleFunc("/v1/leads", s.handleLeads)

	s.mux.HandleFunc("/ws/audio", s.handleAudioRelay)

	if s.enableDevRoutes {
		s.mux.HandleFunc("/v1/dev/mock-interactions", s.handleMockInteractions)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /v1/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	session, err := s.app.CreateSession(req.Notes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// /v1/sessions/{id}, /v1/sessions/{id}/summary, /v1/sessions/{id}/email
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "summary":
			s.handleSessionSummary(w, r, id)
		case "email":
			s.handleSessionEmails(w, r, id)
		default:
			http.NotFound(w, r)
		}
		return
	}
	switch r.Method {
	case http.MethodGet:
		session, err := s.app.GetSession(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	case http.MethodDelete:
		if err := s.app.DeleteSession(id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	session, err := s.app.GetSession(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": session.ID,
		"transcript": session.Transcript,
		"summary":    session.Summary,
	})
}

func (s *Server) handleSessionEmails(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if _, err := s.app.GetSession(id); err != nil {
		writeAppError(w, err)
		return
	}
	emails, err := s.app.SessionEmails(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": emails,
		"count": len(emails),
	})
}

// POST /v1/card/ocr
func (s *Server) handleCardOCR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.scanLimiter, "too many card scans") {
		return
	}
	sessionID, filename, contentType, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	result, err := s.app.ScanCard(r.Context(), sessionID, filename, contentType, data)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// POST /v1/audio/upload and POST /v1/deepgram
func (s *Server) handleAudioUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.audioLimiter, "too many audio submissions") {
		return
	}
	sessionID, filename, contentType, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	result, err := s.app.SubmitAudio(r.Context(), sessionID, filename, contentType, data)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /v1/summarize
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req summarizeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" && req.SessionID != "" {
		session, err := s.app.GetSession(req.SessionID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		transcript = strings.TrimSpace(session.Transcript)
	}
	if transcript == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "transcript or session_id with a stored transcript is required")
		return
	}
	summary := s.app.Summarize(r.Context(), transcript)
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// POST /v1/email/send
func (s *Server) handleEmailSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.emailLimiter, "too many email sends") {
		return
	}
	var req sendEmailRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.To) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "to is required")
		return
	}
	if s.sender == nil || !s.sender.Configured() {
		writeError(w, http.StatusServiceUnavailable, "email_unconfigured", "email delivery is not configured")
		return
	}
	subject, body, htmlBody := req.Subject, req.Body, ""
	if strings.TrimSpace(body) != "" {
		htmlBody = app.TextToHTML(body)
	} else {
		// No explicit content: deliver the latest generated follow-up.
		if _, err := s.app.GetSession(req.SessionID); err != nil {
			writeAppError(w, err)
			return
		}
		mail, err := s.app.LatestEmail(req.SessionID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		subject, body, htmlBody = mail.Subject, mail.Body, mail.HTMLBody
	}
	result, err := s.sender.Send(r.Context(), req.To, subject, body, htmlBody)
	if err != nil {
		if result != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"status": "delivery_failed",
				"error":  result.Error,
			})
			return
		}
		writeError(w, http.StatusBadGateway, "delivery_failed", "email provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "sent",
		"message_id": result.MessageID,
	})
}

// GET /v1/leads?session_id=
func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id query parameter is required")
		return
	}
	leads, err := s.app.ListLeads(sessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": leads,
		"count": len(leads),
	})
}

// POST /v1/dev/mock-interactions
func (s *Server) handleMockInteractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req []domain.LeadInteraction
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := s.app.SeedInteractions(req); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"count": len(req)})
}

// readUpload parses the multipart form shared by the card and audio
// endpoints: a "file" part plus a "session_id" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (sessionID, filename, contentType string, data []byte, ok bool) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return "", "", "", nil, false
	}
	sessionID = r.FormValue("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return "", "", "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "file is required (field: file)")
		return "", "", "", nil, false
	}
	defer file.Close()
	data, err = io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "could not read upload")
		return "", "", "", nil, false
	}
	contentType = header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return sessionID, header.Filename, contentType, data, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

type createSessionRequest struct {
	Notes string `json:"notes"`
}

type summarizeRequest struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
}

type sendEmailRequest struct {
	SessionID string `json:"session_id"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"status": code, "error": msg})
}

// writeAppError maps pipeline errors onto the HTTP error contract. The
// "status" field is machine-checkable; "error" is for humans.
func writeAppError(w http.ResponseWriter, err error) {
	var valErr *app.ValidationError
	var formatErr *app.UpstreamFormatError
	var classErr *app.ClassificationError
	switch {
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, "invalid_request", valErr.Error())
	case errors.Is(err, app.ErrNoCardDetected):
		writeError(w, http.StatusUnprocessableEntity, "no_card_detected", err.Error())
	case errors.Is(err, app.ErrNoTranscript):
		writeError(w, http.StatusUnprocessableEntity, "no_transcript", err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.As(err, &formatErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status":     "upstream_format_error",
			"error":      formatErr.Error(),
			"raw_output": formatErr.Raw,
		})
	case errors.As(err, &classErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status":     "classification_failed",
			"error":      classErr.Error(),
			"raw_output": classErr.Raw,
		})
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 20 * 1024 * 1024
	}
	return value
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "rate_limited", msg)
	return false
}
