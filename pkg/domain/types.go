package domain

import "time"

type LeadTag string

const (
	TagHot  LeadTag = "hot"
	TagWarm LeadTag = "warm"
	TagCold LeadTag = "cold"
)

// ValidTag reports whether the value is one of the known lead tags.
func ValidTag(tag string) bool {
	switch LeadTag(tag) {
	case TagHot, TagWarm, TagCold:
		return true
	}
	return false
}

// Session correlates one scanning conversation: zero or more card scans plus
// an optional recorded audio note. Created lazily on first scan or audio
// submission; audio resubmission overwrites transcript and summary in place.
type Session struct {
	ID         string    `json:"session_id"`
	Notes      string    `json:"notes,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	AudioURL   string    `json:"audio_file_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ParsedFields is the canonical contact record extracted from a card.
// CustomFields holds extractor output that did not map to a known slot;
// it is always a map, never nil, even when empty.
type ParsedFields struct {
	FullName     string            `json:"full_name,omitempty"`
	Company      string            `json:"company,omitempty"`
	JobTitle     string            `json:"job_title,omitempty"`
	Address      string            `json:"address,omitempty"`
	Website      string            `json:"website,omitempty"`
	CustomFields map[string]string `json:"custom_fields"`
}

// Lead is one card scan. Immutable once inserted. Exactly one of Tag or
// InterestScore is populated depending on the classifier mode.
type Lead struct {
	ID               string       `json:"lead_id"`
	SessionID        string       `json:"session_id"`
	ImageURL         string       `json:"image_url,omitempty"`
	Emails           []string     `json:"emails"`
	Phones           []string     `json:"phones"`
	Tag              LeadTag      `json:"tag,omitempty"`
	InterestScore    *float64     `json:"interest_score,omitempty"`
	InterestReason   string       `json:"interest_reason,omitempty"`
	ExistingCustomer bool         `json:"existing_customer"`
	ParsedFields     ParsedFields `json:"parsed_fields"`
	CreatedAt        time.Time    `json:"created_at"`
}

// LeadInteraction is a historical engagement record, read-only from the
// pipeline's perspective. Looked up by exact identity overlap.
type LeadInteraction struct {
	ID        string    `json:"id"`
	Emails    []string  `json:"emails"`
	Phones    []string  `json:"phones"`
	Name      string    `json:"name,omitempty"`
	Company   string    `json:"company,omitempty"`
	Summary   string    `json:"interaction_summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PersonalizedEmail is a generated follow-up tied to a session. Repeated
// audio submissions append additional records; no dedup is enforced.
type PersonalizedEmail struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	HTMLBody  string    `json:"html_body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
