package store

import (
	"strings"
	"sync"

	"leadcapture/pkg/domain"
)

// MemoryStore keeps records in-process. Used by tests and local development;
// query semantics mirror GormStore.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]domain.Session
	leads        []domain.Lead
	interactions []domain.LeadInteraction
	emails       []domain.PersonalizedEmail
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
	}
}

// SaveSession stores or replaces a session record.
func (m *MemoryStore) SaveSession(s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// GetSession retrieves a session by identifier.
func (m *MemoryStore) GetSession(id string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok, nil
}

// DeleteSession removes the session record.
func (m *MemoryStore) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// SaveLead appends a lead in insertion order.
func (m *MemoryStore) SaveLead(l domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = append(m.leads, l)
	return nil
}

// ListLeadsBySession returns leads for a session in insertion order.
func (m *MemoryStore) ListLeadsBySession(sessionID string) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Lead, 0)
	for _, l := range m.leads {
		if l.SessionID == sessionID {
			res = append(res, l)
		}
	}
	return res, nil
}

// CountLeadsBySession returns the number of leads in a session.
func (m *MemoryStore) CountLeadsBySession(sessionID string) (int, error) {
	leads, _ := m.ListLeadsBySession(sessionID)
	return len(leads), nil
}

// FirstNamedLead returns the oldest lead in the session carrying a name.
func (m *MemoryStore) FirstNamedLead(sessionID string) (domain.Lead, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.leads {
		if l.SessionID == sessionID && strings.TrimSpace(l.ParsedFields.FullName) != "" {
			return l, true, nil
		}
	}
	return domain.Lead{}, false, nil
}

// HasLeadContact reports whether any lead shares an email or phone.
func (m *MemoryStore) HasLeadContact(emails, phones []string) (bool, error) {
	count, err := m.CountLeadsByContact(emails, phones)
	return count > 0, err
}

// CountLeadsByContact counts leads sharing any email or phone.
func (m *MemoryStore) CountLeadsByContact(emails, phones []string) (int, error) {
	if len(nonEmpty(emails)) == 0 && len(nonEmpty(phones)) == 0 {
		return 0, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, l := range m.leads {
		if overlaps(l.Emails, emails) || overlaps(l.Phones, phones) {
			count++
		}
	}
	return count, nil
}

// SaveInteraction appends a historical interaction record.
func (m *MemoryStore) SaveInteraction(i domain.LeadInteraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, i)
	return nil
}

// MatchInteractionSummaries applies the same OR filter semantics as the
// Postgres store: email overlap, phone overlap, name-or-company when both
// supplied, exact name or company alone otherwise. No identity, no query.
func (m *MemoryStore) MatchInteractionSummaries(emails, phones []string, name, company string) ([]string, error) {
	emails = nonEmpty(emails)
	phones = nonEmpty(phones)
	if len(emails) == 0 && len(phones) == 0 && name == "" && company == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var summaries []string
	for _, rec := range m.interactions {
		if !interactionMatches(rec, emails, phones, name, company) {
			continue
		}
		if rec.Summary != "" {
			summaries = append(summaries, rec.Summary)
		}
	}
	return summaries, nil
}

// SavePersonalizedEmail appends a generated email record.
func (m *MemoryStore) SavePersonalizedEmail(e domain.PersonalizedEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, e)
	return nil
}

// ListEmailsBySession returns generated emails for a session.
func (m *MemoryStore) ListEmailsBySession(sessionID string) ([]domain.PersonalizedEmail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.PersonalizedEmail, 0)
	for _, e := range m.emails {
		if e.SessionID == sessionID {
			res = append(res, e)
		}
	}
	return res, nil
}

func interactionMatches(rec domain.LeadInteraction, emails, phones []string, name, company string) bool {
	if overlaps(rec.Emails, emails) || overlaps(rec.Phones, phones) {
		return true
	}
	switch {
	case name != "" && company != "":
		return rec.Name == name || rec.Company == company
	case name != "":
		return rec.Name == name
	case company != "":
		return rec.Company == company
	}
	return false
}

func overlaps(stored, supplied []string) bool {
	for _, s := range supplied {
		if s == "" {
			continue
		}
		for _, v := range stored {
			if v == s {
				return true
			}
		}
	}
	return false
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
