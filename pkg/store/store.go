package store

import "leadcapture/pkg/domain"

// Store defines persistence operations for sessions, leads, interactions,
// and generated follow-up emails.
type Store interface {
	// sessions
	SaveSession(domain.Session) error
	GetSession(id string) (domain.Session, bool, error)
	DeleteSession(id string) error

	// leads
	SaveLead(domain.Lead) error
	ListLeadsBySession(sessionID string) ([]domain.Lead, error)
	CountLeadsBySession(sessionID string) (int, error)
	FirstNamedLead(sessionID string) (domain.Lead, bool, error)
	HasLeadContact(emails, phones []string) (bool, error)
	CountLeadsByContact(emails, phones []string) (int, error)

	// historical interactions
	SaveInteraction(domain.LeadInteraction) error
	MatchInteractionSummaries(emails, phones []string, name, company string) ([]string, error)

	// follow-up emails
	SavePersonalizedEmail(domain.PersonalizedEmail) error
	ListEmailsBySession(sessionID string) ([]domain.PersonalizedEmail, error)
}
