package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"leadcapture/pkg/domain"
)

// GORM models used for persistence.
type SessionModel struct {
	ID         string `gorm:"primaryKey"`
	Notes      string `gorm:"type:text"`
	Transcript string `gorm:"type:text"`
	Summary    string `gorm:"type:text"`
	AudioURL   string
	CreatedAt  time.Time `gorm:"not null"`
}

type LeadModel struct {
	ID               string `gorm:"primaryKey"`
	SessionID        string `gorm:"not null;index"`
	ImageURL         string
	Emails           datatypes.JSON `gorm:"type:jsonb"`
	Phones           datatypes.JSON `gorm:"type:jsonb"`
	Tag              string
	InterestScore    *float64
	InterestReason   string         `gorm:"type:text"`
	ExistingCustomer bool           `gorm:"not null"`
	ParsedFields     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time      `gorm:"not null;index"`
}

type InteractionModel struct {
	ID        string         `gorm:"primaryKey"`
	Emails    datatypes.JSON `gorm:"type:jsonb"`
	Phones    datatypes.JSON `gorm:"type:jsonb"`
	Name      string         `gorm:"index"`
	Company   string         `gorm:"index"`
	Summary   string         `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"not null"`
}

type EmailModel struct {
	ID        string    `gorm:"primaryKey"`
	SessionID string    `gorm:"not null;index"`
	Subject   string    `gorm:"not null"`
	Body      string    `gorm:"type:text;not null"`
	HTMLBody  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}

func sessionToModel(s domain.Session) SessionModel {
	return SessionModel{
		ID:         s.ID,
		Notes:      s.Notes,
		Transcript: s.Transcript,
		Summary:    s.Summary,
		AudioURL:   s.AudioURL,
		CreatedAt:  s.CreatedAt,
	}
}

func sessionFromModel(m SessionModel) domain.Session {
	return domain.Session{
		ID:         m.ID,
		Notes:      m.Notes,
		Transcript: m.Transcript,
		Summary:    m.Summary,
		AudioURL:   m.AudioURL,
		CreatedAt:  m.CreatedAt,
	}
}

func leadToModel(l domain.Lead) (LeadModel, error) {
	emails, err := jsonList(l.Emails)
	if err != nil {
		return LeadModel{}, err
	}
	phones, err := jsonList(l.Phones)
	if err != nil {
		return LeadModel{}, err
	}
	parsed, err := json.Marshal(l.ParsedFields)
	if err != nil {
		return LeadModel{}, err
	}
	return LeadModel{
		ID:               l.ID,
		SessionID:        l.SessionID,
		ImageURL:         l.ImageURL,
		Emails:           emails,
		Phones:           phones,
		Tag:              string(l.Tag),
		InterestScore:    l.InterestScore,
		InterestReason:   l.InterestReason,
		ExistingCustomer: l.ExistingCustomer,
		ParsedFields:     parsed,
		CreatedAt:        l.CreatedAt,
	}, nil
}

func leadFromModel(m LeadModel) domain.Lead {
	lead := domain.Lead{
		ID:               m.ID,
		SessionID:        m.SessionID,
		ImageURL:         m.ImageURL,
		Emails:           listFromJSON(m.Emails),
		Phones:           listFromJSON(m.Phones),
		Tag:              domain.LeadTag(m.Tag),
		InterestScore:    m.InterestScore,
		InterestReason:   m.InterestReason,
		ExistingCustomer: m.ExistingCustomer,
		CreatedAt:        m.CreatedAt,
	}
	if len(m.ParsedFields) > 0 {
		_ = json.Unmarshal(m.ParsedFields, &lead.ParsedFields)
	}
	if lead.ParsedFields.CustomFields == nil {
		lead.ParsedFields.CustomFields = map[string]string{}
	}
	return lead
}

func interactionToModel(i domain.LeadInteraction) (InteractionModel, error) {
	emails, err := jsonList(i.Emails)
	if err != nil {
		return InteractionModel{}, err
	}
	phones, err := jsonList(i.Phones)
	if err != nil {
		return InteractionModel{}, err
	}
	return InteractionModel{
		ID:        i.ID,
		Emails:    emails,
		Phones:    phones,
		Name:      i.Name,
		Company:   i.Company,
		Summary:   i.Summary,
		CreatedAt: i.CreatedAt,
	}, nil
}

func emailToModel(e domain.PersonalizedEmail) EmailModel {
	return EmailModel{
		ID:        e.ID,
		SessionID: e.SessionID,
		Subject:   e.Subject,
		Body:      e.Body,
		HTMLBody:  e.HTMLBody,
		CreatedAt: e.CreatedAt,
	}
}

func emailFromModel(m EmailModel) domain.PersonalizedEmail {
	return domain.PersonalizedEmail{
		ID:        m.ID,
		SessionID: m.SessionID,
		Subject:   m.Subject,
		Body:      m.Body,
		HTMLBody:  m.HTMLBody,
		CreatedAt: m.CreatedAt,
	}
}

func jsonList(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func listFromJSON(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}
