package store

import (
	"testing"
	"time"

	"leadcapture/pkg/domain"
)

func seedInteractions(t *testing.T, m *MemoryStore) {
	t.Helper()
	records := []domain.LeadInteraction{
		{ID: "i1", Emails: []string{"jane@acme.com"}, Name: "Jane Doe", Company: "Acme", Summary: "demo call in March"},
		{ID: "i2", Phones: []string{"+1 555 0100"}, Name: "John Roe", Company: "Globex", Summary: "booth visit"},
		{ID: "i3", Company: "Initech", Summary: "newsletter signup"},
	}
	for _, rec := range records {
		if err := m.SaveInteraction(rec); err != nil {
			t.Fatalf("save interaction: %v", err)
		}
	}
}

func TestMatchInteractionSummariesByEmail(t *testing.T) {
	m := NewMemoryStore()
	seedInteractions(t, m)

	got, err := m.MatchInteractionSummaries([]string{"jane@acme.com"}, nil, "", "")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(got) != 1 || got[0] != "demo call in March" {
		t.Fatalf("summaries = %v", got)
	}
}

func TestMatchInteractionSummariesNameOrCompany(t *testing.T) {
	m := NewMemoryStore()
	seedInteractions(t, m)

	// Both name and company supplied: either may match.
	got, err := m.MatchInteractionSummaries(nil, nil, "Jane Doe", "Globex")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("summaries = %v, want matches on name and on company", got)
	}
}

func TestMatchInteractionSummariesCompanyOnly(t *testing.T) {
	m := NewMemoryStore()
	seedInteractions(t, m)

	got, err := m.MatchInteractionSummaries(nil, nil, "", "Initech")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(got) != 1 || got[0] != "newsletter signup" {
		t.Fatalf("summaries = %v, want exact company match only", got)
	}
}

func TestMatchInteractionSummariesNoIdentity(t *testing.T) {
	m := NewMemoryStore()
	seedInteractions(t, m)

	got, err := m.MatchInteractionSummaries(nil, []string{""}, "", "")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("no identity fields should yield no matches, got %v", got)
	}
}

func TestCountLeadsByContact(t *testing.T) {
	m := NewMemoryStore()
	leads := []domain.Lead{
		{ID: "l1", SessionID: "s1", Emails: []string{"jane@acme.com"}},
		{ID: "l2", SessionID: "s2", Emails: []string{"jane@acme.com"}, Phones: []string{"+1 555 0100"}},
		{ID: "l3", SessionID: "s3", Emails: []string{"other@x.com"}},
	}
	for _, l := range leads {
		if err := m.SaveLead(l); err != nil {
			t.Fatalf("save lead: %v", err)
		}
	}

	count, err := m.CountLeadsByContact([]string{"jane@acme.com"}, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	has, err := m.HasLeadContact(nil, []string{"+1 555 0100"})
	if err != nil || !has {
		t.Fatalf("has = %v (err %v), want true", has, err)
	}

	count, err = m.CountLeadsByContact(nil, nil)
	if err != nil || count != 0 {
		t.Fatalf("empty identity should count zero without scanning, got %d (err %v)", count, err)
	}
}

func TestFirstNamedLead(t *testing.T) {
	m := NewMemoryStore()
	_ = m.SaveLead(domain.Lead{ID: "l1", SessionID: "s1", ParsedFields: domain.ParsedFields{CustomFields: map[string]string{}}})
	_ = m.SaveLead(domain.Lead{ID: "l2", SessionID: "s1", ParsedFields: domain.ParsedFields{FullName: "Jane Doe", CustomFields: map[string]string{}}})

	lead, ok, err := m.FirstNamedLead("s1")
	if err != nil || !ok {
		t.Fatalf("first named lead: ok=%v err=%v", ok, err)
	}
	if lead.ID != "l2" {
		t.Fatalf("lead = %q, want the oldest lead with a name", lead.ID)
	}

	if _, ok, _ := m.FirstNamedLead("s2"); ok {
		t.Fatalf("session without leads should report no named lead")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	session := domain.Session{ID: "s1", Notes: "booth 12", CreatedAt: time.Now()}
	if err := m.SaveSession(session); err != nil {
		t.Fatalf("save: %v", err)
	}
	session.Transcript = "updated"
	if err := m.SaveSession(session); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok, err := m.GetSession("s1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Transcript != "updated" || got.Notes != "booth 12" {
		t.Fatalf("session = %+v", got)
	}
	if err := m.DeleteSession("s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := m.GetSession("s1"); ok {
		t.Fatalf("session should be gone")
	}
}
