package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"leadcapture/pkg/domain"
)

const migrateLockID int64 = 52315231

// GormStore implements Store using GORM + Postgres. Lead and interaction
// email/phone lists are jsonb arrays; identity matching uses jsonb
// containment so membership checks stay index-friendly.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&SessionModel{}, &LeadModel{}, &InteractionModel{}, &EmailModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_lead_models_emails ON lead_models USING gin (emails)`).Error; err != nil {
			return fmt.Errorf("create lead email index: %w", err)
		}
		if err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_interaction_models_emails ON interaction_models USING gin (emails)`).Error; err != nil {
			return fmt.Errorf("create interaction email index: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveSession inserts or updates a session in place (last transcript wins).
func (s *GormStore) SaveSession(sess domain.Session) error {
	model := sessionToModel(sess)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"notes", "transcript", "summary", "audio_url"}),
	}).Create(&model).Error
}

// GetSession retrieves a session by its externally supplied identifier.
func (s *GormStore) GetSession(id string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	return sessionFromModel(model), true, nil
}

// DeleteSession removes the session record. Leads and emails keep their
// session reference; they are independently lived.
func (s *GormStore) DeleteSession(id string) error {
	return s.db.Delete(&SessionModel{}, "id = ?", id).Error
}

// SaveLead inserts a lead. Leads have no update path.
func (s *GormStore) SaveLead(l domain.Lead) error {
	model, err := leadToModel(l)
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}
	return s.db.Create(&model).Error
}

// ListLeadsBySession returns leads for a session ordered by creation time.
func (s *GormStore) ListLeadsBySession(sessionID string) ([]domain.Lead, error) {
	var models []LeadModel
	if err := s.db.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Lead, 0, len(models))
	for _, m := range models {
		res = append(res, leadFromModel(m))
	}
	return res, nil
}

// CountLeadsBySession returns the number of leads scanned in a session.
func (s *GormStore) CountLeadsBySession(sessionID string) (int, error) {
	var count int64
	if err := s.db.Model(&LeadModel{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// FirstNamedLead returns the oldest lead in the session that carries a
// full name, used to address the generated follow-up email.
func (s *GormStore) FirstNamedLead(sessionID string) (domain.Lead, bool, error) {
	var models []LeadModel
	if err := s.db.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&models).Error; err != nil {
		return domain.Lead{}, false, err
	}
	for _, m := range models {
		lead := leadFromModel(m)
		if strings.TrimSpace(lead.ParsedFields.FullName) != "" {
			return lead, true, nil
		}
	}
	return domain.Lead{}, false, nil
}

// HasLeadContact reports whether any committed lead shares an email or phone.
func (s *GormStore) HasLeadContact(emails, phones []string) (bool, error) {
	conds, args := contactConds(emails, phones)
	if len(conds) == 0 {
		return false, nil
	}
	var count int64
	if err := s.db.Model(&LeadModel{}).Where(strings.Join(conds, " OR "), args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountLeadsByContact counts committed leads sharing any email or phone.
func (s *GormStore) CountLeadsByContact(emails, phones []string) (int, error) {
	conds, args := contactConds(emails, phones)
	if len(conds) == 0 {
		return 0, nil
	}
	var count int64
	if err := s.db.Model(&LeadModel{}).Where(strings.Join(conds, " OR "), args...).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveInteraction stores a historical interaction record.
func (s *GormStore) SaveInteraction(i domain.LeadInteraction) error {
	model, err := interactionToModel(i)
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	return s.db.Create(&model).Error
}

// MatchInteractionSummaries returns non-empty summaries from interaction
// records whose identity overlaps the supplied fields. Filters are OR'd:
// any email match, any phone match, and name-or-company when both are
// given (name alone / company alone otherwise). No identifying field at
// all performs no query.
func (s *GormStore) MatchInteractionSummaries(emails, phones []string, name, company string) ([]string, error) {
	conds, args := contactConds(emails, phones)
	switch {
	case name != "" && company != "":
		conds = append(conds, "(name = ? OR company = ?)")
		args = append(args, name, company)
	case name != "":
		conds = append(conds, "name = ?")
		args = append(args, name)
	case company != "":
		conds = append(conds, "company = ?")
		args = append(args, company)
	}
	if len(conds) == 0 {
		return nil, nil
	}
	var models []InteractionModel
	if err := s.db.Where(strings.Join(conds, " OR "), args...).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	summaries := make([]string, 0, len(models))
	for _, m := range models {
		if m.Summary != "" {
			summaries = append(summaries, m.Summary)
		}
	}
	return summaries, nil
}

// SavePersonalizedEmail appends a generated follow-up email record.
func (s *GormStore) SavePersonalizedEmail(e domain.PersonalizedEmail) error {
	model := emailToModel(e)
	return s.db.Create(&model).Error
}

// ListEmailsBySession returns generated emails for a session, oldest first.
func (s *GormStore) ListEmailsBySession(sessionID string) ([]domain.PersonalizedEmail, error) {
	var models []EmailModel
	if err := s.db.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.PersonalizedEmail, 0, len(models))
	for _, m := range models {
		res = append(res, emailFromModel(m))
	}
	return res, nil
}

// contactConds builds jsonb containment conditions, one per value, so the
// GIN indexes on the email/phone columns apply.
func contactConds(emails, phones []string) ([]string, []any) {
	var conds []string
	var args []any
	for _, e := range emails {
		if e == "" {
			continue
		}
		conds = append(conds, "emails @> ?")
		args = append(args, jsonElement(e))
	}
	for _, p := range phones {
		if p == "" {
			continue
		}
		conds = append(conds, "phones @> ?")
		args = append(args, jsonElement(p))
	}
	return conds, args
}

func jsonElement(value string) datatypes.JSON {
	raw, _ := json.Marshal([]string{value})
	return datatypes.JSON(raw)
}
