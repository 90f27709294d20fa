package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"alarm-dashboard/internal/database"
)

// Repository writes audit logs to alarm_audit_logs.
type Repository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB, dialect database.Dialect) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db, dialect: dialect}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	metadata := string(entry.Metadata)
	if metadata == "" {
		metadata = "{}"
	}

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
INSERT INTO alarm_audit_logs (
	id, actor, subject, role, action, resource_type, resource_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	?,?,?,?,?,?,?,?,?,?,?,?
)`), entry.ID, entry.Actor, entry.Subject, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID,
		metadata, entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt.UTC())
	return err
}

// Migrate creates alarm_audit_logs when missing.
func Migrate(ctx context.Context, db *sql.DB, dialect database.Dialect) error {
	if db == nil {
		return errors.New("audit repo: nil db")
	}
	ddl := `CREATE TABLE IF NOT EXISTS alarm_audit_logs (
	id VARCHAR(64) PRIMARY KEY,
	actor VARCHAR(64) NOT NULL,
	subject VARCHAR(128) NOT NULL DEFAULT '',
	role VARCHAR(32) NOT NULL DEFAULT '',
	action VARCHAR(64) NOT NULL,
	resource_type VARCHAR(64) NOT NULL,
	resource_id VARCHAR(64) NOT NULL,
	metadata TEXT NOT NULL,
	payload_digest VARCHAR(64) NOT NULL DEFAULT '',
	ip VARCHAR(64) NOT NULL DEFAULT '',
	user_agent VARCHAR(512) NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`
	if !dialect.IsPostgres() {
		ddl = `CREATE TABLE IF NOT EXISTS alarm_audit_logs (
	id VARCHAR(64) PRIMARY KEY,
	actor VARCHAR(64) NOT NULL,
	subject VARCHAR(128) NOT NULL DEFAULT '',
	role VARCHAR(32) NOT NULL DEFAULT '',
	action VARCHAR(64) NOT NULL,
	resource_type VARCHAR(64) NOT NULL,
	resource_id VARCHAR(64) NOT NULL,
	metadata TEXT NOT NULL,
	payload_digest VARCHAR(64) NOT NULL DEFAULT '',
	ip VARCHAR(64) NOT NULL DEFAULT '',
	user_agent VARCHAR(512) NOT NULL DEFAULT '',
	created_at DATETIME(6) NOT NULL,
	INDEX alarm_audit_logs_resource_idx (resource_type, resource_id)
)`
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	if dialect.IsPostgres() {
		_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS alarm_audit_logs_resource_idx ON alarm_audit_logs (resource_type, resource_id)`)
		return err
	}
	return nil
}
