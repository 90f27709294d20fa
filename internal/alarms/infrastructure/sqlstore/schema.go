package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"alarm-dashboard/internal/database"
)

const DefaultTable = "external_alarms"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier rejects table names that cannot be interpolated safely.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("alarm store: invalid table name %q", name)
	}
	return nil
}

func alarmTableDDL(dialect database.Dialect, table string) []string {
	if dialect.IsPostgres() {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	detected_at TIMESTAMPTZ NOT NULL,
	measurement_name VARCHAR(128) NOT NULL,
	equipment VARCHAR(128) NOT NULL DEFAULT '',
	alarm_type VARCHAR(64) NOT NULL,
	observed_value DOUBLE PRECISION NOT NULL,
	reference_min DOUBLE PRECISION NULL,
	reference_max DOUBLE PRECISION NULL,
	unit VARCHAR(32) NOT NULL DEFAULT '',
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	priority INTEGER NOT NULL DEFAULT 0,
	status VARCHAR(16) NOT NULL,
	resolved_at TIMESTAMPTZ NULL,
	resolved_by VARCHAR(10) NULL
)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_status_detected_idx ON %s (status, detected_at)`, table, table),
		}
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	detected_at DATETIME(6) NOT NULL,
	measurement_name VARCHAR(128) NOT NULL,
	equipment VARCHAR(128) NOT NULL DEFAULT '',
	alarm_type VARCHAR(64) NOT NULL,
	observed_value DOUBLE NOT NULL,
	reference_min DOUBLE NULL,
	reference_max DOUBLE NULL,
	unit VARCHAR(32) NOT NULL DEFAULT '',
	duration_minutes INT NOT NULL DEFAULT 0,
	priority INT NOT NULL DEFAULT 0,
	status VARCHAR(16) NOT NULL,
	resolved_at DATETIME(6) NULL,
	resolved_by VARCHAR(10) NULL,
	INDEX %s_status_detected_idx (status, detected_at)
)`, table, table),
	}
}

// Migrate creates the alarm table and its status index when missing.
func Migrate(ctx context.Context, db *sql.DB, dialect database.Dialect, table string) error {
	if db == nil {
		return errors.New("alarm store: nil db")
	}
	if table == "" {
		table = DefaultTable
	}
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	for _, stmt := range alarmTableDDL(dialect, table) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("alarm store: migrate %s: %w", table, err)
		}
	}
	return nil
}
