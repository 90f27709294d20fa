package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config describes a database connection pool.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// Dialect captures the SQL differences between the supported drivers.
type Dialect struct {
	Name string
}

// DialectFor returns the dialect for a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "pgx", "postgresql":
		return Dialect{Name: DriverPostgres}, nil
	case DriverMySQL, "mariadb":
		return Dialect{Name: DriverMySQL}, nil
	default:
		return Dialect{}, fmt.Errorf("database: unsupported driver %q", driver)
	}
}

// IsPostgres reports whether the dialect targets Postgres.
func (d Dialect) IsPostgres() bool {
	return d.Name == DriverPostgres
}

// Rebind rewrites ? placeholders into the dialect's bind form.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.IsPostgres() {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// driverName maps a dialect to the database/sql driver registration.
func (d Dialect) driverName() string {
	if d.IsPostgres() {
		return "pgx"
	}
	return "mysql"
}

// Open opens and pings a pool for cfg.
func Open(ctx context.Context, cfg Config) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, Dialect{}, errors.New("database: empty dsn")
	}
	dsn := cfg.DSN
	if !dialect.IsPostgres() {
		dsn, err = NormalizeMySQLDSN(dsn)
		if err != nil {
			return nil, Dialect{}, err
		}
	}
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("database: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("database: ping: %w", err)
	}
	return db, dialect, nil
}

// NormalizeMySQLDSN forces time parsing in UTC so DATETIME columns scan
// into time.Time values comparable with the Postgres path.
func NormalizeMySQLDSN(dsn string) (string, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database: mysql dsn: %w", err)
	}
	parsed.ParseTime = true
	parsed.Loc = time.UTC
	return parsed.FormatDSN(), nil
}
