package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"postgres", "pgx", "PostgreSQL"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		require.True(t, d.IsPostgres())
	}
	d, err := DialectFor("mysql")
	require.NoError(t, err)
	require.False(t, d.IsPostgres())

	_, err = DialectFor("sqlite")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := Dialect{Name: DriverPostgres}
	require.Equal(t,
		"UPDATE t SET status = $1 WHERE id = $2 AND status = $3",
		pg.Rebind("UPDATE t SET status = ? WHERE id = ? AND status = ?"))
	require.Equal(t, "SELECT '?' FROM t WHERE id = $1", pg.Rebind("SELECT '?' FROM t WHERE id = ?"))

	my := Dialect{Name: DriverMySQL}
	require.Equal(t, "SELECT 1 FROM t WHERE id = ?", my.Rebind("SELECT 1 FROM t WHERE id = ?"))
}

func TestNormalizeMySQLDSN(t *testing.T) {
	dsn, err := NormalizeMySQLDSN("user:pass@tcp(localhost:3306)/alarms")
	require.NoError(t, err)
	require.True(t, strings.Contains(dsn, "parseTime=true"), dsn)

	_, err = NormalizeMySQLDSN("not a dsn")
	require.Error(t, err)
}
