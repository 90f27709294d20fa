package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/auth"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPrintAlarms(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	upper := 38.0
	list := []alarms.Alarm{{
		ID:              7,
		DetectedAt:      time.Date(2026, 4, 20, 12, 30, 0, 0, time.UTC),
		MeasurementName: "Ambient temperature",
		Equipment:       "WS-01",
		AlarmType:       "High",
		ObservedValue:   41.2,
		ReferenceMax:    &upper,
		Unit:            "C",
		Priority:        3,
	}}

	var buf bytes.Buffer
	require.NoError(t, printAlarms(&buf, alarms.WindowRecent, list, loc))
	out := buf.String()
	require.Contains(t, out, "Alarms in the last 24h (1)")
	require.Contains(t, out, "2026-04-20 09:30")
	require.Contains(t, out, "41.2 C")
	require.Contains(t, out, "<= 38")
}

func TestSeedInMemory(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")

	out, err := runCLI(t, "seed")
	require.NoError(t, err)
	require.Contains(t, out, "inserted 8 alarms")
}

func TestAcceptRejectsLongOperator(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")

	_, err := runCLI(t, "alarms", "accept", "1", "--operator", "operator-too-long")
	require.Error(t, err)
	require.True(t, errors.Is(err, alarms.ErrValidation))
}

func TestAcceptMissingAlarm(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")

	out, err := runCLI(t, "alarms", "accept", "1", "--operator", "op1")
	require.ErrorIs(t, err, alarms.ErrNotFound)
	require.Contains(t, out, "no changes made")
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")

	out, err := runCLI(t, "token", "--subject", "maria", "--role", "operator", "--operator", "maria01")
	require.NoError(t, err)

	claims, err := auth.ParseJWT(strings.TrimSpace(out), []byte("cli-secret"))
	require.NoError(t, err)
	require.Equal(t, "maria", claims.Subject)
	require.Equal(t, "maria01", claims.OperatorID)
}
