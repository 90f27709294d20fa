package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("verbose")
	require.False(t, ok)
}

func TestBuildFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := Build(Options{Level: "warn", Console: &buf})
	require.NoError(t, err)
	defer closeFn()

	log.Infow("hidden")
	log.Warnw("dashboard refresh failed", "trigger", "schedule")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "dashboard refresh failed")
	require.Contains(t, out, "schedule")
}

func TestBuildWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarmdash.log")
	log, closeFn, err := Build(Options{Level: "info", File: path, MaxSizeMB: 1, Console: &bytes.Buffer{}})
	require.NoError(t, err)

	log.Infow("alarm transition applied", "alarm_id", 7)
	closeFn()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	require.Equal(t, "alarm transition applied", entry["msg"])
	require.EqualValues(t, 7, entry["alarm_id"])
}

func TestBuildRejectsUnknownLevel(t *testing.T) {
	_, _, err := Build(Options{Level: "loud"})
	require.Error(t, err)
}
