package alarms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("")
	require.NoError(t, err)
	require.Equal(t, WindowRecent, w)

	w, err = ParseWindow(" Older ")
	require.NoError(t, err)
	require.Equal(t, WindowOlder, w)

	_, err = ParseWindow("week")
	require.ErrorIs(t, err, ErrValidation)
}

func TestWindowsPartitionAroundCutoff(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cutoff := Cutoff(now)
	require.True(t, cutoff.Equal(now.Add(-24*time.Hour)))

	for _, at := range []time.Time{
		now,
		cutoff,
		cutoff.Add(time.Nanosecond),
		cutoff.Add(-time.Nanosecond),
		now.Add(-72 * time.Hour),
	} {
		require.NotEqual(t, WindowRecent.Contains(at, cutoff), WindowOlder.Contains(at, cutoff), at)
	}
	require.True(t, WindowRecent.Contains(cutoff, cutoff))
	require.True(t, WindowOlder.Contains(cutoff.Add(-time.Nanosecond), cutoff))
}
