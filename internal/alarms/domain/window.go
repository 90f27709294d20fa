package alarms

import (
	"fmt"
	"strings"
	"time"
)

// Window splits open alarms for display.
type Window string

const (
	WindowRecent Window = "recent"
	WindowOlder  Window = "older"
)

// RecentSpan is the age limit of the recent window.
const RecentSpan = 24 * time.Hour

// ParseWindow validates a window name. Empty input means recent.
func ParseWindow(value string) (Window, error) {
	switch Window(strings.ToLower(strings.TrimSpace(value))) {
	case "", WindowRecent:
		return WindowRecent, nil
	case WindowOlder:
		return WindowOlder, nil
	default:
		return "", &ValidationError{Field: "window", Reason: fmt.Sprintf("unknown window %q", value)}
	}
}

// Windows lists both display windows.
func Windows() []Window {
	return []Window{WindowRecent, WindowOlder}
}

// Cutoff returns the boundary between the two windows for now.
func Cutoff(now time.Time) time.Time {
	return now.UTC().Add(-RecentSpan)
}

// Contains reports whether detectedAt falls inside the window for cutoff.
func (w Window) Contains(detectedAt, cutoff time.Time) bool {
	switch w {
	case WindowRecent:
		return !detectedAt.Before(cutoff)
	case WindowOlder:
		return detectedAt.Before(cutoff)
	default:
		return false
	}
}

// Title is the heading used by exports and the CLI.
func (w Window) Title() string {
	switch w {
	case WindowRecent:
		return "Alarms in the last 24h"
	case WindowOlder:
		return "Older alarms"
	default:
		return string(w)
	}
}
