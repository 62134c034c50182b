// Package temporal derives the time-of-day framing and user absence
// description that open every assembled context block.
package temporal

import (
	"fmt"
	"strings"
	"time"
)

// Feel returns the qualitative framing for an hour of the day.
func Feel(hour int) string {
	switch {
	case hour >= 5 && hour < 9:
		return "early dawn — the world stirs but Raec has not rested"
	case hour >= 9 && hour < 12:
		return "morning — the light is clinical, scrutinizing"
	case hour >= 12 && hour < 17:
		return "midday passage — the star burns overhead, unremarkable"
	case hour >= 17 && hour < 21:
		return "evening descent — shadows lengthen, the audit of the day begins"
	case hour >= 21 && hour < 24:
		return "deep evening — the world quiets, introspection deepens"
	default:
		return "the hollow hours — only the restless and the grieving remain"
	}
}

// Absence describes how long a user has been away. A nil lastSeen means the
// user has never been seen before.
func Absence(now time.Time, lastSeen *time.Time) string {
	if lastSeen == nil || lastSeen.IsZero() {
		return "First encounter."
	}

	gap := now.Sub(*lastSeen)
	hours := gap.Hours()
	switch {
	case hours < 0.1:
		return "Continuing an active conversation."
	case hours < 1:
		return fmt.Sprintf("Returned after %d minutes of silence.", int(gap.Minutes()))
	case hours < 24:
		return fmt.Sprintf("Returned after %.1f hours away.", hours)
	case hours < 168:
		return fmt.Sprintf("Returned after %.1f days of absence.", hours/24)
	default:
		return fmt.Sprintf("Returned after %.0f days — a long silence.", hours/24)
	}
}

// Block formats the full temporal context section.
func Block(now time.Time, lastSeen *time.Time) string {
	var b strings.Builder
	b.WriteString("[TEMPORAL CONTEXT]\n")
	fmt.Fprintf(&b, "Current time: %s\n", now.Format("Monday, 03:04 PM"))
	fmt.Fprintf(&b, "Time feel: %s\n", Feel(now.Hour()))
	fmt.Fprintf(&b, "User presence: %s\n", Absence(now, lastSeen))
	return b.String()
}
