// Package memory renders context blocks from stored state and applies
// a model turn's memory edits back to the store.
package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/firmament/internal/mood"
	"github.com/nidhogg/firmament/internal/relation"
	"github.com/nidhogg/firmament/internal/store"
	"github.com/nidhogg/firmament/internal/temporal"
)

const uncertainBelow = 0.5

// Build renders the full context block for a prompted interaction:
// temporal framing, entity state, relationship standing, then the memory
// section (facts, recent history, current thread). lastSeen is the user's
// previous sighting, captured before the relationship update stamped a
// fresh one; nil means first contact.
func Build(snap *store.ContextSnapshot, now time.Time, lastSeen *time.Time) string {
	var b strings.Builder

	b.WriteString(temporal.Block(now, lastSeen))
	b.WriteString("\n")
	b.WriteString(mood.Describe(snap.Entity))
	b.WriteString("\n")
	b.WriteString(relation.Describe(snap.UserName, relationRow(snap.Relationship), now))

	fmt.Fprintf(&b, "\n=== MEMORY: %s ===\n", snap.UserName)

	b.WriteString("[KNOWN FACTS]\n- ")
	b.WriteString(formatFacts(snap.Facts))
	b.WriteString("\n\n[RECENT HISTORY]\n")
	b.WriteString(formatEpisodes(snap.Episodes))
	b.WriteString("\n\n[CURRENT THREAD]\n")
	if snap.HasWorking {
		b.WriteString(snap.Working)
	} else {
		b.WriteString("No active thread.")
	}
	b.WriteString("\n=== END MEMORY ===\n")

	return b.String()
}

// BuildAmbient renders the lighter block behind unprompted interjections:
// temporal, entity state, the last ambient utterances (so the model does
// not repeat itself) and whatever channel chatter the caller captured.
func BuildAmbient(entity mood.State, recent []store.AmbientEntry, channelActivity string, now time.Time) string {
	var b strings.Builder

	b.WriteString(temporal.Block(now, nil))
	b.WriteString("\n")
	b.WriteString(mood.Describe(entity))
	b.WriteString("\n")

	if len(recent) > 0 {
		b.WriteString("Recent ambient utterances (DO NOT repeat these):\n")
		for _, e := range recent {
			msg := e.Message
			if runes := []rune(msg); len(runes) > 80 {
				msg = string(runes[:80])
			}
			fmt.Fprintf(&b, "  - %q\n", msg)
		}
	}

	if channelActivity != "" {
		fmt.Fprintf(&b, "\n[RECENT CHANNEL ACTIVITY]\n%s\n", channelActivity)
	}

	return b.String()
}

func formatFacts(facts []store.Fact) string {
	if len(facts) == 0 {
		return "No data yet."
	}
	lines := make([]string, len(facts))
	for i, f := range facts {
		line := f.Text
		if f.MemoryType != "fact" {
			line += fmt.Sprintf(" [%s]", f.MemoryType)
		}
		if f.Confidence < uncertainBelow {
			line += " (uncertain)"
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n- ")
}

func formatEpisodes(episodes []store.Episode) string {
	if len(episodes) == 0 {
		return "No prior encounters."
	}
	lines := make([]string, len(episodes))
	for i, e := range episodes {
		lines[i] = fmt.Sprintf("[%s] %s", e.Timestamp.Format("2006-01-02 15:04"), e.Summary)
	}
	return strings.Join(lines, "\n")
}

func relationRow(r *store.RelationshipRow) *relation.Row {
	if r == nil {
		return nil
	}
	return &relation.Row{
		UserName:         r.UserName,
		FirstSeen:        r.FirstSeen,
		LastSeen:         r.LastSeen,
		InteractionCount: r.InteractionCount,
		DepthScore:       r.DepthScore,
		Tone:             r.Tone,
	}
}
