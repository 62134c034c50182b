package temporal

import (
	"strings"
	"testing"
	"time"
)

func TestFeelBuckets(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{5, "early dawn"},
		{8, "early dawn"},
		{9, "morning"},
		{12, "midday"},
		{17, "evening descent"},
		{21, "deep evening"},
		{23, "deep evening"},
		{0, "hollow hours"},
		{4, "hollow hours"},
	}
	for _, c := range cases {
		got := Feel(c.hour)
		if !strings.Contains(got, c.want) {
			t.Errorf("Feel(%d) = %q, want substring %q", c.hour, got, c.want)
		}
	}
}

func TestAbsence(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := Absence(now, nil); got != "First encounter." {
		t.Errorf("nil lastSeen: got %q", got)
	}

	cases := []struct {
		ago  time.Duration
		want string
	}{
		{2 * time.Minute, "Continuing an active conversation."},
		{30 * time.Minute, "Returned after 30 minutes of silence."},
		{5 * time.Hour, "Returned after 5.0 hours away."},
		{48 * time.Hour, "Returned after 2.0 days of absence."},
		{30 * 24 * time.Hour, "Returned after 30 days — a long silence."},
	}
	for _, c := range cases {
		seen := now.Add(-c.ago)
		if got := Absence(now, &seen); got != c.want {
			t.Errorf("Absence(-%v) = %q, want %q", c.ago, got, c.want)
		}
	}
}

func TestBlockSections(t *testing.T) {
	now := time.Date(2025, 6, 1, 22, 30, 0, 0, time.UTC)
	block := Block(now, nil)

	for _, want := range []string{
		"[TEMPORAL CONTEXT]",
		"Current time: Sunday, 10:30 PM",
		"deep evening",
		"First encounter.",
	} {
		if !strings.Contains(block, want) {
			t.Errorf("block missing %q:\n%s", want, block)
		}
	}
}
