// Package relation computes the per-user relationship depth score and its
// tone classification. Depth saturates at 1.0 and is monotonic in both the
// interaction count and the number of retained facts.
package relation

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Tone thresholds over the depth score.
const (
	DeepThreshold     = 0.7
	FamiliarThreshold = 0.4
	NascentThreshold  = 0.15
)

// Depth returns min(1, ln(1+count)/5 + 0.02*activeFacts), rounded to three
// decimals as persisted.
func Depth(count, activeFacts int) float64 {
	d := math.Log1p(float64(count))/5.0 + float64(activeFacts)*0.02
	if d > 1.0 {
		d = 1.0
	}
	return math.Round(d*1000) / 1000
}

// Tone classifies a depth score.
func Tone(depth float64) string {
	switch {
	case depth > DeepThreshold:
		return "deep — a recognized presence, spoken to with gravity"
	case depth > FamiliarThreshold:
		return "familiar — acknowledged, given measured attention"
	case depth > NascentThreshold:
		return "nascent — still being assessed, treated with cool formality"
	default:
		return "unknown — a new discordance in the firmament"
	}
}

// Row is the relationship data needed to render a context section.
type Row struct {
	UserName         string
	FirstSeen        time.Time
	LastSeen         time.Time
	InteractionCount int
	DepthScore       float64
	Tone             string
}

// Describe formats the relationship section of a context block.
func Describe(userName string, row *Row, now time.Time) string {
	if row == nil {
		return fmt.Sprintf("[RELATIONSHIP: %s]\nStatus: First contact. An unknown variable.\n", userName)
	}

	tenure := "unknown"
	if !row.FirstSeen.IsZero() {
		days := now.Sub(row.FirstSeen).Hours() / 24
		if days >= 1 {
			tenure = fmt.Sprintf("%.0f days", days)
		} else {
			tenure = "less than a day"
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[RELATIONSHIP: %s]\n", userName)
	fmt.Fprintf(&b, "Interactions: %d | Known for: %s\n", row.InteractionCount, tenure)
	fmt.Fprintf(&b, "Standing: %s\n", row.Tone)
	return b.String()
}
