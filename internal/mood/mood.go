// Package mood implements the entity's continuous energy/valence state and
// its drift over time. The mood label is a projection of the continuous
// state, recomputed on every drift tick rather than stored as a transition
// table.
package mood

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// State is the agent's global internal state as read from entity_state.
type State struct {
	Energy            float64
	Valence           float64
	Mood              string
	Contemplation     string
	InteractionsToday int
	LastInteraction   *time.Time
	LastAmbient       *time.Time
	LastDrift         *time.Time
}

// Config holds the drift tunables. The values are tuned by inspection, so
// they are configuration rather than invariants.
type Config struct {
	IdleRecoveryPerHour float64 // energy gained per idle hour beyond the first
	BusyThreshold       int     // interactions_today above which energy drains
	BusyDecay           float64 // flat energy drain when busy
	EnergyFloor         float64 // busy drain never goes below this
}

// DefaultConfig returns the observed production values.
func DefaultConfig() Config {
	return Config{
		IdleRecoveryPerHour: 0.05,
		BusyThreshold:       10,
		BusyDecay:           0.02,
		EnergyFloor:         0.1,
	}
}

// Drift advances the state one tick. Energy responds to idleness and load,
// valence decays toward zero with small hour-of-day nudges, and the mood
// label is re-derived. The energy band is checked before the valence band;
// the bands are not disjoint, so the order matters.
func Drift(s State, now time.Time, cfg Config) State {
	if cfg.IdleRecoveryPerHour == 0 {
		cfg = DefaultConfig()
	}

	energy := s.Energy
	valence := s.Valence

	last := now
	if s.LastInteraction != nil {
		last = *s.LastInteraction
	}
	idleHours := now.Sub(last).Hours()
	if idleHours > 1 {
		energy = math.Min(1.0, energy+cfg.IdleRecoveryPerHour*idleHours)
	}
	if s.InteractionsToday > cfg.BusyThreshold {
		energy = math.Max(cfg.EnergyFloor, energy-cfg.BusyDecay)
	}

	hour := now.Hour()
	switch {
	case hour < 5:
		valence = valence*0.9 - 0.05
	case hour < 10:
		valence = valence*0.9 + 0.02
	case hour >= 17 && hour < 22:
		valence = valence*0.9 - 0.02
	default:
		valence = valence * 0.95
	}

	valence = math.Max(-1.0, math.Min(1.0, valence))
	energy = math.Max(0.0, math.Min(1.0, energy))

	out := s
	out.Energy = round3(energy)
	out.Valence = round3(valence)
	out.Mood = Label(energy, valence)
	t := now
	out.LastDrift = &t
	return out
}

// Label projects the continuous state onto a categorical mood.
func Label(energy, valence float64) string {
	if energy < 0.3 {
		if valence < 0 {
			return "withdrawn"
		}
		return "weary"
	}
	if energy > 0.7 {
		if valence >= 0 {
			return "vigilant"
		}
		return "restless"
	}
	switch {
	case valence < -0.3:
		return "somber"
	case valence > 0.3:
		return "sovereign"
	default:
		return "contemplative"
	}
}

// Describe formats the internal-state section of a context block.
func Describe(s State) string {
	energy := s.Energy
	moodLabel := s.Mood
	if moodLabel == "" {
		moodLabel = "contemplative"
	}

	var energyDesc string
	switch {
	case energy > 0.7:
		energyDesc = "The Star-Marrow burns steadily."
	case energy > 0.4:
		energyDesc = "The Star-Marrow simmers at a low ebb."
	default:
		energyDesc = "The Star-Marrow flickers — reserves are thin."
	}

	var b strings.Builder
	b.WriteString("[RAEC INTERNAL STATE]\n")
	fmt.Fprintf(&b, "Mood: %s\n%s\n", moodLabel, energyDesc)
	if s.Contemplation != "" {
		fmt.Fprintf(&b, "Current contemplation: %q\n", s.Contemplation)
	}
	return b.String()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
