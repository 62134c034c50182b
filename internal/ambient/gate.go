package ambient

import (
	"math/rand"
	"sync"
	"time"
)

// GateConfig holds the admission tunables for unprompted speech. Tuned by
// inspection; configuration, not invariant.
type GateConfig struct {
	AmbientCooldown   time.Duration // min gap between ambient utterances
	AmbientBaseChance float64       // scaled by current energy
	EnergyFloor       float64       // below this, ambient never fires
	EavesdropCooldown time.Duration // min gap between interjections per channel
	EavesdropChance   float64
}

// DefaultGateConfig returns the observed production values.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		AmbientCooldown:   45 * time.Minute,
		AmbientBaseChance: 0.08,
		EnergyFloor:       0.25,
		EavesdropCooldown: 180 * time.Second,
		EavesdropChance:   0.15,
	}
}

// Gate performs local admission control before any external "should I
// speak" judgment is requested. It owns the per-channel eavesdrop cooldown
// stamps; the ambient cooldown lives in the persisted entity state and is
// passed in by the caller.
type Gate struct {
	mu        sync.Mutex
	cfg       GateConfig
	interject map[string]time.Time // channelID -> last eavesdrop interjection
	now       func() time.Time
	rand      func() float64
}

// NewGate returns a Gate; zero config values fall back to defaults.
func NewGate(cfg GateConfig) *Gate {
	def := DefaultGateConfig()
	if cfg.AmbientCooldown <= 0 {
		cfg.AmbientCooldown = def.AmbientCooldown
	}
	if cfg.AmbientBaseChance <= 0 {
		cfg.AmbientBaseChance = def.AmbientBaseChance
	}
	if cfg.EnergyFloor <= 0 {
		cfg.EnergyFloor = def.EnergyFloor
	}
	if cfg.EavesdropCooldown <= 0 {
		cfg.EavesdropCooldown = def.EavesdropCooldown
	}
	if cfg.EavesdropChance <= 0 {
		cfg.EavesdropChance = def.EavesdropChance
	}
	return &Gate{
		cfg:       cfg,
		interject: make(map[string]time.Time),
		now:       time.Now,
		rand:      rand.Float64,
	}
}

// AdmitAmbient reports whether an ambient utterance may be attempted.
// The energy floor is checked before the probability draw, so a drained
// agent never consumes a draw (and never reaches the model).
func (g *Gate) AdmitAmbient(lastAmbient *time.Time, energy float64) bool {
	now := g.now()
	if lastAmbient != nil && now.Sub(*lastAmbient) < g.cfg.AmbientCooldown {
		return false
	}
	if energy < g.cfg.EnergyFloor {
		return false
	}
	return g.rand() < g.cfg.AmbientBaseChance*energy
}

// AdmitEavesdrop reports whether an eavesdrop evaluation may proceed for a
// channel.
func (g *Gate) AdmitEavesdrop(channelID string) bool {
	g.mu.Lock()
	last, ok := g.interject[channelID]
	g.mu.Unlock()

	if ok && g.now().Sub(last) < g.cfg.EavesdropCooldown {
		return false
	}
	return g.rand() < g.cfg.EavesdropChance
}

// RecordInterjection stamps the eavesdrop cooldown for a channel.
func (g *Gate) RecordInterjection(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.interject[channelID] = g.now()
}
