// Package ratelimit gates per-user responses with a fixed cooldown plus a
// sliding-window burst cap. It is process-local state, independent of the
// persistent store; denial is a normal admission-control outcome, not an
// error.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds the limiter tunables.
type Config struct {
	Cooldown time.Duration // minimum gap between served responses
	Burst    int           // max responses within Window
	Window   time.Duration // trailing burst window
}

// DefaultConfig returns the observed production values.
func DefaultConfig() Config {
	return Config{
		Cooldown: 3 * time.Second,
		Burst:    8,
		Window:   60 * time.Second,
	}
}

// Limiter enforces the per-user cooldown and burst cap. Safe for concurrent
// use.
type Limiter struct {
	mu     sync.Mutex
	cfg    Config
	last   map[string]time.Time   // userID -> last served response
	window map[string][]time.Time // userID -> served responses in window
	now    func() time.Time
}

// New returns a Limiter with the given config; zero values fall back to
// DefaultConfig.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Limiter{
		cfg:    cfg,
		last:   make(map[string]time.Time),
		window: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Check reports whether the user may be served now and, if not, how long
// they must wait. Check records nothing; call Record after a response is
// actually served.
func (l *Limiter) Check(userID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if last, ok := l.last[userID]; ok {
		if gap := now.Sub(last); gap < l.cfg.Cooldown {
			return false, l.cfg.Cooldown - gap
		}
	}

	valid := l.prune(userID, now)
	if len(valid) >= l.cfg.Burst {
		oldest := valid[0]
		wait := l.cfg.Window - now.Sub(oldest)
		if wait < 0 {
			wait = 0
		}
		return false, wait
	}
	return true, 0
}

// Record notes that a response was just served to the user.
func (l *Limiter) Record(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.last[userID] = now
	l.window[userID] = append(l.prune(userID, now), now)
}

// prune drops window entries older than the trailing window. Caller holds
// the lock. Entries are appended in time order, so the slice stays sorted
// and index 0 is the oldest.
func (l *Limiter) prune(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.cfg.Window)
	existing := l.window[userID]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	l.window[userID] = valid
	return valid
}
