package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// LoopConfig sets the cadences of the background loops.
type LoopConfig struct {
	AmbientInterval     time.Duration
	DriftInterval       time.Duration
	MaintenanceInterval time.Duration
}

// DefaultLoopConfig returns the production cadences.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		AmbientInterval:     12 * time.Minute,
		DriftInterval:       30 * time.Minute,
		MaintenanceInterval: 24 * time.Hour,
	}
}

// StartLoops runs the startup maintenance pass, then schedules the
// ambient pulse, the mood drift and the daily maintenance. The returned
// cron is already started; stop it on shutdown.
func (e *Engine) StartLoops(ctx context.Context, cfg LoopConfig) (*cron.Cron, error) {
	def := DefaultLoopConfig()
	if cfg.AmbientInterval <= 0 {
		cfg.AmbientInterval = def.AmbientInterval
	}
	if cfg.DriftInterval <= 0 {
		cfg.DriftInterval = def.DriftInterval
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = def.MaintenanceInterval
	}

	// Catch up on whatever decayed while the process was down.
	e.RunMaintenance(ctx)

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.AmbientInterval), func() {
		e.AmbientPulse(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule ambient pulse: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.DriftInterval), func() {
		e.DriftMood(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule mood drift: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.MaintenanceInterval), func() {
		e.RunMaintenance(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule maintenance: %w", err)
	}

	c.Start()
	e.logger.Info("background loops started",
		zap.Duration("ambient", cfg.AmbientInterval),
		zap.Duration("drift", cfg.DriftInterval),
		zap.Duration("maintenance", cfg.MaintenanceInterval))
	return c, nil
}
