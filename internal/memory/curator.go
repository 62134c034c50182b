package memory

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/firmament/internal/provider"
)

// CuratorStore is the slice of the store the curator writes through.
type CuratorStore interface {
	InsertFact(ctx context.Context, userID, userName, fact string, confidence float64, memoryType string) error
	ReplaceWorkingContext(ctx context.Context, userID, text string) error
	InsertEpisode(ctx context.Context, userID, summary string) error
	SetContemplation(ctx context.Context, text string) error
}

// Curator applies a model turn's memory edits. Every item is best-effort:
// one failed write is logged and skipped, the rest still land.
type Curator struct {
	store  CuratorStore
	logger *zap.Logger
}

func NewCurator(store CuratorStore, logger *zap.Logger) *Curator {
	return &Curator{store: store, logger: logger}
}

// Apply writes the turn's proposed facts, episodic summary, working
// context and contemplation for a user.
func (c *Curator) Apply(ctx context.Context, userID, userName string, turn *provider.Turn) {
	if turn == nil {
		return
	}

	for _, f := range turn.NewFacts {
		if f.Fact == "" {
			continue
		}
		if err := c.store.InsertFact(ctx, userID, userName, f.Fact, f.Confidence, f.MemoryType); err != nil {
			c.logger.Warn("fact insert failed",
				zap.String("user", userID), zap.Error(err))
		}
	}

	if w := strings.TrimSpace(turn.WorkingContext); w != "" {
		if err := c.store.ReplaceWorkingContext(ctx, userID, w); err != nil {
			c.logger.Warn("working context update failed",
				zap.String("user", userID), zap.Error(err))
		}
	}

	if s := strings.TrimSpace(turn.EpisodicSummary); s != "" {
		if err := c.store.InsertEpisode(ctx, userID, s); err != nil {
			c.logger.Warn("episode insert failed",
				zap.String("user", userID), zap.Error(err))
		}
	}

	if t := strings.TrimSpace(turn.Contemplation); t != "" {
		if err := c.store.SetContemplation(ctx, t); err != nil {
			c.logger.Warn("contemplation update failed", zap.Error(err))
		}
	}

	c.logger.Debug("memory curated", zap.String("user", userName))
}
