package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DecayConfig controls fact decay. Tuned by inspection; configuration, not
// invariant.
type DecayConfig struct {
	Rate            float64       // confidence lost per day of undecayed age
	MinConfidence   float64       // below this the fact is retired, not deleted
	AgeThreshold    time.Duration // facts younger than this are untouched
	ProtectedAccess int           // access_count at or above this exempts a fact
}

// DefaultDecayConfig returns the observed production values.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		Rate:            0.005,
		MinConfidence:   0.15,
		AgeThreshold:    72 * time.Hour,
		ProtectedAccess: 5,
	}
}

// DecayStats reports one maintenance pass.
type DecayStats struct {
	Decayed int
	Retired int
}

// decayMinElapsed keeps back-to-back passes from writing epsilon updates:
// decay is charged per elapsed day since the last pass, so a rerun with no
// elapsed time is a strict no-op.
const decayMinElapsed = time.Minute

// DecayFacts reduces confidence on old, rarely accessed facts. Each fact
// is charged Rate × days since it was last decayed (its creation, for a
// first pass); a fact falling below MinConfidence is marked inactive rather
// than deleted. Facts with enough accesses are exempt entirely. Row updates
// are independent: one failure is logged and skipped, and a rerun catches
// up whatever was missed.
func (s *Store) DecayFacts(ctx context.Context, cfg DecayConfig) (DecayStats, error) {
	if cfg.Rate == 0 {
		cfg = DefaultDecayConfig()
	}
	now := time.Now()

	rows, err := s.db.Query(ctx, `
		SELECT id, confidence, created_at, COALESCE(last_decayed, created_at), access_count
		FROM ace_semantic
		WHERE active AND created_at < $1`, now.Add(-cfg.AgeThreshold))
	if err != nil {
		return DecayStats{}, fmt.Errorf("query decay candidates: %w", err)
	}

	type candidate struct {
		id          int64
		confidence  float64
		lastDecayed time.Time
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var createdAt time.Time
		var accessCount int
		if err := rows.Scan(&c.id, &c.confidence, &createdAt, &c.lastDecayed, &accessCount); err != nil {
			rows.Close()
			return DecayStats{}, fmt.Errorf("scan decay candidate: %w", err)
		}
		if accessCount >= cfg.ProtectedAccess {
			continue
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return DecayStats{}, fmt.Errorf("decay candidates: %w", err)
	}

	var stats DecayStats
	for _, c := range candidates {
		elapsed := now.Sub(c.lastDecayed)
		if elapsed < decayMinElapsed {
			continue
		}

		newConf := c.confidence - cfg.Rate*elapsed.Hours()/24
		if newConf < 0 {
			newConf = 0
		}

		var execErr error
		if newConf < cfg.MinConfidence {
			_, execErr = s.db.Exec(ctx, `
				UPDATE ace_semantic SET active = FALSE, confidence = $2, last_decayed = $3
				WHERE id = $1`, c.id, newConf, now)
			if execErr == nil {
				stats.Retired++
			}
		} else {
			_, execErr = s.db.Exec(ctx, `
				UPDATE ace_semantic SET confidence = $2, last_decayed = $3
				WHERE id = $1`, c.id, newConf, now)
			if execErr == nil {
				stats.Decayed++
			}
		}
		if execErr != nil {
			s.logger.Warn("fact decay update failed",
				zap.Int64("fact", c.id), zap.Error(execErr))
		}
	}

	if stats.Decayed > 0 || stats.Retired > 0 {
		s.logger.Info("memory decay pass",
			zap.Int("decayed", stats.Decayed),
			zap.Int("retired", stats.Retired))
	}
	return stats, nil
}

// CompactEpisodes deactivates the oldest-inserted episodes beyond maxActive
// for a user, leaving the most recent maxActive queryable. A pass with
// nothing over the cap is a no-op.
func (s *Store) CompactEpisodes(ctx context.Context, userID string, maxActive int) (int, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM ace_episodic WHERE user_id = $1 AND active`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count episodes: %w", err)
	}
	if count <= maxActive {
		return 0, tx.Commit(ctx)
	}

	excess := count - maxActive
	_, err = tx.Exec(ctx, `
		UPDATE ace_episodic SET active = FALSE
		WHERE id IN (
			SELECT id FROM ace_episodic
			WHERE user_id = $1 AND active
			ORDER BY id ASC LIMIT $2
		)`, userID, excess)
	if err != nil {
		return 0, fmt.Errorf("compact episodes: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit compaction: %w", err)
	}

	s.logger.Info("episodes compacted",
		zap.String("user", userID), zap.Int("deactivated", excess))
	return excess, nil
}
