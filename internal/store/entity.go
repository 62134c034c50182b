package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/nidhogg/firmament/internal/mood"
)

// GetEntityState reads the singleton entity state.
func (s *Store) GetEntityState(ctx context.Context) (mood.State, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return mood.State{}, err
	}
	defer tx.Rollback(ctx)

	state, err := readEntityState(ctx, tx)
	if err != nil {
		return mood.State{}, err
	}
	return state, tx.Commit(ctx)
}

// DriftMood applies one natural drift tick to the entity state and persists
// the result, all in one transaction.
func (s *Store) DriftMood(ctx context.Context, now time.Time, cfg mood.Config) (mood.State, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return mood.State{}, err
	}
	defer tx.Rollback(ctx)

	state, err := readEntityState(ctx, tx)
	if err != nil {
		return mood.State{}, err
	}

	next := mood.Drift(state, now, cfg)
	_, err = tx.Exec(ctx, `
		UPDATE entity_state
		SET energy_level = $1, mood_valence = $2, temporal_mood = $3,
		    last_mood_drift = $4, updated_at = now()
		WHERE id = 1`,
		next.Energy, next.Valence, next.Mood, now)
	if err != nil {
		return mood.State{}, fmt.Errorf("persist drift: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mood.State{}, fmt.Errorf("commit drift: %w", err)
	}

	s.logger.Debug("mood drifted",
		zap.Float64("energy", next.Energy),
		zap.Float64("valence", next.Valence),
		zap.String("mood", next.Mood))
	return next, nil
}

// IncrementInteractions bumps the daily interaction counter and stamps the
// last interaction time.
func (s *Store) IncrementInteractions(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		UPDATE entity_state
		SET interactions_today = interactions_today + 1,
		    last_interaction_time = now(), updated_at = now()
		WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("increment interactions: %w", err)
	}
	return nil
}

// ResetDailyInteractions zeroes the daily counter; run by daily maintenance.
func (s *Store) ResetDailyInteractions(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		UPDATE entity_state SET interactions_today = 0, updated_at = now() WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("reset daily interactions: %w", err)
	}
	return nil
}

// SetLastAmbient stamps the ambient cooldown after an unprompted utterance.
func (s *Store) SetLastAmbient(ctx context.Context, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE entity_state SET last_ambient_time = $1, updated_at = now() WHERE id = 1`, at)
	if err != nil {
		return fmt.Errorf("set last ambient: %w", err)
	}
	return nil
}

// SetContemplation replaces the forward-looking contemplation text.
func (s *Store) SetContemplation(ctx context.Context, text string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE entity_state SET current_contemplation = $1, updated_at = now() WHERE id = 1`, text)
	if err != nil {
		return fmt.Errorf("set contemplation: %w", err)
	}
	return nil
}

// readEntityState loads the singleton row inside an open transaction.
func readEntityState(ctx context.Context, tx pgx.Tx) (mood.State, error) {
	var st mood.State
	err := tx.QueryRow(ctx, `
		SELECT energy_level, mood_valence, temporal_mood, current_contemplation,
		       interactions_today, last_interaction_time, last_ambient_time, last_mood_drift
		FROM entity_state WHERE id = 1`).Scan(
		&st.Energy, &st.Valence, &st.Mood, &st.Contemplation,
		&st.InteractionsToday, &st.LastInteraction, &st.LastAmbient, &st.LastDrift)
	if err != nil {
		return mood.State{}, fmt.Errorf("read entity state: %w", err)
	}
	return st, nil
}
