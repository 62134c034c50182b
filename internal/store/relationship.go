package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/nidhogg/firmament/internal/relation"
)

// UpdateRelationship records one direct interaction: the row is created if
// absent, the counter and last_seen advance, and the depth/tone are
// recomputed from the new count and current active-fact total. It returns
// the user's previous last_seen (nil on first contact) so the caller can
// describe the absence that this interaction ended.
func (s *Store) UpdateRelationship(ctx context.Context, userID, userName string) (*time.Time, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	created, prevSeen, err := ensureRelationship(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	var count int
	err = tx.QueryRow(ctx, `
		UPDATE user_relationship
		SET interaction_count = interaction_count + 1, last_seen = now(), user_name = $2
		WHERE user_id = $1
		RETURNING interaction_count`, userID, userName).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("bump relationship: %w", err)
	}

	var factCount int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM ace_semantic WHERE user_id = $1 AND active`, userID).Scan(&factCount)
	if err != nil {
		return nil, fmt.Errorf("count active facts: %w", err)
	}

	depth := relation.Depth(count, factCount)
	tone := relation.Tone(depth)
	_, err = tx.Exec(ctx, `
		UPDATE user_relationship SET depth_score = $2, relationship_tone = $3 WHERE user_id = $1`,
		userID, depth, tone)
	if err != nil {
		return nil, fmt.Errorf("store depth: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit relationship update: %w", err)
	}

	s.logger.Debug("relationship updated",
		zap.String("user", userID),
		zap.Int("count", count),
		zap.Float64("depth", depth))

	if created {
		return nil, nil
	}
	return prevSeen, nil
}

// RelationshipStats is the standing summary behind the presence command.
type RelationshipStats struct {
	Row            RelationshipRow
	ActiveFacts    int
	ActiveEpisodes int
}

// GetRelationshipStats returns a user's relationship row with active fact
// and episode counts, or nil when the user is unknown.
func (s *Store) GetRelationshipStats(ctx context.Context, userID string) (*RelationshipStats, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row, err := readRelationship(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, tx.Commit(ctx)
	}

	stats := &RelationshipStats{Row: *row}
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM ace_semantic WHERE user_id = $1 AND active`, userID).Scan(&stats.ActiveFacts)
	if err != nil {
		return nil, fmt.Errorf("count facts: %w", err)
	}
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM ace_episodic WHERE user_id = $1 AND active`, userID).Scan(&stats.ActiveEpisodes)
	if err != nil {
		return nil, fmt.Errorf("count episodes: %w", err)
	}
	return stats, tx.Commit(ctx)
}

// EraseUser removes every trace of a user: facts, episodes, working context
// and the relationship row. This is the one hard-delete path; it exists
// only for explicit erase requests.
func (s *Store) EraseUser(ctx context.Context, userID string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"ace_semantic", "ace_episodic", "ace_working_context", "user_relationship"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), userID); err != nil {
			return fmt.Errorf("erase %s: %w", table, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit erase: %w", err)
	}

	s.logger.Info("user memory erased", zap.String("user", userID))
	return nil
}

// ensureRelationship inserts the relationship row if absent. It reports
// whether the row was created and, for existing rows, the current last_seen.
func ensureRelationship(ctx context.Context, tx pgx.Tx, userID string) (bool, *time.Time, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO user_relationship (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return false, nil, fmt.Errorf("ensure relationship: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil, nil
	}

	var lastSeen time.Time
	err = tx.QueryRow(ctx, `
		SELECT last_seen FROM user_relationship WHERE user_id = $1`, userID).Scan(&lastSeen)
	if err != nil {
		return false, nil, fmt.Errorf("read last_seen: %w", err)
	}
	return false, &lastSeen, nil
}

// readRelationship loads a relationship row inside an open transaction,
// returning nil when the user is unknown.
func readRelationship(ctx context.Context, tx pgx.Tx, userID string) (*RelationshipRow, error) {
	var row RelationshipRow
	err := tx.QueryRow(ctx, `
		SELECT user_id, user_name, first_seen, last_seen, interaction_count,
		       depth_score, relationship_tone
		FROM user_relationship WHERE user_id = $1`, userID).Scan(
		&row.UserID, &row.UserName, &row.FirstSeen, &row.LastSeen,
		&row.InteractionCount, &row.DepthScore, &row.Tone)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read relationship: %w", err)
	}
	return &row, nil
}
