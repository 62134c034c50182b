package store

import (
	"context"
	"fmt"
)

// InsertFact stores one semantic fact for a user. Duplicate facts for the
// same user are silently ignored so re-proposed facts do not multiply.
func (s *Store) InsertFact(ctx context.Context, userID, userName, fact string, confidence float64, memoryType string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ace_semantic (user_id, user_name, fact, confidence, memory_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, fact) DO NOTHING`,
		userID, userName, fact, confidence, memoryType)
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	return nil
}

// ReplaceWorkingContext swaps the user's single conversation thread; the
// previous thread is overwritten, never appended to.
func (s *Store) ReplaceWorkingContext(ctx context.Context, userID, text string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ace_working_context (user_id, context, last_updated)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET context = $2, last_updated = now()`,
		userID, text)
	if err != nil {
		return fmt.Errorf("replace working context: %w", err)
	}
	return nil
}

// InsertEpisode appends one episodic summary for a user.
func (s *Store) InsertEpisode(ctx context.Context, userID, summary string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ace_episodic (user_id, summary) VALUES ($1, $2)`, userID, summary)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}
