package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nidhogg/firmament/internal/mood"
)

// Fact is one active semantic memory as retrieved for context assembly.
type Fact struct {
	ID         int64
	Text       string
	Confidence float64
	MemoryType string
	CreatedAt  time.Time
}

// Episode is one active episodic summary.
type Episode struct {
	ID        int64
	Summary   string
	Timestamp time.Time
}

// RelationshipRow mirrors a user_relationship record.
type RelationshipRow struct {
	UserID           string
	UserName         string
	FirstSeen        time.Time
	LastSeen         time.Time
	InteractionCount int
	DepthScore       float64
	Tone             string
}

// ContextSnapshot is everything the assembler needs to render one context
// block, read in a single transaction so two sequential assemblies with no
// intervening writes see identical fact and episode orderings.
type ContextSnapshot struct {
	UserID       string
	UserName     string
	Facts        []Fact
	Episodes     []Episode
	Working      string
	HasWorking   bool
	Relationship *RelationshipRow
	Entity       mood.State
}

const (
	contextFactLimit    = 30
	contextEpisodeLimit = 5
)

// AssembleContext reads the full per-user memory picture in one
// transaction: relationship (created if absent), top facts by confidence
// then recency, recent episodes, the working context and the entity state.
// Every returned fact has its access counter bumped in the same
// transaction — that access bookkeeping is what shields frequently
// surfaced facts from decay.
func (s *Store) AssembleContext(ctx context.Context, userID, userName string) (*ContextSnapshot, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, _, err := ensureRelationship(ctx, tx, userID); err != nil {
		return nil, err
	}

	snap := &ContextSnapshot{UserID: userID, UserName: userName}

	snap.Facts, err = readFacts(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if len(snap.Facts) > 0 {
		ids := make([]int64, len(snap.Facts))
		for i, f := range snap.Facts {
			ids[i] = f.ID
		}
		_, err = tx.Exec(ctx, `
			UPDATE ace_semantic
			SET access_count = access_count + 1, last_accessed = now()
			WHERE id = ANY($1)`, ids)
		if err != nil {
			return nil, fmt.Errorf("bump fact access: %w", err)
		}
	}

	snap.Episodes, err = readEpisodes(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		SELECT context FROM ace_working_context WHERE user_id = $1`, userID).Scan(&snap.Working)
	switch err {
	case nil:
		snap.HasWorking = true
	case pgx.ErrNoRows:
		// no active thread
	default:
		return nil, fmt.Errorf("read working context: %w", err)
	}

	snap.Relationship, err = readRelationship(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	snap.Entity, err = readEntityState(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit context assembly: %w", err)
	}
	return snap, nil
}

func readFacts(ctx context.Context, tx pgx.Tx, userID string) ([]Fact, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, fact, confidence, memory_type, created_at
		FROM ace_semantic
		WHERE user_id = $1 AND active
		ORDER BY confidence DESC, created_at DESC, id DESC
		LIMIT $2`, userID, contextFactLimit)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.Text, &f.Confidence, &f.MemoryType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func readEpisodes(ctx context.Context, tx pgx.Tx, userID string) ([]Episode, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, summary, timestamp
		FROM ace_episodic
		WHERE user_id = $1 AND active
		ORDER BY id DESC
		LIMIT $2`, userID, contextEpisodeLimit)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var e Episode
		if err := rows.Scan(&e.ID, &e.Summary, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}
