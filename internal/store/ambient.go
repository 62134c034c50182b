package store

import (
	"context"
	"fmt"
	"time"
)

// ambientLogKeep bounds the ambient_log table; anything older than the
// newest ambientLogKeep rows is pruned on insert.
const ambientLogKeep = 50

// AmbientEntry is one unprompted interjection the engine produced.
type AmbientEntry struct {
	ID        int64
	ChannelID string
	Message   string
	Summary   string
	CreatedAt time.Time
}

// LogAmbient records an unprompted message and prunes the log to its cap.
func (s *Store) LogAmbient(ctx context.Context, channelID, message, summary string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO ambient_log (channel_id, message, context_summary)
		VALUES ($1, $2, $3)`, channelID, message, summary)
	if err != nil {
		return fmt.Errorf("insert ambient log: %w", err)
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM ambient_log
		WHERE id NOT IN (
			SELECT id FROM ambient_log ORDER BY id DESC LIMIT $1
		)`, ambientLogKeep)
	if err != nil {
		return fmt.Errorf("prune ambient log: %w", err)
	}
	return tx.Commit(ctx)
}

// RecentAmbients returns the newest entries first.
func (s *Store) RecentAmbients(ctx context.Context, limit int) ([]AmbientEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, channel_id, message, context_summary, timestamp
		FROM ambient_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ambient log: %w", err)
	}
	defer rows.Close()

	var out []AmbientEntry
	for rows.Next() {
		var e AmbientEntry
		if err := rows.Scan(&e.ID, &e.ChannelID, &e.Message, &e.Summary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ambient entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
