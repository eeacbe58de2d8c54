// Package history persists the append-only history events attached to
// every memory: ADD on extraction, UPDATE on supersession, DELETE on
// removal. Rows are never mutated once written.
package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_history (
	id           BIGSERIAL PRIMARY KEY,
	memory_id    TEXT NOT NULL,
	event_kind   TEXT NOT NULL,
	prev_content TEXT NOT NULL DEFAULT '',
	new_content  TEXT NOT NULL DEFAULT '',
	ts           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_history_memory ON memory_history(memory_id, ts);
`

// Store is the durable, append-only history log.
type Store struct {
	db *sql.DB
}

// NewStore opens Postgres and applies the history schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Append writes one event. Events are never updated or deleted.
func (s *Store) Append(ctx context.Context, ev types.HistoryEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_history (memory_id, event_kind, prev_content, new_content, ts)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.MemoryID, ev.Kind, ev.PrevContent, ev.NewContent, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("history: append event for %s: %w", ev.MemoryID, err)
	}
	return nil
}

// List returns every event for memoryID, oldest first: a monotonically
// growing record of the memory's lifecycle.
func (s *Store) List(ctx context.Context, memoryID string) ([]types.HistoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_id, event_kind, prev_content, new_content, ts
		FROM memory_history WHERE memory_id = $1 ORDER BY ts ASC`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("history: list %s: %w", memoryID, err)
	}
	defer rows.Close()

	var out []types.HistoryEvent
	for rows.Next() {
		var ev types.HistoryEvent
		if err := rows.Scan(&ev.MemoryID, &ev.Kind, &ev.PrevContent, &ev.NewContent, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
