// Package graph implements the typed relationship/intelligence graph:
// durable node/edge storage on Postgres plus an in-memory adjacency
// cache that serves every traversal and analysis operation.
package graph

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// schema is applied at startup; it is idempotent so it can run on every
// boot without a separate migration step for this store.
const schema = `
CREATE TABLE IF NOT EXISTS graph_nodes (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	owner_id   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_edges (
	id         TEXT PRIMARY KEY,
	from_id    TEXT NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
	to_id      TEXT NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL,
	tag        TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_graph_edges_from ON graph_edges(from_id);
CREATE INDEX IF NOT EXISTS idx_graph_edges_to   ON graph_edges(to_id);

CREATE TABLE IF NOT EXISTS graph_components (
	name       TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_decisions (
	id           TEXT PRIMARY KEY,
	text         TEXT NOT NULL,
	owner_id     TEXT NOT NULL,
	pros         TEXT[] NOT NULL DEFAULT '{}',
	cons         TEXT[] NOT NULL DEFAULT '{}',
	alternatives TEXT[] NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL
);
`

// Store is the durable half of the graph: Postgres-backed persistence
// for nodes, edges, components and decisions.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres connection and applies the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("graph: open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("graph: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) UpsertNode(ctx context.Context, n types.Node) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_nodes (id, kind, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.Kind, n.OwnerID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("graph: upsert node %s: %w", n.ID, err)
	}
	return nil
}

func (s *Store) AddEdge(ctx context.Context, e types.Edge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_edges (id, from_id, to_id, kind, tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.From, e.To, e.Kind, e.Tag, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("graph: add edge %s: %w", e.ID, err)
	}
	return nil
}

// DeleteNode removes a node and, by the edges' ON DELETE CASCADE, every
// edge touching it. Used when a memory is deleted from the vector store.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM graph_nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("graph: delete node %s: %w", id, err)
	}
	return nil
}

func (s *Store) UpsertComponent(ctx context.Context, c types.Component) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_components (name, kind, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET kind = EXCLUDED.kind`,
		c.Name, c.Kind, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("graph: upsert component %s: %w", c.Name, err)
	}
	return nil
}

func (s *Store) InsertDecision(ctx context.Context, d types.Decision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_decisions (id, text, owner_id, pros, cons, alternatives, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.Text, d.OwnerID, pq.Array(d.Pros), pq.Array(d.Cons), pq.Array(d.Alternatives), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("graph: insert decision %s: %w", d.ID, err)
	}
	return nil
}

// LoadAll reads every node, edge, component and decision back, used to
// rebuild the in-memory adjacency cache at startup.
func (s *Store) LoadAll(ctx context.Context) ([]types.Node, []types.Edge, []types.Component, []types.Decision, error) {
	nodes, err := s.loadNodes(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	edges, err := s.loadEdges(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	components, err := s.loadComponents(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	decisions, err := s.loadDecisions(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return nodes, edges, components, decisions, nil
}

func (s *Store) loadNodes(ctx context.Context) ([]types.Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, owner_id, created_at FROM graph_nodes`)
	if err != nil {
		return nil, fmt.Errorf("graph: load nodes: %w", err)
	}
	defer rows.Close()

	var out []types.Node
	for rows.Next() {
		var n types.Node
		if err := rows.Scan(&n.ID, &n.Kind, &n.OwnerID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("graph: scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) loadEdges(ctx context.Context) ([]types.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, from_id, to_id, kind, tag, created_at FROM graph_edges`)
	if err != nil {
		return nil, fmt.Errorf("graph: load edges: %w", err)
	}
	defer rows.Close()

	var out []types.Edge
	for rows.Next() {
		var e types.Edge
		if err := rows.Scan(&e.ID, &e.From, &e.To, &e.Kind, &e.Tag, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("graph: scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) loadComponents(ctx context.Context) ([]types.Component, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, kind, created_at FROM graph_components`)
	if err != nil {
		return nil, fmt.Errorf("graph: load components: %w", err)
	}
	defer rows.Close()

	var out []types.Component
	for rows.Next() {
		var c types.Component
		if err := rows.Scan(&c.Name, &c.Kind, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("graph: scan component: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) loadDecisions(ctx context.Context) ([]types.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, owner_id, pros, cons, alternatives, created_at FROM graph_decisions`)
	if err != nil {
		return nil, fmt.Errorf("graph: load decisions: %w", err)
	}
	defer rows.Close()

	var out []types.Decision
	for rows.Next() {
		var d types.Decision
		if err := rows.Scan(&d.ID, &d.Text, &d.OwnerID, pq.Array(&d.Pros), pq.Array(&d.Cons), pq.Array(&d.Alternatives), &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("graph: scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// now returns the current time in UTC; every timestamp the graph
// package writes comes from it.
func now() time.Time { return time.Now().UTC() }
