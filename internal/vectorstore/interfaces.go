// Package vectorstore defines the vector storage contract used by the
// memory service, and provides a Qdrant-backed implementation plus an
// in-memory one for tests.
package vectorstore

import (
	"context"

	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// SearchFilter narrows a k-NN search to one owner and, optionally, a
// metadata equality match.
type SearchFilter struct {
	OwnerID  string
	Metadata map[string]interface{}
	Limit    int
}

// Store is the vector storage contract every memory-bearing component
// depends on. A Qdrant-backed implementation and an in-memory one both
// satisfy it.
type Store interface {
	// Insert adds a new memory. The memory's embedding must already be
	// populated.
	Insert(ctx context.Context, mem types.Memory) error

	// Update overwrites an existing memory's content/embedding/metadata.
	Update(ctx context.Context, mem types.Memory) error

	// Delete removes a memory by ID, scoped to its owner.
	Delete(ctx context.Context, ownerID, id string) error

	// Get fetches one memory by ID, scoped to its owner. Returns a nil
	// memory (no error) both when the ID doesn't exist and when it
	// belongs to a different owner — callers that must distinguish those
	// two cases (to return access_denied instead of not_found) use
	// GetAny first.
	Get(ctx context.Context, ownerID, id string) (*types.Memory, error)

	// GetAny fetches one memory by ID regardless of owner. Used only by
	// the service layer to tell "doesn't exist" apart from "exists, but
	// belongs to someone else" without ever leaking content across the
	// ownership boundary.
	GetAny(ctx context.Context, id string) (*types.Memory, error)

	// Search runs a k-NN similarity search against the given vector.
	Search(ctx context.Context, vector []float32, filter SearchFilter) ([]types.SearchResult, error)

	// ListByOwner returns every memory belonging to an owner, for full
	// dumps (get_all_coding_preferences) and for graph re-sync.
	ListByOwner(ctx context.Context, ownerID string) ([]types.Memory, error)

	// Count returns the number of memories belonging to an owner.
	Count(ctx context.Context, ownerID string) (int, error)

	// DeleteAll removes every memory belonging to an owner (reset).
	DeleteAll(ctx context.Context, ownerID string) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
