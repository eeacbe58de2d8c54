package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// MemStore is an in-memory Store used by tests and offline runs.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]types.Memory // keyed by id
}

// NewMemStore builds an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]types.Memory)}
}

func (s *MemStore) Insert(_ context.Context, mem types.Memory) error {
	if mem.ID == "" {
		return fmt.Errorf("vectorstore: memory ID is required")
	}
	if len(mem.Embedding) == 0 {
		return fmt.Errorf("vectorstore: memory must have an embedding")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[mem.ID] = mem
	return nil
}

func (s *MemStore) Update(ctx context.Context, mem types.Memory) error {
	return s.Insert(ctx, mem)
}

func (s *MemStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.data[id]
	if !ok || mem.OwnerID != ownerID {
		return nil
	}
	delete(s.data, id)
	return nil
}

func (s *MemStore) Get(_ context.Context, ownerID, id string) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.data[id]
	if !ok || mem.OwnerID != ownerID {
		return nil, nil
	}
	cp := mem
	return &cp, nil
}

func (s *MemStore) GetAny(_ context.Context, id string) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.data[id]
	if !ok {
		return nil, nil
	}
	cp := mem
	return &cp, nil
}

func (s *MemStore) Search(_ context.Context, vector []float32, filter SearchFilter) ([]types.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vectorstore: search vector cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		mem   types.Memory
		score float32
	}
	var candidates []scored

	for _, mem := range s.data {
		if mem.OwnerID != filter.OwnerID {
			continue
		}
		if !matchesMetadata(mem.Metadata, filter.Metadata) {
			continue
		}
		candidates = append(candidates, scored{mem: mem, score: cosineSimilarity(vector, mem.Embedding)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	limit := filter.Limit
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	out := make([]types.SearchResult, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, types.SearchResult{
			ID:        c.mem.ID,
			Content:   c.mem.Content,
			Score:     c.score,
			Metadata:  c.mem.Metadata,
			CreatedAt: c.mem.CreatedAt,
		})
	}
	return out, nil
}

func (s *MemStore) ListByOwner(_ context.Context, ownerID string) ([]types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Memory
	for _, mem := range s.data {
		if mem.OwnerID == ownerID {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) Count(ctx context.Context, ownerID string) (int, error) {
	mems, err := s.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return len(mems), nil
}

func (s *MemStore) DeleteAll(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, mem := range s.data {
		if mem.OwnerID == ownerID {
			delete(s.data, id)
		}
	}
	return nil
}

func (s *MemStore) HealthCheck(context.Context) error { return nil }

func matchesMetadata(have, want map[string]interface{}) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
