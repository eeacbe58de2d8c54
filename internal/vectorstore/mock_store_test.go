package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

func sampleMemory(id, owner string, vec []float32) types.Memory {
	return types.Memory{
		ID:        id,
		OwnerID:   owner,
		Content:   "content for " + id,
		Embedding: vec,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestMemStore_InsertRequiresEmbedding(t *testing.T) {
	s := NewMemStore()
	err := s.Insert(context.Background(), types.Memory{ID: "a", OwnerID: "u1"})
	assert.Error(t, err)
}

func TestMemStore_GetIsOwnerScoped(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, sampleMemory("m1", "u1", []float32{1, 0, 0})))

	got, err := s.Get(ctx, "u2", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Get(ctx, "u1", "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m1", got.ID)
}

func TestMemStore_SearchRanksByCosineSimilarity(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, sampleMemory("close", "u1", []float32{1, 0, 0})))
	require.NoError(t, s.Insert(ctx, sampleMemory("far", "u1", []float32{0, 1, 0})))
	require.NoError(t, s.Insert(ctx, sampleMemory("other-owner", "u2", []float32{1, 0, 0})))

	results, err := s.Search(ctx, []float32{1, 0, 0}, SearchFilter{OwnerID: "u1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].ID)
}

func TestMemStore_DeleteAllScopesToOwner(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, sampleMemory("m1", "u1", []float32{1})))
	require.NoError(t, s.Insert(ctx, sampleMemory("m2", "u2", []float32{1})))

	require.NoError(t, s.DeleteAll(ctx, "u1"))

	count1, _ := s.Count(ctx, "u1")
	count2, _ := s.Count(ctx, "u2")
	assert.Equal(t, 0, count1)
	assert.Equal(t, 1, count2)
}

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	score := cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
	assert.InDelta(t, 1.0, score, 0.0001)
}

func TestCosineSimilarity_OrthogonalVectorsScoreZero(t *testing.T) {
	score := cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	assert.InDelta(t, 0.0, score, 0.0001)
}
