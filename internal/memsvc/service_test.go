package memsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snorlak1/mem0-server-mcp/internal/apperr"
	"github.com/snorlak1/mem0-server-mcp/internal/embeddings"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
	"github.com/snorlak1/mem0-server-mcp/internal/vectorstore"
)

func newTestService(t *testing.T) (*Service, *vectorstore.MemStore) {
	t.Helper()
	vs := vectorstore.NewMemStore()
	emb := embeddings.NewMockService(8)
	svc := New(vs, emb, nil, nil, nil, nil, logging.NewNoOpLogger(), 0.85)
	return svc, vs
}

func seedMemory(t *testing.T, vs *vectorstore.MemStore, owner, id, content string) {
	t.Helper()
	now := time.Now().UTC()
	err := vs.Insert(context.Background(), types.Memory{
		ID: id, OwnerID: owner, Content: content,
		Embedding:   []float32{1, 0, 0, 0, 0, 0, 0, 0},
		ContentHash: types.HashContent(content),
		CreatedAt:   now, UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestGet_OwnerMatch_ReturnsMemory(t *testing.T) {
	svc, vs := newTestService(t)
	seedMemory(t, vs, "alice", "m1", "I use PostgreSQL 16")

	mem, err := svc.Get(context.Background(), "alice", "m1")
	require.NoError(t, err)
	assert.Equal(t, "I use PostgreSQL 16", mem.Content)
}

func TestGet_OwnerMismatch_ReturnsAccessDenied(t *testing.T) {
	svc, vs := newTestService(t)
	seedMemory(t, vs, "alice", "m1", "I use PostgreSQL 16")

	_, err := svc.Get(context.Background(), "bob", "m1")
	require.Error(t, err)
	assert.Equal(t, apperr.AccessDenied, apperr.CodeOf(err))
}

func TestGet_UnknownID_ReturnsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "alice", "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}

func TestDelete_OwnerMismatch_ReturnsAccessDenied(t *testing.T) {
	svc, vs := newTestService(t)
	seedMemory(t, vs, "alice", "m1", "I use PostgreSQL 16")

	err := svc.Delete(context.Background(), "bob", "m1")
	require.Error(t, err)
	assert.Equal(t, apperr.AccessDenied, apperr.CodeOf(err))
}

func TestSearch_ScopesResultsByOwner(t *testing.T) {
	svc, vs := newTestService(t)
	seedMemory(t, vs, "alice", "m1", "I prefer async/await over callbacks")
	seedMemory(t, vs, "bob", "m2", "I prefer promises in JavaScript")

	results, err := svc.Search(context.Background(), SearchRequest{Query: "async programming", UserID: "alice", Limit: 5})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "m2", r.ID)
	}
}

func TestReset_RemovesOnlyOwnedMemories(t *testing.T) {
	svc, vs := newTestService(t)
	seedMemory(t, vs, "alice", "m1", "alice's fact")
	seedMemory(t, vs, "bob", "m2", "bob's fact")

	require.NoError(t, svc.Reset(context.Background(), "alice"))

	deleted, err := vs.GetAny(context.Background(), "m1")
	require.NoError(t, err)
	assert.Nil(t, deleted)

	remaining, err := vs.GetAny(context.Background(), "m2")
	require.NoError(t, err)
	assert.NotNil(t, remaining)
}

func TestMergeMetadata_AddsAgentAndRunID(t *testing.T) {
	meta := mergeMetadata(map[string]interface{}{"tag": "x"}, "agent-1", "run-1")
	assert.Equal(t, "x", meta["tag"])
	assert.Equal(t, "agent-1", meta["agent_id"])
	assert.Equal(t, "run-1", meta["run_id"])
}

func TestJoinMessages_SkipsEmptyContent(t *testing.T) {
	joined := joinMessages([]IngestMessage{{Role: "user", Content: "a"}, {Role: "user", Content: ""}, {Role: "user", Content: "b"}})
	assert.Equal(t, "a\nb", joined)
}
