package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/embeddings"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
	"github.com/snorlak1/mem0-server-mcp/internal/vectorstore"
)

func TestNewEmbeddingService_UnknownProviderFallsBackToMock(t *testing.T) {
	svc := newEmbeddingService(config.EmbeddingConfig{Provider: "does-not-exist", Dimensions: 16})
	_, ok := svc.(*embeddings.MockService)
	assert.True(t, ok)
	assert.Equal(t, 16, svc.Dimensions())
}

func TestNewVectorStore_EmptyHostUsesMemStore(t *testing.T) {
	cfg := &config.Config{Qdrant: config.QdrantConfig{Host: ""}}
	vs := newVectorStore(cfg, 16, logging.NewNoOpLogger())
	_, ok := vs.(*vectorstore.MemStore)
	assert.True(t, ok)
}

func TestNewVectorStore_ConfiguredHostUsesQdrant(t *testing.T) {
	cfg := &config.Config{Qdrant: config.QdrantConfig{Host: "localhost", Port: 6334, Collection: "memories"}}
	vs := newVectorStore(cfg, 16, logging.NewNoOpLogger())
	_, ok := vs.(*vectorstore.QdrantStore)
	assert.True(t, ok)
}
