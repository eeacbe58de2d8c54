package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snorlak1/mem0-server-mcp/internal/chunking"
	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

func gatewayAgainst(t *testing.T, mux *http.ServeMux) (*Gateway, func()) {
	t.Helper()
	srv := httptest.NewServer(mux)
	gw := newTestGateway(t, srv.URL, config.ProjectIDAuto)
	return gw, srv.Close
}

func TestAddCodingPreference_DispatchesOneIngestPerChunk(t *testing.T) {
	var ingests int
	mux := http.NewServeMux()
	mux.HandleFunc("/memories/", func(w http.ResponseWriter, r *http.Request) {
		ingests++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []types.ExtractionResult{{ID: "m1", Memory: types.Memory{Content: "x"}, CreatedAt: time.Now()}},
		})
	})
	gw, closeSrv := gatewayAgainst(t, mux)
	defer closeSrv()

	result, err := gw.addCodingPreference(context.Background(), "alice", map[string]interface{}{"text": "use PostgreSQL for storage"})
	require.NoError(t, err)
	assert.Equal(t, 1, ingests)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "chunks_total")
}

func TestAddCodingPreference_PartialChunkFailureStillReportsSuccesses(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/memories/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "boom"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []types.ExtractionResult{{ID: "m2", Memory: types.Memory{Content: "y"}, CreatedAt: time.Now()}},
		})
	})
	gw, closeSrv := gatewayAgainst(t, mux)
	defer closeSrv()
	gw.chunker = chunking.NewSplitter(config.ChunkingConfig{MaxChunkSize: 50, OverlapSize: 5})

	text := strings.Repeat("a", 60) + ". " + strings.Repeat("b", 60) + "."
	result, err := gw.addCodingPreference(context.Background(), "alice", map[string]interface{}{"text": text})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, result.Content[0].Text, `"chunks_failed": 1`)
}

func TestAddCodingPreference_AllChunksFailReturnsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/memories/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "down"})
	})
	gw, closeSrv := gatewayAgainst(t, mux)
	defer closeSrv()

	_, err := gw.addCodingPreference(context.Background(), "alice", map[string]interface{}{"text": "anything"})
	require.Error(t, err)
}

func TestSearchCodingPreferences_ScopesByProjectID(t *testing.T) {
	var gotUserID string
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID string `json:"user_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotUserID = body.UserID
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": []types.SearchResult{}})
	})
	gw, closeSrv := gatewayAgainst(t, mux)
	defer closeSrv()

	_, err := gw.searchCodingPreferences(context.Background(), "prj_abc123", map[string]interface{}{"query": "async"})
	require.NoError(t, err)
	assert.Equal(t, "prj_abc123", gotUserID)
}

func TestSearchCodingPreferences_DefaultsLimitWhenArgumentOmitted(t *testing.T) {
	var gotLimit int
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Limit int `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotLimit = body.Limit
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": []types.SearchResult{}})
	})
	gw, closeSrv := gatewayAgainst(t, mux)
	defer closeSrv()

	_, err := gw.searchCodingPreferences(context.Background(), "prj_abc123", map[string]interface{}{"query": "async"})
	require.NoError(t, err)
	assert.Equal(t, 10, gotLimit)
}

func TestSearchCodingPreferences_DecodesJSONNumberLimit(t *testing.T) {
	var gotLimit int
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Limit int `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotLimit = body.Limit
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": []types.SearchResult{}})
	})
	gw, closeSrv := gatewayAgainst(t, mux)
	defer closeSrv()

	_, err := gw.searchCodingPreferences(context.Background(), "prj_abc123", map[string]interface{}{"query": "async", "limit": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, gotLimit)
}

func TestDeleteMemory_ReturnsClientError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/memories/m1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "memory m1 not found"})
	})
	gw, closeSrv := gatewayAgainst(t, mux)
	defer closeSrv()

	_, err := gw.deleteMemory(context.Background(), "alice", map[string]interface{}{"memory_id": "m1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDispatch_UnknownToolReturnsError(t *testing.T) {
	gw := newTestGateway(t, "http://example.invalid", config.ProjectIDAuto)
	_, err := gw.dispatch(context.Background(), "alice", ToolCallParams{Name: "not_a_real_tool"})
	require.Error(t, err)
}
