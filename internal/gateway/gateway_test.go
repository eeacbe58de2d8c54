package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
)

func newTestGateway(t *testing.T, baseURL string, mode config.ProjectIDMode) *Gateway {
	t.Helper()
	client := NewClient(baseURL, 2*time.Second, 2*time.Second)
	chunkingCfg := config.ChunkingConfig{MaxChunkSize: 2000, OverlapSize: 50}
	cfg := config.GatewayConfig{ProjectIDMode: mode, DefaultUserID: "default"}
	return New(nil, client, chunkingCfg, cfg, logging.NewNoOpLogger())
}

func TestDeriveProjectID_AutoHashesPath(t *testing.T) {
	gw := newTestGateway(t, "http://example.invalid", config.ProjectIDAuto)
	r := httptest.NewRequest(http.MethodPost, "/mcp/", nil)
	r.Header.Set(ProjectHeader, "/home/alice/project")

	id := gw.deriveProjectID(r, "alice")
	assert.Regexp(t, `^prj_[0-9a-f]{8}$`, id)

	r2 := httptest.NewRequest(http.MethodPost, "/mcp/", nil)
	r2.Header.Set(ProjectHeader, "/home/alice/project")
	assert.Equal(t, id, gw.deriveProjectID(r2, "alice"), "same path must derive the same project id")
}

func TestDeriveProjectID_AutoFallsBackToUserWithoutPathHeader(t *testing.T) {
	gw := newTestGateway(t, "http://example.invalid", config.ProjectIDAuto)
	r := httptest.NewRequest(http.MethodPost, "/mcp/", nil)
	assert.Equal(t, "alice", gw.deriveProjectID(r, "alice"))
}

func TestDeriveProjectID_ManualUsesDefaultUserID(t *testing.T) {
	gw := newTestGateway(t, "http://example.invalid", config.ProjectIDManual)
	r := httptest.NewRequest(http.MethodPost, "/mcp/", nil)
	assert.Equal(t, "default", gw.deriveProjectID(r, "alice"))
}

func TestDeriveProjectID_GlobalUsesDefaultUserID(t *testing.T) {
	gw := newTestGateway(t, "http://example.invalid", config.ProjectIDGlobal)
	r := httptest.NewRequest(http.MethodPost, "/mcp/", nil)
	assert.Equal(t, "default", gw.deriveProjectID(r, "bob"))
}

func TestToolCatalogue_NamesEveryTool(t *testing.T) {
	names := make(map[string]bool)
	for _, tool := range toolCatalogue() {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"add_coding_preference", "search_coding_preferences", "get_all_coding_preferences",
		"delete_memory", "get_memory_history", "link_memories", "get_related_memories",
		"analyze_memory_intelligence", "create_component", "link_component_dependency",
		"analyze_component_impact", "create_decision", "get_decision_rationale",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestArgString_MissingKeyReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", argString(map[string]interface{}{}, "text"))
}

func TestArgInt_AcceptsJSONFloat64(t *testing.T) {
	assert.Equal(t, 5, argInt(map[string]interface{}{"limit": float64(5)}, "limit", 10))
}

func TestArgInt_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, 10, argInt(map[string]interface{}{}, "limit", 10))
}

func TestToStringSlice_FiltersNonStrings(t *testing.T) {
	out := toStringSlice([]interface{}{"a", 1, "b"})
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestToStringSlice_NilForWrongType(t *testing.T) {
	assert.Nil(t, toStringSlice("not a slice"))
}

func TestHandleRPC_UnknownMethodReturnsMethodNotFound(t *testing.T) {
	gw := newTestGateway(t, "http://example.invalid", config.ProjectIDAuto)
	resp := gw.HandleRPC(nil, &authResult{userID: "alice", projectID: "alice"}, JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "bogus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestHandleRPC_ToolsListReturnsCatalogue(t *testing.T) {
	gw := newTestGateway(t, "http://example.invalid", config.ProjectIDAuto)
	resp := gw.HandleRPC(nil, &authResult{userID: "alice", projectID: "alice"}, JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, result["tools"])
}
