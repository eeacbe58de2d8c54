package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/snorlak1/mem0-server-mcp/internal/apperr"
	"github.com/snorlak1/mem0-server-mcp/internal/auth"
	"github.com/snorlak1/mem0-server-mcp/internal/chunking"
	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
)

// TokenHeader and UserHeader are the two headers every MCP request must
// carry (spec §4.1/§6).
const (
	TokenHeader   = "X-MCP-Token"
	UserHeader    = "X-MCP-UserID"
	ProjectHeader = "X-MCP-Project-Path"
)

// Gateway authenticates requests, derives an effective project scope,
// chunks oversized ingestion text, and dispatches tool calls to the
// Memory Service.
type Gateway struct {
	authStore *auth.Store
	client    *Client
	chunker   *chunking.Splitter
	cfg       config.GatewayConfig
	log       logging.Logger
}

// New builds a Gateway from its dependencies.
func New(authStore *auth.Store, client *Client, chunkingCfg config.ChunkingConfig, cfg config.GatewayConfig, log logging.Logger) *Gateway {
	return &Gateway{
		authStore: authStore,
		client:    client,
		chunker:   chunking.NewSplitter(chunkingCfg),
		cfg:       cfg,
		log:       log,
	}
}

// authResult carries the outcome of header authentication plus the
// effective project scope derived for this request.
type authResult struct {
	userID    string
	projectID string
}

// authenticate validates the request's MCP headers against the auth
// store per spec §4.1 step 1, then derives the effective project_id.
func (g *Gateway) authenticate(r *http.Request) (*authResult, error) {
	token := r.Header.Get(TokenHeader)
	userID := r.Header.Get(UserHeader)
	if token == "" || userID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "missing X-MCP-Token or X-MCP-UserID")
	}

	rec, err := g.authStore.Validate(r.Context(), token, map[string]string{"remote_addr": r.RemoteAddr})
	if err != nil {
		return nil, apperr.Newf(apperr.Unauthenticated, "Invalid authentication token")
	}
	if rec.UserID != userID {
		return nil, apperr.Newf(apperr.Unauthenticated, "Invalid authentication token")
	}

	return &authResult{userID: userID, projectID: g.deriveProjectID(r, userID)}, nil
}

// deriveProjectID implements the three PROJECT_ID_MODE strategies from
// spec §4.1 step 2.
func (g *Gateway) deriveProjectID(r *http.Request, userID string) string {
	switch g.cfg.ProjectIDMode {
	case config.ProjectIDManual, config.ProjectIDGlobal:
		if g.cfg.DefaultUserID != "" {
			return g.cfg.DefaultUserID
		}
		return userID
	default: // auto
		path := r.Header.Get(ProjectHeader)
		if path == "" {
			return userID
		}
		sum := sha256.Sum256([]byte(path))
		return "prj_" + hex.EncodeToString(sum[:])[:8]
	}
}

// HandleRPC processes one JSON-RPC request and returns the matching
// response. method dispatch covers the subset of the MCP protocol this
// gateway needs: initialize, tools/list, tools/call.
func (g *Gateway) HandleRPC(ctx context.Context, ar *authResult, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
			"protocolVersion": Version,
			"capabilities":    map[string]interface{}{"tools": map[string]bool{"listChanged": false}},
			"serverInfo":      map[string]string{"name": "mem0-server-mcp", "version": Version},
		}}
	case "tools/list":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{"tools": toolCatalogue()}}
	case "tools/call":
		return g.handleToolCall(ctx, ar, req)
	default:
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: newRPCError(MethodNotFound, "method not found: "+req.Method)}
	}
}

func (g *Gateway) handleToolCall(ctx context.Context, ar *authResult, req JSONRPCRequest) *JSONRPCResponse {
	raw, err := json.Marshal(req.Params)
	if err != nil {
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: newRPCError(InvalidParams, "malformed params")}
	}
	var params ToolCallParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: newRPCError(InvalidParams, "malformed tool call")}
	}

	result, err := g.dispatch(ctx, ar.projectID, params)
	if err != nil {
		result = errorResult(err.Error())
	}
	return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (g *Gateway) dispatch(ctx context.Context, projectID string, params ToolCallParams) (*ToolCallResult, error) {
	switch params.Name {
	case "add_coding_preference":
		return g.addCodingPreference(ctx, projectID, params.Arguments)
	case "search_coding_preferences":
		return g.searchCodingPreferences(ctx, projectID, params.Arguments)
	case "get_all_coding_preferences":
		return g.getAllCodingPreferences(ctx, projectID)
	case "delete_memory":
		return g.deleteMemory(ctx, projectID, params.Arguments)
	case "get_memory_history":
		return g.getMemoryHistory(ctx, projectID, params.Arguments)
	case "link_memories":
		return g.linkMemories(ctx, params.Arguments)
	case "get_related_memories":
		return g.getRelatedMemories(ctx, params.Arguments)
	case "analyze_memory_intelligence":
		return g.analyzeMemoryIntelligence(ctx, projectID)
	case "create_component":
		return g.createComponent(ctx, params.Arguments)
	case "link_component_dependency":
		return g.linkComponentDependency(ctx, params.Arguments)
	case "analyze_component_impact":
		return g.analyzeComponentImpact(ctx, params.Arguments)
	case "create_decision":
		return g.createDecision(ctx, projectID, params.Arguments)
	case "get_decision_rationale":
		return g.getDecisionRationale(ctx, params.Arguments)
	default:
		return nil, fmt.Errorf("unknown tool: %s", params.Name)
	}
}

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func toJSON(v interface{}) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
