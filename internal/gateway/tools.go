package gateway

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-viper/mapstructure/v2"

	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// addCodingPreferenceArgs and searchCodingPreferencesArgs are decoded
// from the tool call's loosely-typed JSON arguments with mapstructure,
// the same pattern the MCP template tools use for their request params.
type addCodingPreferenceArgs struct {
	Text string `mapstructure:"text"`
}

type searchCodingPreferencesArgs struct {
	Query string `mapstructure:"query"`
	Limit int    `mapstructure:"limit"`
}

func decodeArgs(args map[string]interface{}, out interface{}) error {
	return mapstructure.Decode(args, out)
}

// toolCatalogue describes every tool this gateway exposes, per spec
// §4.1's tool list. Input schemas are intentionally loose (the Memory
// Service re-validates everything) — they exist so MCP clients can
// render a reasonable form.
func toolCatalogue() []Tool {
	str := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc}
	}
	obj := func(props map[string]interface{}, required ...string) map[string]interface{} {
		return map[string]interface{}{"type": "object", "properties": props, "required": required}
	}
	return []Tool{
		{Name: "add_coding_preference", Description: "Store a coding preference or fact, chunking oversized text", InputSchema: obj(map[string]interface{}{
			"text": str("the preference or fact to remember"),
		}, "text")},
		{Name: "search_coding_preferences", Description: "Semantic search over stored preferences", InputSchema: obj(map[string]interface{}{
			"query": str("search query"),
			"limit": map[string]interface{}{"type": "integer", "description": "max results"},
		}, "query")},
		{Name: "get_all_coding_preferences", Description: "List every preference for the caller's project", InputSchema: obj(map[string]interface{}{})},
		{Name: "delete_memory", Description: "Delete one memory by id", InputSchema: obj(map[string]interface{}{"memory_id": str("memory id")}, "memory_id")},
		{Name: "get_memory_history", Description: "List the append-only history of one memory", InputSchema: obj(map[string]interface{}{"memory_id": str("memory id")}, "memory_id")},
		{Name: "link_memories", Description: "Create an edge between two memories", InputSchema: obj(map[string]interface{}{
			"from": str("source memory id"), "to": str("target memory id"), "relation": str("edge kind"),
		}, "from", "to", "relation")},
		{Name: "get_related_memories", Description: "Traverse the memory graph from one node", InputSchema: obj(map[string]interface{}{
			"memory_id": str("memory id"), "depth": map[string]interface{}{"type": "integer"},
		}, "memory_id")},
		{Name: "analyze_memory_intelligence", Description: "Summarize graph-wide intelligence for the caller's project", InputSchema: obj(map[string]interface{}{})},
		{Name: "create_component", Description: "Register a codebase component node", InputSchema: obj(map[string]interface{}{
			"name": str("component name"), "kind": str("component kind"),
		}, "name", "kind")},
		{Name: "link_component_dependency", Description: "Link two components with a dependency edge", InputSchema: obj(map[string]interface{}{
			"from": str("dependent component"), "to": str("dependency component"), "tag": str("dependency tag"),
		}, "from", "to")},
		{Name: "analyze_component_impact", Description: "Find what would be impacted by changing a component", InputSchema: obj(map[string]interface{}{"name": str("component name")}, "name")},
		{Name: "create_decision", Description: "Record a decision with pros/cons/alternatives", InputSchema: obj(map[string]interface{}{
			"text": str("decision text"),
		}, "text")},
		{Name: "get_decision_rationale", Description: "Fetch the rationale behind a recorded decision", InputSchema: obj(map[string]interface{}{"decision_id": str("decision id")}, "decision_id")},
	}
}

func (g *Gateway) addCodingPreference(ctx context.Context, projectID string, args map[string]interface{}) (*ToolCallResult, error) {
	var parsed addCodingPreferenceArgs
	if err := decodeArgs(args, &parsed); err != nil {
		return nil, fmt.Errorf("add_coding_preference: invalid arguments: %w", err)
	}
	chunks, err := g.chunker.Split(parsed.Text)
	if err != nil {
		return nil, fmt.Errorf("add_coding_preference: %w", err)
	}

	type ingestResponse struct {
		Results []types.ExtractionResult `json:"results"`
	}

	var allResults []types.ExtractionResult
	var failedChunks int
	for _, chunk := range chunks {
		body := map[string]interface{}{
			"messages": []map[string]string{{"role": "user", "content": chunk.Content}},
			"user_id":  projectID,
			"metadata": map[string]interface{}{
				"chunk_index":  chunk.Meta.ChunkIndex,
				"total_chunks": chunk.Meta.TotalChunks,
				"chunk_size":   chunk.Meta.ChunkSize,
				"has_overlap":  chunk.Meta.HasOverlap,
				"run_id":       chunk.Meta.RunID,
			},
		}
		var resp ingestResponse
		if err := g.client.do(ctx, "POST", "/memories/", body, &resp); err != nil {
			failedChunks++
			continue
		}
		allResults = append(allResults, resp.Results...)
	}

	if failedChunks > 0 && len(allResults) == 0 {
		return nil, fmt.Errorf("add_coding_preference: all %d chunks failed to ingest", len(chunks))
	}

	summary := map[string]interface{}{
		"chunks_total":  len(chunks),
		"chunks_failed": failedChunks,
		"results":       allResults,
	}
	return textResult(toJSON(summary)), nil
}

func (g *Gateway) searchCodingPreferences(ctx context.Context, projectID string, args map[string]interface{}) (*ToolCallResult, error) {
	parsed := searchCodingPreferencesArgs{Limit: 10}
	if err := decodeArgs(args, &parsed); err != nil {
		return nil, fmt.Errorf("search_coding_preferences: invalid arguments: %w", err)
	}
	var resp struct {
		Results []types.SearchResult `json:"results"`
	}
	body := map[string]interface{}{
		"query":   parsed.Query,
		"user_id": projectID,
		"limit":   parsed.Limit,
	}
	if err := g.client.do(ctx, "POST", "/search", body, &resp); err != nil {
		return nil, fmt.Errorf("search_coding_preferences: %w", err)
	}
	return textResult(toJSON(resp.Results)), nil
}

func (g *Gateway) getAllCodingPreferences(ctx context.Context, projectID string) (*ToolCallResult, error) {
	var resp struct {
		Memories []types.Memory `json:"memories"`
	}
	path := "/memories/?user_id=" + url.QueryEscape(projectID)
	if err := g.client.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get_all_coding_preferences: %w", err)
	}
	return textResult(toJSON(resp.Memories)), nil
}

func (g *Gateway) deleteMemory(ctx context.Context, projectID string, args map[string]interface{}) (*ToolCallResult, error) {
	id := argString(args, "memory_id")
	path := "/memories/" + url.PathEscape(id) + "?user_id=" + url.QueryEscape(projectID)
	var resp struct {
		Deleted bool `json:"deleted"`
	}
	if err := g.client.do(ctx, "DELETE", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("delete_memory: %w", err)
	}
	return textResult(toJSON(resp)), nil
}

func (g *Gateway) getMemoryHistory(ctx context.Context, projectID string, args map[string]interface{}) (*ToolCallResult, error) {
	id := argString(args, "memory_id")
	path := "/memories/" + url.PathEscape(id) + "/history?user_id=" + url.QueryEscape(projectID)
	var resp struct {
		Events []types.HistoryEvent `json:"events"`
	}
	if err := g.client.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get_memory_history: %w", err)
	}
	return textResult(toJSON(resp.Events)), nil
}

func (g *Gateway) linkMemories(ctx context.Context, args map[string]interface{}) (*ToolCallResult, error) {
	body := map[string]interface{}{"a": argString(args, "from"), "b": argString(args, "to"), "relation": argString(args, "relation")}
	var resp types.Edge
	if err := g.client.do(ctx, "POST", "/graph/link", body, &resp); err != nil {
		return nil, fmt.Errorf("link_memories: %w", err)
	}
	return textResult(toJSON(resp)), nil
}

func (g *Gateway) getRelatedMemories(ctx context.Context, args map[string]interface{}) (*ToolCallResult, error) {
	id := argString(args, "memory_id")
	depth := argInt(args, "depth", 2)
	path := fmt.Sprintf("/graph/related/%s?depth=%d", url.PathEscape(id), depth)
	var resp struct {
		Related []types.RelatedNode `json:"related"`
	}
	if err := g.client.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get_related_memories: %w", err)
	}
	return textResult(toJSON(resp.Related)), nil
}

func (g *Gateway) analyzeMemoryIntelligence(ctx context.Context, projectID string) (*ToolCallResult, error) {
	path := "/graph/intelligence?user_id=" + url.QueryEscape(projectID)
	var resp types.IntelligenceReport
	if err := g.client.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("analyze_memory_intelligence: %w", err)
	}
	return textResult(toJSON(resp)), nil
}

func (g *Gateway) createComponent(ctx context.Context, args map[string]interface{}) (*ToolCallResult, error) {
	body := map[string]interface{}{"name": argString(args, "name"), "kind": argString(args, "kind")}
	var resp struct {
		Created bool `json:"created"`
	}
	if err := g.client.do(ctx, "POST", "/graph/component", body, &resp); err != nil {
		return nil, fmt.Errorf("create_component: %w", err)
	}
	return textResult(toJSON(resp)), nil
}

func (g *Gateway) linkComponentDependency(ctx context.Context, args map[string]interface{}) (*ToolCallResult, error) {
	body := map[string]interface{}{"from": argString(args, "from"), "to": argString(args, "to"), "tag": argString(args, "tag")}
	var resp types.Edge
	if err := g.client.do(ctx, "POST", "/graph/component/dependency", body, &resp); err != nil {
		return nil, fmt.Errorf("link_component_dependency: %w", err)
	}
	return textResult(toJSON(resp)), nil
}

func (g *Gateway) analyzeComponentImpact(ctx context.Context, args map[string]interface{}) (*ToolCallResult, error) {
	path := "/graph/component/impact?name=" + url.QueryEscape(argString(args, "name"))
	var resp struct {
		Impact []types.ComponentImpact `json:"impact"`
	}
	if err := g.client.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("analyze_component_impact: %w", err)
	}
	return textResult(toJSON(resp.Impact)), nil
}

func (g *Gateway) createDecision(ctx context.Context, projectID string, args map[string]interface{}) (*ToolCallResult, error) {
	body := map[string]interface{}{
		"text":         argString(args, "text"),
		"owner_id":     projectID,
		"pros":         toStringSlice(args["pros"]),
		"cons":         toStringSlice(args["cons"]),
		"alternatives": toStringSlice(args["alternatives"]),
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := g.client.do(ctx, "POST", "/graph/decision", body, &resp); err != nil {
		return nil, fmt.Errorf("create_decision: %w", err)
	}
	return textResult(toJSON(resp)), nil
}

func (g *Gateway) getDecisionRationale(ctx context.Context, args map[string]interface{}) (*ToolCallResult, error) {
	id := argString(args, "decision_id")
	path := "/graph/decision/" + url.PathEscape(id)
	var resp interface{}
	if err := g.client.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get_decision_rationale: %w", err)
	}
	return textResult(toJSON(resp)), nil
}

func toStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
