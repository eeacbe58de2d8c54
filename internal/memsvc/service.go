// Package memsvc implements the Memory Service: the stateless REST layer
// over the vector store, the extraction pipeline, and the relationship
// graph. It is the synchronous write/read path the MCP Gateway (and any
// other HTTP client) calls into.
package memsvc

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/snorlak1/mem0-server-mcp/internal/apperr"
	"github.com/snorlak1/mem0-server-mcp/internal/embeddings"
	"github.com/snorlak1/mem0-server-mcp/internal/extraction"
	"github.com/snorlak1/mem0-server-mcp/internal/graph"
	"github.com/snorlak1/mem0-server-mcp/internal/history"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
	"github.com/snorlak1/mem0-server-mcp/internal/projection"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
	"github.com/snorlak1/mem0-server-mcp/internal/vectorstore"
)

// Service wires the vector store, extractor, embedder, graph engine,
// projection pool and history log into the operations the REST layer
// calls. Handlers are a thin HTTP translation over this type.
type Service struct {
	vs         vectorstore.Store
	emb        embeddings.Service
	extractor  *extraction.Extractor
	graphEng   *graph.Engine
	projection *projection.Pool
	history    *history.Store
	log        logging.Logger

	similarityThreshold float64
}

// New builds a Service from its already-constructed dependencies.
func New(vs vectorstore.Store, emb embeddings.Service, extractor *extraction.Extractor, graphEng *graph.Engine, proj *projection.Pool, hist *history.Store, log logging.Logger, similarityThreshold float64) *Service {
	return &Service{
		vs:                  vs,
		emb:                 emb,
		extractor:           extractor,
		graphEng:            graphEng,
		projection:          proj,
		history:             hist,
		log:                 log,
		similarityThreshold: similarityThreshold,
	}
}

// IngestMessage is one entry of the messages[] array submitted to
// POST /memories.
type IngestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IngestRequest is the body of POST /memories.
type IngestRequest struct {
	Messages []IngestMessage        `json:"messages"`
	UserID   string                 `json:"user_id"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	AgentID  string                 `json:"agent_id,omitempty"`
	RunID    string                 `json:"run_id,omitempty"`
}

// Ingest runs the extraction algorithm from spec §4.2: call the LLM,
// ADD or UPDATE memories, write history, schedule graph projection, and
// return before projection completes.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) ([]types.ExtractionResult, error) {
	if req.UserID == "" {
		return nil, apperr.New(apperr.BadInput, "user_id is required")
	}
	raw := joinMessages(req.Messages)
	if raw == "" {
		return nil, apperr.New(apperr.BadInput, "messages cannot be empty")
	}

	extracted, err := s.extractor.Extract(ctx, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "extraction failed", err)
	}

	results := make([]types.ExtractionResult, 0, len(extracted))
	for _, item := range extracted {
		var result *types.ExtractionResult
		switch item.Action {
		case types.ActionAdd:
			result, err = s.add(ctx, req, item.Content)
		case types.ActionUpdate:
			result, err = s.applyUpdate(ctx, req, item.Content)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		if result == nil {
			continue
		}
		results = append(results, *result)
		if s.projection != nil {
			s.projection.Submit(result.Memory)
		}
	}
	return results, nil
}

func (s *Service) add(ctx context.Context, req IngestRequest, content string) (*types.ExtractionResult, error) {
	vec, err := s.emb.Generate(ctx, content)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "embedding failed", err)
	}

	now := time.Now().UTC()
	meta := mergeMetadata(req.Metadata, req.AgentID, req.RunID)
	mem := types.Memory{
		ID:          uuid.NewString(),
		OwnerID:     req.UserID,
		Content:     content,
		Embedding:   vec,
		Metadata:    meta,
		ContentHash: types.HashContent(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.vs.Insert(ctx, mem); err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "insert failed", err)
	}

	event := types.HistoryEvent{MemoryID: mem.ID, Kind: types.EventAdd, NewContent: content, Timestamp: now}
	s.appendHistory(ctx, event)

	return &types.ExtractionResult{ID: mem.ID, Memory: mem, Event: &event, CreatedAt: now}, nil
}

// applyUpdate identifies the superseded memory by similarity within the
// user's scope (spec §4.2 step 3); if none clears the threshold the
// update is dropped rather than guessed at.
func (s *Service) applyUpdate(ctx context.Context, req IngestRequest, content string) (*types.ExtractionResult, error) {
	vec, err := s.emb.Generate(ctx, content)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "embedding failed", err)
	}

	hits, err := s.vs.Search(ctx, vec, vectorstore.SearchFilter{OwnerID: req.UserID, Limit: 1})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "search failed", err)
	}
	if len(hits) == 0 || float64(hits[0].Score) < s.similarityThreshold {
		return nil, nil
	}

	existing, err := s.vs.Get(ctx, req.UserID, hits[0].ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "fetch target failed", err)
	}

	now := time.Now().UTC()
	prev := existing.Content
	existing.Content = content
	existing.Embedding = vec
	existing.ContentHash = types.HashContent(content)
	existing.UpdatedAt = now
	if req.Metadata != nil {
		existing.Metadata = mergeMetadata(req.Metadata, req.AgentID, req.RunID)
	}

	if err := s.vs.Update(ctx, *existing); err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "update failed", err)
	}

	event := types.HistoryEvent{MemoryID: existing.ID, Kind: types.EventUpdate, PrevContent: prev, NewContent: content, Timestamp: now}
	s.appendHistory(ctx, event)

	return &types.ExtractionResult{ID: existing.ID, Memory: *existing, Event: &event, CreatedAt: now}, nil
}

// Get fetches one memory, enforcing ownership: a mismatch is
// access_denied, never not_found, so existence is never leaked.
func (s *Service) Get(ctx context.Context, userID, id string) (*types.Memory, error) {
	mem, err := s.vs.GetAny(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "lookup failed", err)
	}
	if mem == nil {
		return nil, apperr.Newf(apperr.NotFound, "memory %s not found", id)
	}
	if mem.OwnerID != userID {
		return nil, apperr.Newf(apperr.AccessDenied, "Access denied: Memory %s does not belong to user %s", id, userID)
	}
	return mem, nil
}

// List returns every memory owned by userID.
func (s *Service) List(ctx context.Context, userID string) ([]types.Memory, error) {
	mems, err := s.vs.ListByOwner(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list failed", err)
	}
	return mems, nil
}

// Replace overwrites a memory's content, re-embeds it, and writes an
// UPDATE history event.
func (s *Service) Replace(ctx context.Context, userID, id, content string) (*types.Memory, error) {
	mem, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	vec, err := s.emb.Generate(ctx, content)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "embedding failed", err)
	}

	prev := mem.Content
	mem.Content = content
	mem.Embedding = vec
	mem.ContentHash = types.HashContent(content)
	mem.UpdatedAt = time.Now().UTC()

	if err := s.vs.Update(ctx, *mem); err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "update failed", err)
	}

	s.appendHistory(ctx, types.HistoryEvent{MemoryID: mem.ID, Kind: types.EventUpdate, PrevContent: prev, NewContent: content, Timestamp: mem.UpdatedAt})
	if s.projection != nil {
		s.projection.Submit(*mem)
	}
	return mem, nil
}

// Delete removes a memory, writes a DELETE history event, and removes
// its graph node.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	mem, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.vs.Delete(ctx, userID, id); err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "delete failed", err)
	}

	s.appendHistory(ctx, types.HistoryEvent{MemoryID: id, Kind: types.EventDelete, PrevContent: mem.Content, Timestamp: time.Now().UTC()})

	if s.graphEng != nil {
		if err := s.graphEng.RemoveMemoryNode(ctx, userID, id); err != nil && s.log != nil {
			s.log.Warn("memsvc: failed to remove graph node on delete", "memory_id", id, "error", err.Error())
		}
	}
	return nil
}

// History returns the ordered lifecycle events for a memory, scoped to
// its owner.
func (s *Service) History(ctx context.Context, userID, id string) ([]types.HistoryEvent, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	events, err := s.history.List(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "history lookup failed", err)
	}
	return events, nil
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query   string                 `json:"query"`
	UserID  string                 `json:"user_id"`
	Limit   int                    `json:"limit,omitempty"`
	Filters map[string]interface{} `json:"filters,omitempty"`
	AgentID string                 `json:"agent_id,omitempty"`
	RunID   string                 `json:"run_id,omitempty"`
}

// Search embeds the query once and runs a k-NN search scoped to the
// caller's owner_id.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]types.SearchResult, error) {
	if req.UserID == "" {
		return nil, apperr.New(apperr.BadInput, "user_id is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.emb.Generate(ctx, req.Query)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "embedding failed", err)
	}

	results, err := s.vs.Search(ctx, vec, vectorstore.SearchFilter{OwnerID: req.UserID, Metadata: req.Filters, Limit: limit})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "search failed", err)
	}
	return results, nil
}

// Reset wipes every memory owned by userID. Callers must have verified
// admin scope before calling this.
func (s *Service) Reset(ctx context.Context, userID string) error {
	if err := s.vs.DeleteAll(ctx, userID); err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "reset failed", err)
	}
	return nil
}

// Sync re-runs graph projection for every memory owned by userID,
// exposed administratively as POST /graph/sync for manual recovery when
// a memory's automatic projection exhausted its retry budget.
func (s *Service) Sync(ctx context.Context, userID string) (int, error) {
	mems, err := s.vs.ListByOwner(ctx, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.StoreUnavailable, "list failed", err)
	}
	for _, mem := range mems {
		if s.projection != nil {
			s.projection.Submit(mem)
		}
	}
	return len(mems), nil
}

func (s *Service) appendHistory(ctx context.Context, ev types.HistoryEvent) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, ev); err != nil && s.log != nil {
		s.log.Error("memsvc: failed to append history", "memory_id", ev.MemoryID, "error", err.Error())
	}
}

func joinMessages(msgs []IngestMessage) string {
	out := ""
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += m.Content
	}
	return out
}

func mergeMetadata(base map[string]interface{}, agentID, runID string) map[string]interface{} {
	meta := make(map[string]interface{}, len(base)+2)
	for k, v := range base {
		meta[k] = v
	}
	if agentID != "" {
		meta["agent_id"] = agentID
	}
	if runID != "" {
		meta["run_id"] = runID
	}
	return meta
}
