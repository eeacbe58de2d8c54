package memsvc

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snorlak1/mem0-server-mcp/internal/apperr"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// These handlers mirror internal/graph.Engine's operations directly over
// HTTP per spec §6 ("/graph/* endpoints mirror the engine operations in
// §4.4"). They are thin: validation plus a single Engine call each.

func (h *Handlers) graphEngine() bool { return h.svc.graphEng != nil }

func (h *Handlers) handleGraphLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		A        string `json:"a"`
		B        string `json:"b"`
		Relation string `json:"relation"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if !h.graphEngine() {
		writeError(w, apperr.New(apperr.StoreUnavailable, "graph engine not configured"))
		return
	}
	edge, err := h.svc.graphEng.LinkMemories(r.Context(), body.A, body.B, types.EdgeKind(body.Relation))
	if err != nil {
		writeError(w, apperr.Wrap(apperr.StoreUnavailable, "link failed", err))
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (h *Handlers) handleGraphRelated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	depth := queryInt(r, "depth", 2)
	if !h.graphEngine() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"related": []interface{}{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"related": h.svc.graphEng.GetRelatedMemories(id, depth)})
}

func (h *Handlers) handleGraphPath(w http.ResponseWriter, r *http.Request) {
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	if !h.graphEngine() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"path": []interface{}{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"path": h.svc.graphEng.FindPath(a, b)})
}

func (h *Handlers) handleGraphEvolution(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	since := parseTimeOrZero(r.URL.Query().Get("since"))
	until := parseTimeOrNow(r.URL.Query().Get("until"))
	if !h.graphEngine() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"memories": []interface{}{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"memories": h.svc.graphEng.GetMemoryEvolution(topic, since, until)})
}

func (h *Handlers) handleGraphSuperseded(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if !h.graphEngine() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"memory_ids": []string{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"memory_ids": h.svc.graphEng.FindSupersededMemories(userID)})
}

func (h *Handlers) handleGraphCreateComponent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if !h.graphEngine() {
		writeError(w, apperr.New(apperr.StoreUnavailable, "graph engine not configured"))
		return
	}
	if err := h.svc.graphEng.CreateComponent(r.Context(), body.Name, body.Kind); err != nil {
		writeError(w, apperr.Wrap(apperr.StoreUnavailable, "create component failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"created": true})
}

func (h *Handlers) handleGraphComponentDependency(w http.ResponseWriter, r *http.Request) {
	var body struct {
		From string `json:"from"`
		To   string `json:"to"`
		Tag  string `json:"tag"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if !h.graphEngine() {
		writeError(w, apperr.New(apperr.StoreUnavailable, "graph engine not configured"))
		return
	}
	edge, err := h.svc.graphEng.LinkComponentDependency(r.Context(), body.From, body.To, body.Tag)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.StoreUnavailable, "link dependency failed", err))
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (h *Handlers) handleGraphImpact(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if !h.graphEngine() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"impact": []interface{}{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"impact": h.svc.graphEng.GetImpactAnalysis(name)})
}

func (h *Handlers) handleGraphCreateDecision(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text         string   `json:"text"`
		OwnerID      string   `json:"owner_id"`
		Pros         []string `json:"pros"`
		Cons         []string `json:"cons"`
		Alternatives []string `json:"alternatives"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if !h.graphEngine() {
		writeError(w, apperr.New(apperr.StoreUnavailable, "graph engine not configured"))
		return
	}
	id, err := h.svc.graphEng.CreateDecision(r.Context(), body.Text, body.OwnerID, body.Pros, body.Cons, body.Alternatives)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.StoreUnavailable, "create decision failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handlers) handleGraphDecisionRationale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.graphEngine() {
		writeError(w, apperr.New(apperr.NotFound, "decision not found"))
		return
	}
	rationale, err := h.svc.graphEng.GetDecisionRationale(id)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.NotFound, "decision not found", err))
		return
	}
	writeJSON(w, http.StatusOK, rationale)
}

func (h *Handlers) handleGraphCommunities(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if !h.graphEngine() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"communities": map[string]int{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"communities": h.svc.graphEng.DetectMemoryCommunities(userID)})
}

func (h *Handlers) handleGraphTrust(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.graphEngine() {
		writeJSON(w, http.StatusOK, map[string]float64{"trust_score": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"trust_score": h.svc.graphEng.CalculateTrustScore(id)})
}

func (h *Handlers) handleGraphIntelligence(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if !h.graphEngine() {
		writeError(w, apperr.New(apperr.StoreUnavailable, "graph engine not configured"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.graphEng.AnalyzeMemoryIntelligence(userID))
}

func (h *Handlers) handleGraphSync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	n, err := h.svc.Sync(r.Context(), body.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"scheduled": n})
}

func parseTimeOrZero(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimeOrNow(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
