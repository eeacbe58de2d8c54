package memsvc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/snorlak1/mem0-server-mcp/internal/apperr"
	"github.com/snorlak1/mem0-server-mcp/internal/auth"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
)

// Handlers is the HTTP boundary over a Service: it decodes requests,
// calls the service, and translates *apperr.Error into the wire error
// envelope. No business logic lives here.
type Handlers struct {
	svc                *Service
	authStore          *auth.Store
	log                logging.Logger
	allowedCORSOrigins []string
}

// NewHandlers builds the HTTP boundary. authStore may be nil in tests
// that don't exercise the admin-gated /reset endpoint.
func NewHandlers(svc *Service, authStore *auth.Store, log logging.Logger, allowedCORSOrigins []string) *Handlers {
	return &Handlers{svc: svc, authStore: authStore, log: log, allowedCORSOrigins: allowedCORSOrigins}
}

// Routes assembles the chi router: Recoverer, request logging, CORS, a
// request-size cap, and a heartbeat, followed by the memory/graph
// endpoints — the same middleware ordering the rest of this codebase's
// HTTP surfaces use.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(h.cors)
	r.Use(chimiddleware.RequestSize(10 * 1024 * 1024))
	r.Use(chimiddleware.Heartbeat("/ping"))

	r.Get("/healthz", h.handleHealthz)

	r.Route("/memories", func(rtr chi.Router) {
		rtr.Post("/", h.handleIngest)
		rtr.Get("/", h.handleList)
		rtr.Get("/{id}", h.handleGet)
		rtr.Put("/{id}", h.handleReplace)
		rtr.Delete("/{id}", h.handleDelete)
		rtr.Get("/{id}/history", h.handleHistory)
	})

	r.Post("/search", h.handleSearch)
	r.Post("/reset", h.handleReset)

	r.Route("/graph", func(rtr chi.Router) {
		rtr.Post("/link", h.handleGraphLink)
		rtr.Get("/related/{id}", h.handleGraphRelated)
		rtr.Get("/path", h.handleGraphPath)
		rtr.Get("/evolution", h.handleGraphEvolution)
		rtr.Get("/superseded", h.handleGraphSuperseded)
		rtr.Post("/component", h.handleGraphCreateComponent)
		rtr.Post("/component/dependency", h.handleGraphComponentDependency)
		rtr.Get("/component/impact", h.handleGraphImpact)
		rtr.Post("/decision", h.handleGraphCreateDecision)
		rtr.Get("/decision/{id}", h.handleGraphDecisionRationale)
		rtr.Get("/communities", h.handleGraphCommunities)
		rtr.Get("/trust/{id}", h.handleGraphTrust)
		rtr.Get("/intelligence", h.handleGraphIntelligence)
		rtr.Post("/sync", h.handleGraphSync)
	})

	return r
}

func (h *Handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if h.log != nil {
			h.log.Debug("memsvc: request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
		}
	})
}

func (h *Handlers) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if h.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-MCP-Token, X-MCP-UserID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if len(h.allowedCORSOrigins) == 0 {
		return true
	}
	for _, o := range h.allowedCORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := h.svc.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "relations": []interface{}{}})
}

func (h *Handlers) handleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	mems, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"memories": mems})
}

func (h *Handlers) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	mem, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (h *Handlers) handleReplace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		UserID  string `json:"user_id"`
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	mem, err := h.svc.Replace(r.Context(), body.UserID, id, body.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (h *Handlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	events, err := h.svc.History(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *Handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := h.svc.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *Handlers) handleReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if !h.isAdmin(r) {
		writeError(w, apperr.New(apperr.Unauthenticated, "unauthorized"))
		return
	}
	if err := h.svc.Reset(r.Context(), body.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

// isAdmin validates the request's MCP headers against the auth store and
// requires the "admin" permission tag. Administrative reset is the one
// REST endpoint that authenticates itself directly rather than relying
// on the MCP Gateway's upstream auth.
func (h *Handlers) isAdmin(r *http.Request) bool {
	if h.authStore == nil {
		return false
	}
	token := r.Header.Get("X-MCP-Token")
	userID := r.Header.Get("X-MCP-UserID")
	if token == "" || userID == "" {
		return false
	}
	rec, err := h.authStore.Validate(r.Context(), token, map[string]string{"remote_addr": r.RemoteAddr})
	if err != nil || rec.UserID != userID {
		return false
	}
	for _, p := range rec.Permissions {
		if p == "admin" {
			return true
		}
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, apperr.Wrap(apperr.BadInput, "malformed request body", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), map[string]string{"detail": apperr.Detail(err)})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
