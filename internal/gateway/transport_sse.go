package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SSETransport is the compatibility transport for MCP clients that
// cannot issue a POST per tool call: it holds a long-lived event stream
// per client and accepts commands on a companion endpoint, pairing them
// by client id.
type SSETransport struct {
	gw                *Gateway
	heartbeatInterval time.Duration
	eventBufferSize   int

	mu      sync.RWMutex
	clients map[string]*sseClient
}

type sseClient struct {
	events  chan sseEvent
	done    chan struct{}
	flusher http.Flusher
}

type sseEvent struct {
	id   string
	kind string
	data interface{}
}

// NewSSETransport builds an SSE transport bound to a Gateway.
func NewSSETransport(gw *Gateway) *SSETransport {
	return &SSETransport{
		gw:                gw,
		heartbeatInterval: 30 * time.Second,
		eventBufferSize:   100,
		clients:           make(map[string]*sseClient),
	}
}

// StreamHandler serves GET /sse/ — the long-lived event stream.
func (t *SSETransport) StreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}
		if _, err := t.gw.authenticate(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		clientID := uuid.NewString()
		client := &sseClient{events: make(chan sseEvent, t.eventBufferSize), done: make(chan struct{}), flusher: flusher}

		t.mu.Lock()
		t.clients[clientID] = client
		t.mu.Unlock()

		t.send(client, sseEvent{kind: "connected", data: map[string]string{"client_id": clientID}})
		t.run(w, r, client)

		t.mu.Lock()
		delete(t.clients, clientID)
		t.mu.Unlock()
		close(client.events)
	})
}

func (t *SSETransport) run(w http.ResponseWriter, r *http.Request, client *sseClient) {
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case ev := <-client.events:
			if err := writeSSEEvent(w, ev); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			client.flusher.Flush()
		}
	}
}

// CommandHandler serves POST /sse/command — a JSON-RPC request paired
// with an X-MCP-Client-ID header, delivered to the matching stream.
func (t *SSETransport) CommandHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req JSONRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}

		ar, err := t.gw.authenticate(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		resp := t.gw.HandleRPC(r.Context(), ar, req)

		clientID := r.Header.Get("X-MCP-Client-ID")
		t.mu.RLock()
		client, exists := t.clients[clientID]
		t.mu.RUnlock()

		if exists {
			select {
			case client.events <- sseEvent{id: fmt.Sprintf("%v", req.ID), kind: "response", data: resp}:
				w.WriteHeader(http.StatusAccepted)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
				return
			default:
			}
		}

		writeRPCResponse(w, resp)
	})
}

func (t *SSETransport) send(client *sseClient, ev sseEvent) {
	select {
	case client.events <- ev:
	default:
	}
}

func writeSSEEvent(w http.ResponseWriter, ev sseEvent) error {
	if ev.id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.id); err != nil {
			return err
		}
	}
	if ev.kind != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.kind); err != nil {
			return err
		}
	}
	data, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
