package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Router tries a configured provider first, then falls back to the other
// registered providers in registration order.
type Router struct {
	primary string
	clients map[string]Client
	order   []string
	timeout time.Duration
}

// NewRouter builds a Router. primary names the provider to try first;
// order fixes the deterministic fallback sequence for the rest.
func NewRouter(primary string, clients map[string]Client, order []string) *Router {
	return &Router{
		primary: primary,
		clients: clients,
		order:   order,
		timeout: 30 * time.Second,
	}
}

// SetTimeout overrides the per-attempt timeout.
func (r *Router) SetTimeout(d time.Duration) { r.timeout = d }

// Complete attempts the primary provider, then each fallback in order,
// returning the first success.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	chain := r.chain()
	if len(chain) == 0 {
		return nil, errors.New("extraction: no providers configured")
	}

	var lastErr error
	for _, name := range chain {
		client, ok := r.clients[name]
		if !ok {
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		resp, err := client.Complete(attemptCtx, req)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", name, err)
			continue
		}
		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no configured provider was reachable")
	}
	return nil, fmt.Errorf("extraction: all providers failed, last error: %w", lastErr)
}

// chain returns the primary provider followed by the rest of order, with
// the primary itself removed from the tail; other repeated names in
// order are kept.
func (r *Router) chain() []string {
	chain := []string{r.primary}
	for _, name := range r.order {
		if name != r.primary {
			chain = append(chain, name)
		}
	}
	return chain
}

// HealthCheck reports reachability of every registered provider by
// sending each one a minimal completion, since Client has no HealthCheck
// method of its own.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error, len(r.clients))
	for name, client := range r.clients {
		_, err := client.Complete(ctx, CompletionRequest{Prompt: "health check", MaxTokens: 4})
		results[name] = err
	}
	return results
}
