package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

const systemPrompt = `You extract atomic, durable facts worth remembering from
the user's message. Each fact must stand alone without the surrounding
conversation. For each fact, decide whether it is new information (ADD),
a refinement of something already known (UPDATE), or not worth keeping
(NONE). Respond with a JSON array of objects: {"content": string, "action": "ADD"|"UPDATE"|"NONE"}.
Respond with the JSON array and nothing else.`

// Extractor turns raw content into a list of candidate memory facts by
// prompting an LLM provider and parsing its structured response.
type Extractor struct {
	router *Router
}

// NewExtractor builds an Extractor with one client per configured
// provider and a fallback order of ollama -> openai -> anthropic.
func NewExtractor(cfg config.LLMConfig, log logging.Logger) (*Extractor, error) {
	clients := map[string]Client{
		"ollama": NewOllamaClient(cfg, log),
	}
	if cfg.OpenAIAPIKey != "" {
		c, err := NewOpenAIClient(cfg, log)
		if err != nil {
			return nil, err
		}
		clients["openai"] = c
	}
	if cfg.AnthropicAPIKey != "" {
		c, err := NewAnthropicClient(cfg, log)
		if err != nil {
			return nil, err
		}
		clients["anthropic"] = c
	}

	router := NewRouter(cfg.Provider, clients, []string{"ollama", "openai", "anthropic"})
	router.SetTimeout(cfg.ExtractionTimeout)

	return &Extractor{router: router}, nil
}

// Extract asks the configured provider to decompose content into atomic
// memory facts. An empty result is valid: it means nothing in content was
// worth remembering.
func (e *Extractor) Extract(ctx context.Context, content string) ([]types.ExtractedMemory, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("extraction: content cannot be empty")
	}

	resp, err := e.router.Complete(ctx, CompletionRequest{
		Prompt:        content,
		SystemMessage: systemPrompt,
		MaxTokens:     2000,
		Temperature:   0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: completion failed: %w", err)
	}

	return parseExtractedMemories(resp.Content)
}

// HealthCheck reports reachability of every configured provider.
func (e *Extractor) HealthCheck(ctx context.Context) map[string]error {
	return e.router.HealthCheck(ctx)
}

func parseExtractedMemories(raw string) ([]types.ExtractedMemory, error) {
	raw = stripCodeFence(raw)

	var items []types.ExtractedMemory
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("extraction: malformed LLM response: %w", err)
	}

	out := make([]types.ExtractedMemory, 0, len(items))
	for _, item := range items {
		if item.Action == "" {
			item.Action = types.ActionNone
		}
		if item.Action == types.ActionNone || strings.TrimSpace(item.Content) == "" {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// stripCodeFence removes a surrounding ```json ... ``` fence some models
// wrap structured output in despite being told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
