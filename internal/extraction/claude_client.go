package extraction

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
)

// anthropicAuth sets the x-api-key / anthropic-version headers.
type anthropicAuth struct{}

func (anthropicAuth) AddAuth(req *http.Request, apiKey string) {
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Content []anthropicContent `json:"content"`
	Model   string             `json:"model"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicConverter struct{}

func (anthropicConverter) ConvertRequest(req CompletionRequest, cfg BaseConfig) (interface{}, error) {
	return anthropicRequest{
		Model:       cfg.Model,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		System:      req.SystemMessage,
	}, nil
}

func (anthropicConverter) ConvertResponse(data []byte) (*CompletionResponse, error) {
	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("anthropic error: %s", parsed.Error.Message)
	}

	var text string
	if len(parsed.Content) > 0 {
		text = parsed.Content[0].Text
	}

	return &CompletionResponse{
		Content:  text,
		Model:    parsed.Model,
		Provider: "anthropic",
		Usage: TokenUsage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

// AnthropicClient implements Client for Anthropic's Messages API.
type AnthropicClient struct {
	*BaseClient
}

// NewAnthropicClient builds an AnthropicClient from config.
func NewAnthropicClient(cfg config.LLMConfig, log logging.Logger) (*AnthropicClient, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("extraction: anthropic api key is required")
	}

	base := NewBaseClient(
		BaseConfig{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.AnthropicModel,
			MaxTokens:   4000,
			Temperature: 0.2,
			Timeout:     cfg.ExtractionTimeout,
		},
		ProviderDefaults{
			BaseURL:   "https://api.anthropic.com/v1/messages",
			Model:     "claude-3-5-haiku-latest",
			MaxTokens: 4000,
		},
		anthropicAuth{},
		anthropicConverter{},
		anthropicConverter{},
		log,
	)
	return &AnthropicClient{BaseClient: base}, nil
}

func (c *AnthropicClient) Capabilities() ClientCapabilities {
	return ClientCapabilities{
		Provider:        "anthropic",
		SupportedModels: []string{"claude-3-5-haiku-latest", "claude-3-5-sonnet-latest"},
		MaxTokens:       4000,
	}
}
