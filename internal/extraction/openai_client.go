package extraction

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
)

type bearerAuth struct{}

func (bearerAuth) AddAuth(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openAIConverter struct{}

func (openAIConverter) ConvertRequest(req CompletionRequest, cfg BaseConfig) (interface{}, error) {
	messages := make([]openAIChatMessage, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: req.SystemMessage})
	}
	messages = append(messages, openAIChatMessage{Role: "user", Content: req.Prompt})

	return openAIChatRequest{
		Model:       cfg.Model,
		Messages:    messages,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, nil
}

func (openAIConverter) ConvertResponse(data []byte) (*CompletionResponse, error) {
	var parsed openAIChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal openai response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai response had no choices")
	}

	return &CompletionResponse{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		Provider:     "openai",
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// OpenAIClient implements Client for OpenAI's chat completions API.
type OpenAIClient struct {
	*BaseClient
}

// NewOpenAIClient builds an OpenAIClient from config.
func NewOpenAIClient(cfg config.LLMConfig, log logging.Logger) (*OpenAIClient, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("extraction: openai api key is required")
	}

	base := NewBaseClient(
		BaseConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			MaxTokens:   4000,
			Temperature: 0.2,
			Timeout:     cfg.ExtractionTimeout,
		},
		ProviderDefaults{
			BaseURL:   "https://api.openai.com/v1/chat/completions",
			Model:     "gpt-4o-mini",
			MaxTokens: 4000,
		},
		bearerAuth{},
		openAIConverter{},
		openAIConverter{},
		log,
	)
	return &OpenAIClient{BaseClient: base}, nil
}

func (c *OpenAIClient) Capabilities() ClientCapabilities {
	return ClientCapabilities{
		Provider:        "openai",
		SupportedModels: []string{"gpt-4o", "gpt-4o-mini"},
		MaxTokens:       4000,
	}
}
