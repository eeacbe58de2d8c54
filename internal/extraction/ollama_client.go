package extraction

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
)

type noAuth struct{}

func (noAuth) AddAuth(*http.Request, string) {}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaConverter struct{}

func (ollamaConverter) ConvertRequest(req CompletionRequest, cfg BaseConfig) (interface{}, error) {
	return ollamaGenerateRequest{
		Model:  cfg.Model,
		Prompt: req.Prompt,
		System: req.SystemMessage,
		Stream: false,
	}, nil
}

func (ollamaConverter) ConvertResponse(data []byte) (*CompletionResponse, error) {
	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal ollama response: %w", err)
	}
	return &CompletionResponse{
		Content:  parsed.Response,
		Model:    parsed.Model,
		Provider: "ollama",
	}, nil
}

// OllamaClient implements Client against a local Ollama server's
// /api/generate endpoint. It is the default, no-API-key provider.
type OllamaClient struct {
	*BaseClient
}

// NewOllamaClient builds an OllamaClient from config.
func NewOllamaClient(cfg config.LLMConfig, log logging.Logger) *OllamaClient {
	base := NewBaseClient(
		BaseConfig{
			Model:   cfg.OllamaModel,
			Timeout: cfg.ExtractionTimeout,
		},
		ProviderDefaults{
			BaseURL: cfg.OllamaURL + "/api/generate",
			Model:   "llama3",
		},
		noAuth{},
		ollamaConverter{},
		ollamaConverter{},
		log,
	)
	return &OllamaClient{BaseClient: base}
}

func (c *OllamaClient) Capabilities() ClientCapabilities {
	return ClientCapabilities{Provider: "ollama", SupportedModels: []string{"llama3"}}
}
