package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
)

// OllamaService generates embeddings via a local Ollama server's
// /api/embeddings endpoint.
type OllamaService struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewOllamaService builds an Ollama-backed embedding service from config.
func NewOllamaService(cfg config.EmbeddingConfig) *OllamaService {
	return &OllamaService{
		baseURL:    cfg.OllamaURL,
		model:      cfg.OllamaModel,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (s *OllamaService) Generate(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{Model: s.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embeddings: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embeddings: decode response: %w", err)
	}
	return parsed.Embedding, nil
}

func (s *OllamaService) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Generate(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embeddings: batch item %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (s *OllamaService) Dimensions() int { return s.dimensions }

func (s *OllamaService) HealthCheck(ctx context.Context) error {
	_, err := s.Generate(ctx, "health check")
	return err
}
