// Package extraction turns raw chunk content into atomic memory facts
// using a pluggable LLM provider, with a fallback chain across providers.
package extraction

import (
	"context"
	"time"
)

// Client is the simplified interface every LLM provider implements.
type Client interface {
	// Complete sends a completion request to the provider.
	Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)

	// Capabilities describes what this provider supports.
	Capabilities() ClientCapabilities
}

// CompletionRequest is a request to an LLM.
type CompletionRequest struct {
	Prompt        string        `json:"prompt"`
	Model         string        `json:"model"`
	SystemMessage string        `json:"system_message,omitempty"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Temperature   float64       `json:"temperature,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
}

// CompletionResponse is an LLM's reply to a CompletionRequest.
type CompletionResponse struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Provider     string     `json:"provider"`
}

// TokenUsage reports the token accounting for one completion call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ClientCapabilities describes what an LLM client supports.
type ClientCapabilities struct {
	Provider        string   `json:"provider"`
	SupportedModels []string `json:"supported_models"`
	MaxTokens       int      `json:"max_tokens"`
}
