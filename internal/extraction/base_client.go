package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snorlak1/mem0-server-mcp/internal/logging"
)

// BaseConfig is the common configuration shared by every provider.
type BaseConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// AuthProvider adds provider-specific authentication to a request.
type AuthProvider interface {
	AddAuth(req *http.Request, apiKey string)
}

// RequestConverter turns a CompletionRequest into a provider wire body.
type RequestConverter interface {
	ConvertRequest(req CompletionRequest, cfg BaseConfig) (interface{}, error)
}

// ResponseConverter turns a provider wire response into CompletionResponse.
type ResponseConverter interface {
	ConvertResponse(data []byte) (*CompletionResponse, error)
}

// ProviderDefaults fills in a BaseConfig's unset fields.
type ProviderDefaults struct {
	BaseURL   string
	Model     string
	MaxTokens int
}

// BaseClient provides the HTTP plumbing shared by every LLM provider; each
// provider supplies its own AuthProvider/RequestConverter/ResponseConverter.
type BaseClient struct {
	config     BaseConfig
	httpClient *http.Client
	auth       AuthProvider
	reqConv    RequestConverter
	respConv   ResponseConverter
	log        logging.Logger
}

// NewBaseClient builds a BaseClient, applying provider defaults to any
// zero-valued config fields.
func NewBaseClient(config BaseConfig, defaults ProviderDefaults, auth AuthProvider, reqConv RequestConverter, respConv ResponseConverter, log logging.Logger) *BaseClient {
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &BaseClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		auth:       auth,
		reqConv:    reqConv,
		respConv:   respConv,
		log:        log,
	}
}

// Complete sends a completion request through the provider's converters.
func (b *BaseClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	providerReq, err := b.reqConv.ConvertRequest(req, b.config)
	if err != nil {
		return nil, fmt.Errorf("extraction: convert request: %w", err)
	}

	data, err := b.call(ctx, providerReq)
	if err != nil {
		return nil, fmt.Errorf("extraction: provider call failed: %w", err)
	}

	resp, err := b.respConv.ConvertResponse(data)
	if err != nil {
		return nil, fmt.Errorf("extraction: convert response: %w", err)
	}
	return resp, nil
}

func (b *BaseClient) call(ctx context.Context, body interface{}) ([]byte, error) {
	if body == nil {
		return nil, errors.New("extraction: request body cannot be nil")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	b.auth.AddAuth(httpReq, b.config.APIKey)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && b.log != nil {
			b.log.Warn("extraction: failed to close response body", "error", cerr)
		}
	}()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(out))
	}
	return out, nil
}
