// Package embeddings provides the interface and provider implementations
// used to turn memory content into vectors for the vector store.
package embeddings

import "context"

// Service generates text embeddings for storage and search.
type Service interface {
	// Generate creates an embedding for a single text.
	Generate(ctx context.Context, text string) ([]float32, error)

	// GenerateBatch creates embeddings for multiple texts in one call.
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector width this service produces.
	Dimensions() int

	// HealthCheck verifies the provider is reachable.
	HealthCheck(ctx context.Context) error
}
