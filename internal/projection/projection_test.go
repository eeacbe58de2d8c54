package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
)

func TestBuildRetryConfig_MatchesProjectionPolicy(t *testing.T) {
	cfg := config.ProjectionConfig{
		Workers:      4,
		MaxAttempts:  7,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
	}

	rc := BuildRetryConfig(cfg)

	assert.Equal(t, 7, rc.MaxAttempts)
	assert.Equal(t, 1*time.Second, rc.InitialDelay)
	assert.Equal(t, 2.0, rc.Multiplier)
	assert.Equal(t, 0.0, rc.RandomizeFactor)
}

func TestBuildRetryConfig_CumulativeBudgetMatchesSpec(t *testing.T) {
	// 1s, 2s, 4s, 8s, 16s, 32s between 7 attempts: cumulative ~63s.
	rc := BuildRetryConfig(config.ProjectionConfig{
		MaxAttempts:  7,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
	})

	delay := rc.InitialDelay
	var total time.Duration
	for i := 1; i < rc.MaxAttempts; i++ {
		total += delay
		delay *= time.Duration(rc.Multiplier)
	}
	assert.Equal(t, 63*time.Second, total)
}
