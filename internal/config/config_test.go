package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOVERNOR_REQUEST_CAPACITY", "")
	t.Setenv("LLM_PROVIDER", "ollama")

	cfg := Load()

	assert.Equal(t, 8, cfg.Governor.RequestCapacity)
	assert.Equal(t, 4, cfg.Governor.OperationCapacity)
	assert.Equal(t, 30*time.Second, cfg.Governor.ShutdownTimeout)
	assert.Equal(t, 0.3, cfg.Resolver.Threshold)
	assert.Equal(t, "memory", cfg.Session.DedupBackend)
	assert.Equal(t, "ollama", cfg.Ai.LLMProvider)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GOVERNOR_REQUEST_CAPACITY", "2")
	t.Setenv("GOVERNOR_LLM_TIMEOUT", "1500ms")
	t.Setenv("GOVERNOR_LOOKUP_TIMEOUT", "7")
	t.Setenv("RESOLVER_FUZZY_THRESHOLD", "0.55")
	t.Setenv("SPEECH_ENABLED", "true")
	t.Setenv("GO_ENV", "production")

	cfg := Load()

	assert.Equal(t, 2, cfg.Governor.RequestCapacity)
	assert.Equal(t, 1500*time.Millisecond, cfg.Governor.LLMTimeout)
	assert.Equal(t, 7*time.Second, cfg.Governor.LookupTimeout)
	assert.Equal(t, 0.55, cfg.Resolver.Threshold)
	assert.True(t, cfg.Speech.Enabled)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvAsDurationFallback(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvAsDuration("SOME_DURATION", time.Minute))
}
