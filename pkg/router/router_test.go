package router

import (
	"testing"

	"github.com/pario-ai/pariopipe/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestFallbacksDefaults(t *testing.T) {
	r := New(config.Default())

	assert.Equal(t,
		[]string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"},
		r.Fallbacks("claude-sonnet-4-20250514"))
	assert.Equal(t, []string{"claude-3-5-haiku-20241022"}, r.Fallbacks("claude-3-5-sonnet-20241022"))

	haiku := r.Fallbacks("claude-3-5-haiku-20241022")
	assert.NotNil(t, haiku)
	assert.Empty(t, haiku)
}

func TestFallbacksUnknownModel(t *testing.T) {
	r := New(config.Default())
	got := r.Fallbacks("gpt-4o")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFallbacksCleaned(t *testing.T) {
	cfg := &config.Config{
		Fallbacks: map[string][]string{
			"big": {"", "big", "medium", "small", "medium"},
		},
	}
	r := New(cfg)
	assert.Equal(t, []string{"medium", "small"}, r.Fallbacks("big"))
	assert.Equal(t, []string{"big", "medium", "small"}, r.Chain("big"))
}

func TestFallbacksStable(t *testing.T) {
	r := New(config.Default())
	first := r.Fallbacks("claude-sonnet-4-20250514")
	first[0] = "mutated"

	second := r.Fallbacks("claude-sonnet-4-20250514")
	assert.Equal(t, "claude-3-5-sonnet-20241022", second[0])
}

func TestDowngrade(t *testing.T) {
	r := New(config.Default())

	next, ok := r.Downgrade("claude-sonnet-4-20250514")
	assert.True(t, ok)
	assert.Equal(t, "claude-3-5-sonnet-20241022", next)

	_, ok = r.Downgrade("claude-3-5-haiku-20241022")
	assert.False(t, ok)
}

func TestChainWithoutFallbacks(t *testing.T) {
	r := New(&config.Config{})
	assert.Equal(t, []string{"solo"}, r.Chain("solo"))
	assert.Empty(t, r.Models())
}
