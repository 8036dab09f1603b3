package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, int64(1048576), cfg.Session.QuotaBytes)
	assert.Equal(t, 120*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 200, cfg.Session.PDFDPI)
	assert.Equal(t, 4000, cfg.Session.MaxChars)
	assert.Equal(t, AskModeCommand, cfg.Session.AskMode)
	assert.False(t, cfg.SingleShot())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("INFERENCE_PROVIDER", "OpenAI")
	t.Setenv("INFERENCE_TIMEOUT", "30")
	t.Setenv("SESSION_IDLE_TTL", "15m")
	t.Setenv("SESSION_QUOTA_BYTES", "2048")
	t.Setenv("INFERENCE_TEMPERATURE", "0.2")
	t.Setenv("ASK_MODE", "single_shot")
	t.Setenv("REQUIRE_DOCUMENT", "true")

	cfg := Load()
	assert.Equal(t, "openai", cfg.Inference.Provider)
	assert.Equal(t, 30*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, int64(2048), cfg.Session.QuotaBytes)
	assert.InDelta(t, 0.2, cfg.Inference.Temperature, 1e-9)
	assert.True(t, cfg.SingleShot())
	assert.True(t, cfg.Session.RequireDocument)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown provider", env: map[string]string{"INFERENCE_PROVIDER": "gemini"}},
		{name: "bad url", env: map[string]string{"INFERENCE_URL": "not a url"}},
		{name: "bad ask mode", env: map[string]string{"ASK_MODE": "auto"}},
		{name: "zero quota", env: map[string]string{"SESSION_QUOTA_BYTES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Error(t, Load().Validate())
		})
	}
}
