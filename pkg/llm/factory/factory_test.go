package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInferenceProvider(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantName string
		wantErr  bool
	}{
		{name: "datasphere", settings: Settings{Provider: "datasphere", URL: "http://h/infer"}, wantName: "datasphere"},
		{name: "default is datasphere", settings: Settings{URL: "http://h/infer"}, wantName: "datasphere"},
		{name: "openai", settings: Settings{Provider: "openai", URL: "http://h/v1", Model: "m"}, wantName: "openai"},
		{name: "lmstudio alias", settings: Settings{Provider: "lmstudio", URL: "http://h/v1"}, wantName: "openai"},
		{name: "ollama", settings: Settings{Provider: "ollama", URL: "http://localhost:11434", Model: "llava"}, wantName: "ollama"},
		{name: "missing url", settings: Settings{Provider: "openai"}, wantErr: true},
		{name: "unknown provider", settings: Settings{Provider: "gemini", URL: "http://h"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewInferenceProvider(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}
