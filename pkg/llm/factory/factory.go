package factory

import (
	"fmt"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm/datasphere"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm/ollama"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm/openai"
)

// Settings mirrors the inference part of the application config.
type Settings struct {
	Provider    string
	URL         string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

func NewInferenceProvider(s Settings) (llm.InferenceProvider, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("inference url is required for provider %q", s.Provider)
	}

	switch s.Provider {
	case "datasphere", "":
		return datasphere.NewProvider(s.URL, s.Timeout), nil
	case "openai", "lmstudio":
		return openai.NewProvider(s.URL, s.APIKey, s.Timeout, s.options()...), nil
	case "ollama":
		return ollama.NewOllamaProvider(s.URL, s.Timeout, s.options()...), nil
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", s.Provider)
	}
}

// options keeps provider defaults for every setting left at zero.
func (s Settings) options() []llm.Option {
	var opts []llm.Option
	if s.Model != "" {
		opts = append(opts, llm.WithModel(s.Model))
	}
	if s.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(s.Temperature))
	}
	if s.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(s.MaxTokens))
	}
	return opts
}
