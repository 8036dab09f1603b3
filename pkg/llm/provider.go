package llm

import (
	"context"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
)

// InferenceRequest is built once per ask and discarded after the call.
type InferenceRequest struct {
	RequestID string
	Images    []document.RenderedPage
	Texts     []string
	Prompt    string
}

// Usage is reported by chat-completion backends only.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InferenceResult is the backend-independent answer.
type InferenceResult struct {
	Text string
	// Image is an optional base64 payload, possibly with a data-URI header.
	Image string
	Usage *Usage
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ApplyOptions folds opts over the given defaults.
func ApplyOptions(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// InferenceProvider defines the contract for any vision-language backend.
// Implementations enforce their own timeout and never retry.
type InferenceProvider interface {
	Name() string
	Infer(ctx context.Context, req *InferenceRequest, opts ...Option) (*InferenceResult, error)
}

// Pinger is implemented by backends that can be probed for reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
