package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	defaultTimeout     = 120 * time.Second
	defaultModel       = "local-model"
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// Provider speaks the OpenAI chat-completions protocol (LM Studio, vLLM, llama.cpp server, OpenAI).
type Provider struct {
	baseURL  string
	timeout  time.Duration
	client   *goopenai.Client
	defaults llm.Options
}

// Ensure Provider implements InferenceProvider
var _ llm.InferenceProvider = &Provider{}

// NewProvider accepts either a base URL (".../v1") or the full
// ".../v1/chat/completions" endpoint.
func NewProvider(endpoint, apiKey string, timeout time.Duration, opts ...llm.Option) *Provider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := BaseURL(endpoint)

	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Provider{
		baseURL: baseURL,
		timeout: timeout,
		client:  goopenai.NewClientWithConfig(cfg),
		defaults: llm.ApplyOptions(llm.Options{
			Model:       defaultModel,
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
		}, opts...),
	}
}

// BaseURL strips the chat-completions path so the client can append its own routes.
func BaseURL(endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	return strings.TrimSuffix(endpoint, "/chat/completions")
}

func (p *Provider) Name() string {
	return "openai"
}

func (p *Provider) Infer(ctx context.Context, req *llm.InferenceRequest, opts ...llm.Option) (*llm.InferenceResult, error) {
	options := llm.ApplyOptions(p.defaults, opts...)

	message, err := buildMessage(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    []goopenai.ChatCompletionMessage{message},
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return nil, p.mapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.NewProtocolError(http.StatusOK, nil, errors.New("no choices in response"))
	}

	return &llm.InferenceResult{
		Text: resp.Choices[0].Message.Content,
		Usage: &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Ping lists models, which LM Studio and OpenAI both serve at /v1/models.
func (p *Provider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := p.client.ListModels(ctx); err != nil {
		return p.mapError(err)
	}
	return nil
}

// buildMessage puts every page first and the prompt last, the order the model was tuned on.
func buildMessage(req *llm.InferenceRequest) (goopenai.ChatCompletionMessage, error) {
	if len(req.Images) == 0 {
		return goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleUser,
			Content: req.Prompt,
		}, nil
	}

	parts := make([]goopenai.ChatMessagePart, 0, len(req.Images)+1)
	for _, page := range req.Images {
		encoded, err := document.EncodePNGBase64(page)
		if err != nil {
			return goopenai.ChatCompletionMessage{}, fmt.Errorf("encode page %d of %s: %w", page.Page, page.Source, err)
		}
		parts = append(parts, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{
				URL:    "data:image/png;base64," + encoded,
				Detail: goopenai.ImageURLDetailAuto,
			},
		})
	}
	parts = append(parts, goopenai.ChatMessagePart{
		Type: goopenai.ChatMessagePartTypeText,
		Text: req.Prompt,
	})

	return goopenai.ChatCompletionMessage{
		Role:         goopenai.ChatMessageRoleUser,
		MultiContent: parts,
	}, nil
}

func (p *Provider) mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewProtocolError(apiErr.HTTPStatusCode, []byte(apiErr.Message), err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return llm.NewProtocolError(reqErr.HTTPStatusCode, nil, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return llm.NewProtocolError(http.StatusOK, nil, err)
	}

	return llm.ClassifyTransportError(p.baseURL, p.timeout, err)
}
