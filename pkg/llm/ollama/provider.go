package ollama

import (
	"bytes"
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
)

const defaultTimeout = 120 * time.Second

// OllamaProvider runs vision models (llava, qwen2.5vl, gemma3) through a local Ollama server.
type OllamaProvider struct {
	BaseURL  string
	Timeout  time.Duration
	Client   *http.Client
	defaults llm.Options
}

// Ensure OllamaProvider implements InferenceProvider
var _ llm.InferenceProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL string, timeout time.Duration, opts ...llm.Option) *OllamaProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OllamaProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
		defaults: llm.ApplyOptions(llm.Options{
			Model:       "llava",
			Temperature: 0.7,
		}, opts...),
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string         `json:"model"`
	Message         *ollamaMessage `json:"message"`
	Done            bool           `json:"done"`
	PromptEvalCount int            `json:"prompt_eval_count"`
	EvalCount       int            `json:"eval_count"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Name() string {
	return "ollama"
}

func (o *OllamaProvider) Infer(ctx context.Context, req *llm.InferenceRequest, opts ...llm.Option) (*llm.InferenceResult, error) {
	// 1. Process Options
	options := llm.ApplyOptions(o.defaults, opts...)

	// 2. Encode pages; Ollama wants bare base64 without a data URI prefix
	images := make([]string, 0, len(req.Images))
	for _, page := range req.Images {
		encoded, err := document.EncodePNGBase64(page)
		if err != nil {
			return nil, fmt.Errorf("encode page %d of %s: %w", page.Page, page.Source, err)
		}
		images = append(images, encoded)
	}

	// 3. Prepare Payload
	reqPayload := ollamaChatRequest{
		Model: options.Model,
		Messages: []ollamaMessage{{
			Role:    "user",
			Content: req.Prompt,
			Images:  images,
		}},
		Stream: false,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
		},
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// 4. Send Request
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	url := o.BaseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(httpReq)
	if err != nil {
		return nil, llm.ClassifyTransportError(url, o.Timeout, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.ClassifyTransportError(url, o.Timeout, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, llm.NewProtocolError(resp.StatusCode, bodyBytes, nil)
	}

	// 5. Parse Response
	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return nil, llm.NewProtocolError(http.StatusOK, bodyBytes, err)
	}
	if ollamaResp.Message == nil {
		return nil, llm.NewProtocolError(http.StatusOK, bodyBytes, errors.New("missing message"))
	}

	return &llm.InferenceResult{
		Text: ollamaResp.Message.Content,
		Usage: &llm.Usage{
			PromptTokens:     ollamaResp.PromptEvalCount,
			CompletionTokens: ollamaResp.EvalCount,
			TotalTokens:      ollamaResp.PromptEvalCount + ollamaResp.EvalCount,
		},
	}, nil
}

// Ping lists local models via /api/tags.
func (o *OllamaProvider) Ping(ctx context.Context) error {
	url := o.BaseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return llm.ClassifyTransportError(url, o.Timeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return llm.NewProtocolError(resp.StatusCode, body, nil)
	}
	return nil
}
