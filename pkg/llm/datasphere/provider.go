package datasphere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"
)

const defaultTimeout = 120 * time.Second

// Provider talks to a vision-language endpoint that takes base64 page images
// plus a prompt and answers with {"text": ..., "image": ...}.
type Provider struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// Ensure Provider implements InferenceProvider
var _ llm.InferenceProvider = &Provider{}

func NewProvider(url string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Provider{
		URL:     url,
		Timeout: timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type inferenceRequest struct {
	RequestID string   `json:"request_id,omitempty"`
	Images    []string `json:"images"`
	Prompt    string   `json:"prompt"`
}

func (p *Provider) Name() string {
	return "datasphere"
}

func (p *Provider) Infer(ctx context.Context, req *llm.InferenceRequest, _ ...llm.Option) (*llm.InferenceResult, error) {
	// 1. Encode pages
	images := make([]string, 0, len(req.Images))
	for _, page := range req.Images {
		encoded, err := document.EncodePNGBase64(page)
		if err != nil {
			return nil, fmt.Errorf("encode page %d of %s: %w", page.Page, page.Source, err)
		}
		images = append(images, encoded)
	}

	payloadBytes, err := json.Marshal(inferenceRequest{
		RequestID: req.RequestID,
		Images:    images,
		Prompt:    req.Prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// 2. Send Request
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, llm.ClassifyTransportError(p.URL, p.Timeout, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.ClassifyTransportError(p.URL, p.Timeout, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, llm.NewProtocolError(resp.StatusCode, bodyBytes, nil)
	}

	// 3. Parse Response
	return llm.Normalize(bodyBytes)
}
