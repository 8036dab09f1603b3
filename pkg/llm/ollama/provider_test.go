package ollama

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Infer(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"Таблица"},"done":true,"prompt_eval_count":7,"eval_count":3}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", time.Second, llm.WithModel("qwen2.5vl"), llm.WithMaxTokens(64))
	res, err := p.Infer(context.Background(), &llm.InferenceRequest{
		Images: []document.RenderedPage{{Image: image.NewGray(image.Rect(0, 0, 1, 1)), Source: "a.png", Page: 1}},
		Prompt: "Что на картинке?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Таблица", res.Text)
	assert.Equal(t, 10, res.Usage.TotalTokens)
	assert.Equal(t, "qwen2.5vl", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Len(t, got.Messages[0].Images, 1)
	assert.Equal(t, 64, got.Options.NumPredict)
}

func TestOllamaProvider_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{name: "model not found", status: http.StatusNotFound, body: `{"error":"model not found"}`, wantStatus: http.StatusNotFound},
		{name: "malformed body", status: http.StatusOK, body: `{"message":`, wantStatus: http.StatusOK},
		{name: "no message", status: http.StatusOK, body: `{"done":true}`, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOllamaProvider(srv.URL, time.Second).Infer(context.Background(), &llm.InferenceRequest{Prompt: "x"})
			var protoErr *llm.ProtocolError
			require.ErrorAs(t, err, &protoErr)
			assert.Equal(t, tt.wantStatus, protoErr.Status)
		})
	}
}

func TestOllamaProvider_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	p := NewOllamaProvider(srv.URL, time.Second)
	require.NoError(t, p.Ping(context.Background()))

	srv.Close()
	var connErr *llm.ConnectionError
	assert.ErrorAs(t, p.Ping(context.Background()), &connErr)
}
