package datasphere

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPage() document.RenderedPage {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return document.RenderedPage{Image: img, Source: "a.png"}
}

func TestInferSendsImagesAndPrompt(t *testing.T) {
	var got inferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"text":"A red dot."}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, time.Second)
	res, err := p.Infer(context.Background(), &llm.InferenceRequest{
		RequestID: "req-1",
		Images:    []document.RenderedPage{testPage(), testPage()},
		Prompt:    "What is this?",
	})
	require.NoError(t, err)
	assert.Equal(t, "A red dot.", res.Text)
	assert.Len(t, got.Images, 2)
	assert.Equal(t, "What is this?", got.Prompt)
	assert.Equal(t, "req-1", got.RequestID)
	assert.NotEmpty(t, got.Images[0])
}

func TestInferNon200IsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := NewProvider(srv.URL, time.Second).Infer(context.Background(), &llm.InferenceRequest{Prompt: "x"})
	var protoErr *llm.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, http.StatusInternalServerError, protoErr.Status)
	assert.Equal(t, "boom", protoErr.Body)
}

func TestInferMalformedBodyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewProvider(srv.URL, time.Second).Infer(context.Background(), &llm.InferenceRequest{Prompt: "x"})
	var protoErr *llm.ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestInferTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewProvider(srv.URL, 50*time.Millisecond).Infer(context.Background(), &llm.InferenceRequest{Prompt: "x"})
	var timeoutErr *llm.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
}

func TestInferUnreachableIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewProvider(url, time.Second).Infer(context.Background(), &llm.InferenceRequest{Prompt: "x"})
	var connErr *llm.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, url, connErr.Endpoint)
}

func TestInferCanceledCallerIsNotConnectionError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := NewProvider(srv.URL, 5*time.Second).Infer(ctx, &llm.InferenceRequest{Prompt: "x"})
	var canceledErr *llm.CanceledError
	require.ErrorAs(t, err, &canceledErr)

	var connErr *llm.ConnectionError
	assert.False(t, errors.As(err, &connErr))
}
