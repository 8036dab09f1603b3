package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantText  string
		wantImage string
		wantErr   bool
	}{
		{name: "flat text", body: `{"text":"hello"}`, wantText: "hello"},
		{name: "flat text with image", body: `{"text":"see","image":"aGk="}`, wantText: "see", wantImage: "aGk="},
		{name: "empty text is still an answer", body: `{"text":""}`, wantText: ""},
		{name: "chat completion", body: `{"choices":[{"message":{"role":"assistant","content":"answer"}}]}`, wantText: "answer"},
		{name: "choices win over text", body: `{"text":"ignored","choices":[{"message":{"content":"used"}}]}`, wantText: "used"},
		{name: "empty choices", body: `{"choices":[]}`, wantErr: true},
		{name: "missing content", body: `{"choices":[{"message":{"role":"assistant"}}]}`, wantErr: true},
		{name: "neither shape", body: `{"result":"x"}`, wantErr: true},
		{name: "malformed json", body: `{"text":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Normalize([]byte(tt.body))
			if tt.wantErr {
				var protoErr *ProtocolError
				require.ErrorAs(t, err, &protoErr)
				assert.Equal(t, http.StatusOK, protoErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, res.Text)
			assert.Equal(t, tt.wantImage, res.Image)
		})
	}
}

func TestNormalizeCarriesUsage(t *testing.T) {
	res, err := Normalize([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	require.NoError(t, err)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 15, res.Usage.TotalTokens)
}

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

var _ net.Error = timeoutNetErr{}

func TestClassifyTransportError(t *testing.T) {
	var timeoutErr *TimeoutError
	var connErr *ConnectionError

	err := ClassifyTransportError("http://x", time.Second, context.DeadlineExceeded)
	assert.ErrorAs(t, err, &timeoutErr)

	err = ClassifyTransportError("http://x", time.Second, timeoutNetErr{})
	assert.ErrorAs(t, err, &timeoutErr)

	var canceledErr *CanceledError
	err = ClassifyTransportError("http://x", time.Second, fmt.Errorf("Post \"http://x\": %w", context.Canceled))
	assert.ErrorAs(t, err, &canceledErr)
	assert.False(t, errors.As(err, &connErr))

	err = ClassifyTransportError("http://x", time.Second, errors.New("connection refused"))
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "http://x", connErr.Endpoint)
}

func TestNewProtocolErrorTrimsBody(t *testing.T) {
	body := make([]byte, 2000)
	for i := range body {
		body[i] = 'a'
	}
	err := NewProtocolError(http.StatusInternalServerError, body, nil)
	assert.Len(t, err.Body, maxErrorBody+3)
	assert.Contains(t, err.Error(), "status 500")
}

func TestApplyOptions(t *testing.T) {
	opts := ApplyOptions(Options{Model: "m", Temperature: 0.7, MaxTokens: 100}, WithMaxTokens(50), WithModel("other"))
	assert.Equal(t, "other", opts.Model)
	assert.Equal(t, 50, opts.MaxTokens)
	assert.InDelta(t, 0.7, opts.Temperature, 1e-9)
}
