package llm

import (
	"encoding/json"
	"errors"
	"net/http"
)

// rawResponse is the union of the two answer shapes the backends produce:
// a flat {"text": ...} body and a chat-completion {"choices": [...]} body.
type rawResponse struct {
	Text    *string `json:"text"`
	Image   string  `json:"image"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// Normalize decodes a 200 response body of either shape into an InferenceResult.
func Normalize(body []byte) (*InferenceResult, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewProtocolError(http.StatusOK, body, err)
	}

	if raw.Choices != nil {
		if len(raw.Choices) == 0 {
			return nil, NewProtocolError(http.StatusOK, body, errors.New("no choices in response"))
		}
		content := raw.Choices[0].Message.Content
		if content == nil {
			return nil, NewProtocolError(http.StatusOK, body, errors.New("missing message content"))
		}
		return &InferenceResult{Text: *content, Image: raw.Image, Usage: raw.Usage}, nil
	}

	if raw.Text != nil {
		return &InferenceResult{Text: *raw.Text, Image: raw.Image, Usage: raw.Usage}, nil
	}

	return nil, NewProtocolError(http.StatusOK, body, errors.New("response has neither text nor choices"))
}
