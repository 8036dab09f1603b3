package response

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode/utf8"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"
)

const (
	DefaultMaxChars = 4000
	TruncatedSuffix = "\n\n... (сообщение обрезано)"
	EmptyAnswer     = "Пустой ответ от модели"
	imageWarning    = "\n\n⚠️ Не удалось обработать изображение из ответа модели."
)

// ImageDecodeError means the reply image could not be decoded; the text answer is still delivered.
type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode reply image: %v", e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// Reply is what a transport sends back to the user.
type Reply struct {
	Text  string
	Image []byte
	// Warning is set when part of the answer had to be dropped.
	Warning error
}

// HasImage reports whether the reply should go out as a photo with caption.
func (r Reply) HasImage() bool {
	return len(r.Image) > 0
}

type Dispatcher struct {
	MaxChars int
}

func NewDispatcher(maxChars int) *Dispatcher {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Dispatcher{MaxChars: maxChars}
}

// Dispatch never fails: a broken image degrades to a text-only reply with a warning line.
func (d *Dispatcher) Dispatch(result *llm.InferenceResult) Reply {
	if result == nil {
		return Reply{Text: EmptyAnswer}
	}

	text := result.Text
	if strings.TrimSpace(text) == "" && result.Image == "" {
		text = EmptyAnswer
	}

	reply := Reply{Text: Truncate(text, d.MaxChars)}

	if result.Image != "" {
		img, err := DecodeImagePayload(result.Image)
		if err != nil {
			reply.Warning = err
			reply.Text += imageWarning
		} else {
			reply.Image = img
		}
	}

	return reply
}

// Truncate cuts text to exactly maxChars characters plus the truncation marker.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars]) + TruncatedSuffix
}

// DecodeImagePayload strips an optional data-URI header and checks the bytes are a known image format.
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, &ImageDecodeError{Err: fmt.Errorf("data uri without payload")}
		}
		payload = payload[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, &ImageDecodeError{Err: err}
		}
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return nil, &ImageDecodeError{Err: err}
	}
	return raw, nil
}
