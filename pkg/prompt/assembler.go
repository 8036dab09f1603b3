package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/store"

	"github.com/google/uuid"
)

const instruction = "Проанализируй содержимое документа и дай развернутый ответ."

// ErrDocumentRequired is returned when the assembler is configured to refuse text-only requests.
var ErrDocumentRequired = errors.New("at least one document is required")

// Assembler turns a drained session batch into a single inference request.
type Assembler struct {
	Rasterizer      document.Rasterizer
	RequireDocument bool
}

func NewAssembler(rasterizer document.Rasterizer, requireDocument bool) *Assembler {
	return &Assembler{
		Rasterizer:      rasterizer,
		RequireDocument: requireDocument,
	}
}

// Assemble renders every asset in insertion order and builds the prompt text.
// A non-empty question is treated as the latest text of the batch.
func (a *Assembler) Assemble(batch store.Batch, question string) (*llm.InferenceRequest, error) {
	if a.RequireDocument && len(batch.Assets) == 0 {
		return nil, ErrDocumentRequired
	}

	pages, err := a.render(batch.Assets)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(batch.Texts)+1)
	texts = append(texts, batch.Texts...)
	if q := strings.TrimSpace(question); q != "" {
		texts = append(texts, q)
	}

	return &llm.InferenceRequest{
		RequestID: uuid.NewString(),
		Images:    pages,
		Texts:     texts,
		Prompt:    Build(texts, batch.Assets),
	}, nil
}

func (a *Assembler) render(assets []store.DocumentAsset) ([]document.RenderedPage, error) {
	var pages []document.RenderedPage
	for _, asset := range assets {
		switch asset.Kind {
		case store.KindPDF:
			rendered, err := a.Rasterizer.Rasterize(asset.DisplayName, asset.Data)
			if err != nil {
				return nil, err
			}
			pages = append(pages, rendered...)
		case store.KindImage:
			page, err := document.DecodeImage(asset)
			if err != nil {
				return nil, err
			}
			pages = append(pages, page)
		default:
			return nil, &document.UnsupportedFormatError{Filename: asset.DisplayName}
		}
	}
	return pages, nil
}

// Build renders the prompt text: questions first, then the attachment listing, then the instruction.
func Build(texts []string, assets []store.DocumentAsset) string {
	var parts []string

	switch len(texts) {
	case 0:
	case 1:
		parts = append(parts, "Вопрос: "+texts[0])
	default:
		for i, t := range texts {
			parts = append(parts, fmt.Sprintf("Текст %d:\n%s", i+1, t))
		}
	}

	if len(assets) > 0 {
		var listing strings.Builder
		listing.WriteString("Приложенные файлы:")
		for i, asset := range assets {
			fmt.Fprintf(&listing, "\n%d. %s (%s, %d байт)", i+1, asset.DisplayName, asset.Kind, asset.Size())
		}
		parts = append(parts, listing.String())
	}

	parts = append(parts, instruction)
	return strings.Join(parts, "\n\n")
}
