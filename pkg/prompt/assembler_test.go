package prompt

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRasterizer struct {
	pages int
	err   error
	calls []string
}

func (f *fakeRasterizer) Rasterize(name string, data []byte) ([]document.RenderedPage, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	pages := make([]document.RenderedPage, f.pages)
	for i := range pages {
		pages[i] = document.RenderedPage{
			Image:  image.NewGray(image.Rect(0, 0, 1, 1)),
			Source: name,
			Page:   i + 1,
		}
	}
	return pages, nil
}

func pngAsset(t *testing.T, name string) store.DocumentAsset {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))))
	return store.DocumentAsset{Kind: store.KindImage, Data: buf.Bytes(), DisplayName: name}
}

func TestBuild(t *testing.T) {
	assets := []store.DocumentAsset{
		{Kind: store.KindImage, Data: make([]byte, 10), DisplayName: "a.png"},
		{Kind: store.KindPDF, Data: make([]byte, 20), DisplayName: "b.pdf"},
	}

	tests := []struct {
		name   string
		texts  []string
		assets []store.DocumentAsset
		want   string
	}{
		{
			name:  "single text",
			texts: []string{"Что это?"},
			want:  "Вопрос: Что это?\n\n" + instruction,
		},
		{
			name:  "several texts",
			texts: []string{"первый", "второй"},
			want:  "Текст 1:\nпервый\n\nТекст 2:\nвторой\n\n" + instruction,
		},
		{
			name: "nothing",
			want: instruction,
		},
		{
			name:   "text with attachments",
			texts:  []string{"Сравни"},
			assets: assets,
			want:   "Вопрос: Сравни\n\nПриложенные файлы:\n1. a.png (image, 10 байт)\n2. b.pdf (pdf, 20 байт)\n\n" + instruction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(tt.texts, tt.assets))
		})
	}
}

func TestAssemblePagesInAssetOrder(t *testing.T) {
	raster := &fakeRasterizer{pages: 3}
	a := NewAssembler(raster, false)

	batch := store.Batch{
		UserID: "u1",
		Texts:  []string{"Опиши"},
		Assets: []store.DocumentAsset{
			pngAsset(t, "first.png"),
			{Kind: store.KindPDF, Data: []byte("%PDF"), DisplayName: "doc.pdf"},
			pngAsset(t, "last.png"),
		},
	}

	req, err := a.Assemble(batch, "")
	require.NoError(t, err)
	require.Len(t, req.Images, 5)

	sources := make([]string, 0, len(req.Images))
	for _, p := range req.Images {
		sources = append(sources, p.Source)
	}
	assert.Equal(t, []string{"first.png", "doc.pdf", "doc.pdf", "doc.pdf", "last.png"}, sources)
	assert.Equal(t, 2, req.Images[2].Page)
	assert.Equal(t, []string{"doc.pdf"}, raster.calls)
	assert.NotEmpty(t, req.RequestID)
	assert.Contains(t, req.Prompt, "Вопрос: Опиши")
}

func TestAssembleQuestionIsLatestText(t *testing.T) {
	a := NewAssembler(&fakeRasterizer{}, false)

	req, err := a.Assemble(store.Batch{Texts: []string{"контекст"}}, "  вопрос  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"контекст", "вопрос"}, req.Texts)
	assert.Equal(t, "Текст 1:\nконтекст\n\nТекст 2:\nвопрос\n\n"+instruction, req.Prompt)
}

func TestAssembleTextOnly(t *testing.T) {
	req, err := NewAssembler(&fakeRasterizer{}, false).Assemble(store.Batch{Texts: []string{"привет"}}, "")
	require.NoError(t, err)
	assert.Empty(t, req.Images)
}

func TestAssembleRequireDocument(t *testing.T) {
	_, err := NewAssembler(&fakeRasterizer{}, true).Assemble(store.Batch{Texts: []string{"привет"}}, "")
	assert.ErrorIs(t, err, ErrDocumentRequired)
}

func TestAssembleConversionFailure(t *testing.T) {
	convErr := &document.ConversionError{Name: "bad.pdf", Err: errors.New("broken xref")}
	a := NewAssembler(&fakeRasterizer{err: convErr}, false)

	_, err := a.Assemble(store.Batch{Assets: []store.DocumentAsset{{Kind: store.KindPDF, Data: []byte("x"), DisplayName: "bad.pdf"}}}, "")
	var target *document.ConversionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "bad.pdf", target.Name)

	_, err = a.Assemble(store.Batch{Assets: []store.DocumentAsset{{Kind: store.KindImage, Data: []byte("not an image"), DisplayName: "x.png"}}}, "")
	assert.ErrorAs(t, err, &target)
}
