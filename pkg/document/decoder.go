package document

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/store"
)

// DecodeImage turns an image asset into a single rendered page.
// Only the first frame of an animated GIF is kept.
func DecodeImage(asset store.DocumentAsset) (RenderedPage, error) {
	img, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		return RenderedPage{}, &ConversionError{Name: asset.DisplayName, Err: err}
	}

	return RenderedPage{
		Image:    img,
		Source:   asset.DisplayName,
		Page:     1,
		HasAlpha: !isOpaque(img),
	}, nil
}

// EncodePNG serializes a page for the wire. Opaque pages are written without an alpha channel.
func EncodePNG(page RenderedPage) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, page.Image); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNGBase64 is EncodePNG followed by standard base64.
func EncodePNGBase64(page RenderedPage) (string, error) {
	raw, err := EncodePNG(page)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
