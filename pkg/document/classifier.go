package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/store"
)

// Extension lookup table. Classification is by extension only, no content sniffing.
var kindExtMap = map[string]store.AssetKind{
	".jpg":  store.KindImage,
	".jpeg": store.KindImage,
	".png":  store.KindImage,
	".gif":  store.KindImage,
	".bmp":  store.KindImage,
	".tiff": store.KindImage,
	".tif":  store.KindImage,
	".pdf":  store.KindPDF,
}

// UnsupportedFormatError rejects a file whose extension is not an image or a PDF.
type UnsupportedFormatError struct {
	Filename  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("unsupported file %q: no extension", e.Filename)
	}
	return fmt.Sprintf("unsupported file %q: extension %s", e.Filename, e.Extension)
}

// Classify maps a filename or path hint to an asset kind (case-insensitive).
func Classify(filename string) store.AssetKind {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if kind, ok := kindExtMap[ext]; ok {
		return kind
	}
	return store.KindUnsupported
}

// NewAsset classifies the file and wraps it into an immutable asset.
// Unsupported files come back as *UnsupportedFormatError and are never stored.
func NewAsset(filename string, data []byte) (store.DocumentAsset, error) {
	kind := Classify(filename)
	if kind == store.KindUnsupported {
		return store.DocumentAsset{}, &UnsupportedFormatError{
			Filename:  filename,
			Extension: strings.ToLower(filepath.Ext(filename)),
		}
	}

	owned := make([]byte, len(data))
	copy(owned, data)

	return store.DocumentAsset{
		Kind:        kind,
		Data:        owned,
		DisplayName: filepath.Base(filename),
	}, nil
}
