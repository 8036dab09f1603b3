package document

import (
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI is the resolution PDF pages are rendered at.
const DefaultDPI = 200

var errNoPages = errors.New("document has no pages")

// RenderedPage is a decoded raster image of a raw image asset or of one PDF page.
type RenderedPage struct {
	Image    image.Image
	Source   string
	Page     int // 1-based; 1 for plain images
	HasAlpha bool
}

// ConversionError means an asset could not be turned into page images.
type ConversionError struct {
	Name string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to convert %q: %v", e.Name, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Rasterizer expands a PDF byte stream into its pages in page order.
type Rasterizer interface {
	Rasterize(name string, data []byte) ([]RenderedPage, error)
}

// FitzRasterizer renders pages with MuPDF.
type FitzRasterizer struct {
	DPI float64
}

// Ensure FitzRasterizer implements Rasterizer
var _ Rasterizer = FitzRasterizer{}

func NewFitzRasterizer(dpi int) FitzRasterizer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return FitzRasterizer{DPI: float64(dpi)}
}

func (r FitzRasterizer) Rasterize(name string, data []byte) ([]RenderedPage, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &ConversionError{Name: name, Err: err}
	}
	defer doc.Close()

	n := doc.NumPage()
	if n <= 0 {
		return nil, &ConversionError{Name: name, Err: errNoPages}
	}

	pages := make([]RenderedPage, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.ImageDPI(i, r.DPI)
		if err != nil {
			return nil, &ConversionError{Name: name, Err: fmt.Errorf("page %d: %w", i+1, err)}
		}

		pages = append(pages, RenderedPage{
			Image:    img,
			Source:   name,
			Page:     i + 1,
			HasAlpha: !img.Opaque(),
		})
	}

	return pages, nil
}
