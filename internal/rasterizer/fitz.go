package rasterizer

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// fitzEngine renders in-process through MuPDF.
type fitzEngine struct{}

func (fitzEngine) Name() string { return "fitz" }

func (fitzEngine) Render(ctx context.Context, pdf []byte, dpi int) ([]Page, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()

	count := doc.NumPage()
	pages := make([]Page, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}

		bounds := img.Bounds()
		pages = append(pages, Page{
			Number:   i + 1,
			Data:     buf.Bytes(),
			MimeType: MimeTypePNG,
			Width:    bounds.Dx(),
			Height:   bounds.Dy(),
		})
	}
	return pages, nil
}
