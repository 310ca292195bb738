package rasterizer

import (
	"bytes"
	"errors"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var errEmptyDocument = errors.New("empty document")

// PageCount parses the PDF structure and returns its page count without rendering.
func PageCount(pdf []byte) (int, error) {
	if len(pdf) == 0 {
		return 0, errEmptyDocument
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(pdf), conf)
}
