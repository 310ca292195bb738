package validators

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	pkgerrors "github.com/angelmondragon/testhub-backend/pkg/errors"
)

const (
	maxFileNameLen    = 255
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

// UploadFile is a single file read from a multipart form.
type UploadFile struct {
	Name string `json:"file_name" validate:"required,max=255"`
	Data []byte `json:"-"`
}

// ReadUpload reads the named multipart file field, bounded by maxBytes of content.
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*UploadFile, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, tooLargeError(maxBytes)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required").
			WithDetails(map[string]string{"field": field})
	}
	defer file.Close()

	reader := io.Reader(file)
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "failed to read uploaded file")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, tooLargeError(maxBytes)
	}

	upload := &UploadFile{Name: SanitizeFileName(header.Filename, maxFileNameLen), Data: data}
	if err := Struct(upload); err != nil {
		return nil, err
	}
	return upload, nil
}

func tooLargeError(maxBytes int64) error {
	return pkgerrors.New(pkgerrors.CodePayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", maxBytes))
}
