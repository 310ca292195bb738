// Package codec turns binary payloads into storage-safe text and back.
//
// Payloads are zlib-compressed and then standard base64 encoded, so values
// written by earlier deployments of the service decode unchanged.
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// ErrCorruptBlob reports stored text that is not valid encoded+compressed data.
var ErrCorruptBlob = errors.New("corrupt blob")

// Encode compresses raw and returns its base64 text form.
func Encode(raw []byte) (string, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode. Any malformed input yields an error wrapping ErrCorruptBlob.
func Decode(text string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrCorruptBlob, err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib header: %v", ErrCorruptBlob, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: zlib stream: %v", ErrCorruptBlob, err)
	}
	return raw, nil
}
