package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"errors"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	random := make([]byte, 64*1024)
	rng.Read(random)

	cases := map[string][]byte{
		"empty":      {},
		"pdf header": []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"),
		"repetitive": bytes.Repeat([]byte("question "), 4096),
		"random":     random,
	}

	for name, raw := range cases {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			text, err := Encode(raw)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(text)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !bytes.Equal(got, raw) {
				t.Fatalf("round trip mismatch: got %d bytes want %d", len(got), len(raw))
			}
		})
	}
}

func TestDecodeReadsStandardZlibBase64(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write([]byte("legacy payload")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := Decode(base64.StdEncoding.EncodeToString(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "legacy payload" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestDecodeRejectsCorruptInput(t *testing.T) {
	t.Parallel()

	valid, err := Encode([]byte("some pdf bytes"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	truncated := valid[:len(valid)-8]

	for name, text := range map[string]string{
		"not base64":      "###not-base64###",
		"not zlib":        base64.StdEncoding.EncodeToString([]byte("plain text")),
		"truncated":       truncated,
		"empty zlib body": base64.StdEncoding.EncodeToString([]byte{}),
	} {
		if _, err := Decode(text); !errors.Is(err, ErrCorruptBlob) {
			t.Fatalf("%s: expected ErrCorruptBlob, got %v", name, err)
		}
	}
}
