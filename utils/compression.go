package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// CompressionAlgorithm tags how a stored payload is encoded.
type CompressionAlgorithm byte

const (
	CompressionNone   CompressionAlgorithm = 'n'
	CompressionBrotli CompressionAlgorithm = 'b'
)

// compressThreshold is the payload size below which compression is skipped.
const compressThreshold = 512

// CompressPayload prefixes data with a one-byte algorithm tag, compressing it
// with brotli when it is large enough to benefit.
func CompressPayload(data []byte) ([]byte, error) {
	if len(data) < compressThreshold {
		return append([]byte{byte(CompressionNone)}, data...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(CompressionBrotli))
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to brotli writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressPayload reverses CompressPayload.
func DecompressPayload(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	switch CompressionAlgorithm(payload[0]) {
	case CompressionNone:
		return payload[1:], nil
	case CompressionBrotli:
		data, err := io.ReadAll(brotli.NewReader(bytes.NewReader(payload[1:])))
		if err != nil {
			return nil, fmt.Errorf("failed to read from brotli reader: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag %q", payload[0])
	}
}
