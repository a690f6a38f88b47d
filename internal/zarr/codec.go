package zarr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
)

// encodeChunk serializes one chunk's worth of float64 values into the
// array's dtype, little endian, optionally gzip-compressed.
func encodeChunk(meta ArrayMeta, values []float64) ([]byte, error) {
	buf := make([]byte, len(values)*meta.itemSize())
	switch meta.Dtype {
	case "<f8":
		for i, v := range values {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
	case "<f4":
		for i, v := range values {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", meta.Dtype)
	}

	if meta.Compressor == nil {
		return buf, nil
	}
	var out bytes.Buffer
	level := meta.Compressor.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	zw, err := gzip.NewWriterLevel(&out, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to compress chunk: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish chunk compression: %w", err)
	}
	return out.Bytes(), nil
}

// decodeChunk inverts encodeChunk. n is the expected element count (the
// full chunk size; edge chunks are stored padded).
func decodeChunk(meta ArrayMeta, data []byte, n int) ([]float64, error) {
	raw := data
	if meta.Compressor != nil {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip chunk: %w", err)
		}
		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress chunk: %w", err)
		}
		if err := zr.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip chunk: %w", err)
		}
	}

	if len(raw) != n*meta.itemSize() {
		return nil, fmt.Errorf("chunk holds %d bytes, want %d", len(raw), n*meta.itemSize())
	}

	values := make([]float64, n)
	switch meta.Dtype {
	case "<f8":
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case "<f4":
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", meta.Dtype)
	}
	return values, nil
}
