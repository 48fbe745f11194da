package blockstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// Compression selects the [Codec] a [Store] applies when persisting blocks.
type Compression uint8

const (
	// CompressNone stores payloads verbatim.
	CompressNone Compression = iota

	// CompressBrotli stores payloads as brotli streams.
	CompressBrotli
)

var errCodecOverflow = errors.New("output exceeds limit")

// String returns the config spelling of c.
func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressBrotli:
		return "brotli"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none" or "brotli" (case-insensitive).
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "raw", "":
		return CompressNone, nil
	case "brotli":
		return CompressBrotli, nil
	default:
		return 0, fmt.Errorf("%w: unknown compression %q", ErrInvalidOptions, s)
	}
}

// Codec transforms block payloads on their way to and from disk.
//
// Compress returns the encoded form of src, failing if it would exceed limit
// bytes. Decompress decodes src into dst and returns the number of bytes
// produced, failing if the decoded form does not fit in dst.
type Codec interface {
	Compress(src []byte, limit int) ([]byte, error)
	Decompress(dst, src []byte) (int, error)
}

// RawCodec copies payloads unchanged.
type RawCodec struct{}

// Compress returns a copy of src.
func (RawCodec) Compress(src []byte, limit int) ([]byte, error) {
	if len(src) > limit {
		return nil, errCodecOverflow
	}

	return bytes.Clone(src), nil
}

// Decompress copies src into dst.
func (RawCodec) Decompress(dst, src []byte) (int, error) {
	if len(src) > len(dst) {
		return 0, errCodecOverflow
	}

	return copy(dst, src), nil
}

// BrotliCodec compresses payloads with brotli at Quality
// (0..11, see [brotli.DefaultCompression]).
type BrotliCodec struct {
	Quality int
}

// Compress encodes src as a single brotli stream.
func (c BrotliCodec) Compress(src []byte, limit int) ([]byte, error) {
	var buf bytes.Buffer

	w := brotli.NewWriterLevel(&buf, c.Quality)

	_, err := w.Write(src)
	if err != nil {
		return nil, fmt.Errorf("brotli write: %w", err)
	}

	err = w.Close()
	if err != nil {
		return nil, fmt.Errorf("brotli close: %w", err)
	}

	if buf.Len() > limit {
		return nil, errCodecOverflow
	}

	return buf.Bytes(), nil
}

// Decompress decodes a brotli stream into dst. The stream must be complete and
// its decoded size must not exceed len(dst).
func (BrotliCodec) Decompress(dst, src []byte) (int, error) {
	r := brotli.NewReader(bytes.NewReader(src))

	out, err := io.ReadAll(io.LimitReader(r, int64(len(dst))+1))
	if err != nil {
		return 0, fmt.Errorf("brotli read: %w", err)
	}

	if len(out) > len(dst) {
		return 0, errCodecOverflow
	}

	return copy(dst, out), nil
}

func codecFor(c Compression) (Codec, error) {
	switch c {
	case CompressNone:
		return RawCodec{}, nil
	case CompressBrotli:
		return BrotliCodec{Quality: brotli.DefaultCompression}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidOptions, c)
	}
}
