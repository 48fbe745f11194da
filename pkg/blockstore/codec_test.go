package blockstore

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_BrotliCodec_Shrinks_Payload_When_Block_Mostly_Erased(t *testing.T) {
	t.Parallel()

	src := bytes.Repeat([]byte{0xFF}, 4096)
	copy(src, "programmed")

	c := BrotliCodec{Quality: 5}

	enc, err := c.Compress(src, len(src))
	require.NoError(t, err)
	require.Less(t, len(enc), len(src))

	dst := make([]byte, len(src))

	n, err := c.Decompress(dst, enc)
	require.NoError(t, err)
	require.Equal(t, len(src), n)
	require.Equal(t, src, dst)
}

func Test_BrotliCodec_Compress_Fails_When_Output_Exceeds_Limit(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	src := make([]byte, 512)

	for i := range src {
		src[i] = byte(rng.UintN(256))
	}

	_, err := BrotliCodec{Quality: 5}.Compress(src, 16)

	require.ErrorIs(t, err, errCodecOverflow)
}

func Test_BrotliCodec_Decompress_Fails_When_Output_Exceeds_Dst(t *testing.T) {
	t.Parallel()

	c := BrotliCodec{Quality: 5}

	enc, err := c.Compress(make([]byte, 128), 128)
	require.NoError(t, err)

	_, err = c.Decompress(make([]byte, 64), enc)

	require.ErrorIs(t, err, errCodecOverflow)
}

func Test_BrotliCodec_Decompress_Fails_When_Input_Is_Not_Brotli(t *testing.T) {
	t.Parallel()

	_, err := BrotliCodec{}.Decompress(make([]byte, 64), []byte("definitely not a brotli stream"))

	require.Error(t, err)
}

func Test_ParseCompression_Accepts_Known_Names_When_Case_Differs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Compression
	}{
		{"none", CompressNone},
		{"RAW", CompressNone},
		{"", CompressNone},
		{" Brotli ", CompressBrotli},
	}

	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseCompression("zstd")
	require.ErrorIs(t, err, ErrInvalidOptions)
}
