package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockcache/testutil"
)

func TestCodec_RoundTrip(t *testing.T) {
	rng := testutil.NewRNG(1)
	random := make([]byte, 4096)
	rng.Fill(random)

	blocks := map[string][]byte{
		"zeros":  make([]byte, 4096),
		"text":   bytes.Repeat([]byte("the quick brown fox "), 200),
		"random": random,
		"empty":  {},
	}

	for _, kind := range []Kind{None, LZ4, Zstd} {
		c := New(kind)
		for name, block := range blocks {
			t.Run(kind.String()+"/"+name, func(t *testing.T) {
				frame, err := c.Encode(block)
				require.NoError(t, err)

				got, err := c.Decode(frame)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(block, got))
			})
		}
	}
}

func TestCodec_FallsBackToRaw(t *testing.T) {
	rng := testutil.NewRNG(2)
	random := make([]byte, 4096)
	rng.Fill(random)

	frame, err := New(Zstd).Encode(random)
	require.NoError(t, err)
	assert.Equal(t, None, Kind(frame[0]))
	assert.Len(t, frame, HeaderSize+len(random))

	frame, err = New(LZ4).Encode(make([]byte, 4096))
	require.NoError(t, err)
	assert.Equal(t, LZ4, Kind(frame[0]))
	assert.Less(t, len(frame), 4096/10)
}

func TestCodec_Header(t *testing.T) {
	block := []byte("123456789")
	frame, err := New(None).Encode(block)
	require.NoError(t, err)

	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(frame[4:]))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(frame[8:]))
	assert.Equal(t, uint32(0xe3069283), binary.LittleEndian.Uint32(frame[12:]))
}

func TestCodec_DetectsCorruption(t *testing.T) {
	c := New(Zstd)
	frame, err := c.Encode(bytes.Repeat([]byte("abcd"), 1024))
	require.NoError(t, err)

	_, err = c.Decode(frame[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = c.Decode(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrCorrupt)

	bad := bytes.Clone(frame)
	binary.LittleEndian.PutUint32(bad[12:], 0)
	_, err = c.Decode(bad)
	assert.ErrorIs(t, err, ErrChecksum)

	bad = bytes.Clone(frame)
	bad[0] = 9
	_, err = c.Decode(bad)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCodec_RejectsOversizedHeader(t *testing.T) {
	frame := make([]byte, HeaderSize)
	frame[0] = byte(LZ4)
	binary.LittleEndian.PutUint32(frame[4:], 1<<32-1)

	_, err := New(LZ4).Decode(frame)
	assert.ErrorIs(t, err, ErrCorrupt)

	frame[0] = byte(Zstd)
	_, err = (&Codec{}).Decode(frame)
	assert.ErrorIs(t, err, ErrCorrupt)

	c := New(Zstd, WithMaxBlockSize(1024))
	small, err := c.Encode(bytes.Repeat([]byte("x"), 1024))
	require.NoError(t, err)
	_, err = c.Decode(small)
	require.NoError(t, err)

	big, err := c.Encode(bytes.Repeat([]byte("x"), 1025))
	require.NoError(t, err)
	_, err = c.Decode(big)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{None, LZ4, Zstd} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("brotli")
	assert.Error(t, err)
}
