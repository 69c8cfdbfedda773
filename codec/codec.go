package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/crc32"
	"github.com/pierrec/lz4/v4"
)

// Kind selects the compression algorithm.
type Kind uint8

const (
	// None stores blocks uncompressed.
	None Kind = 0
	// LZ4 uses LZ4 block compression (fast, good for hot data).
	LZ4 Kind = 1
	// Zstd uses zstd compression (better ratio, good for cold data).
	Zstd Kind = 2
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("codec: unknown compression %q", s)
	}
}

// HeaderSize is the frame header length.
const HeaderSize = 16

// DefaultMaxBlockSize is the largest block a codec decodes unless
// WithMaxBlockSize says otherwise.
const DefaultMaxBlockSize = 64 << 20

var (
	// ErrCorrupt is returned for frames that fail validation.
	ErrCorrupt = errors.New("codec: corrupt frame")
	// ErrChecksum is returned when the decoded block does not match its CRC.
	ErrChecksum = fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Checksum computes the CRC32-Castagnoli checksum of data.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Codec encodes blocks into frames. The zero value stores blocks raw.
// A Codec is safe for concurrent use.
type Codec struct {
	kind     Kind
	maxBlock uint32
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxBlockSize bounds the decoded size a frame header may claim. Frames
// claiming more are rejected as corrupt before anything is allocated.
func WithMaxBlockSize(n uint32) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxBlock = n
		}
	}
}

// New returns a codec compressing with kind.
func New(kind Kind, optFns ...Option) *Codec {
	c := &Codec{kind: kind, maxBlock: DefaultMaxBlockSize}
	for _, fn := range optFns {
		fn(c)
	}
	return c
}

// Kind returns the compression the codec writes.
func (c *Codec) Kind() Kind { return c.kind }

// Encode frames block.
func (c *Codec) Encode(block []byte) ([]byte, error) {
	kind := c.kind
	var payload []byte

	switch kind {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(block)))
		n, err := lz4.CompressBlock(block, buf, nil)
		if err != nil {
			return nil, err
		}
		payload = buf[:n] // n == 0 means incompressible
	case Zstd:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(block, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("codec: unknown compression %v", kind)
	}

	// If compression doesn't help (ratio > 0.9), store uncompressed
	if len(payload) == 0 || float64(len(payload)) > float64(len(block))*0.9 {
		kind = None
		payload = block
	}

	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = byte(kind)
	binary.LittleEndian.PutUint32(frame[4:], uint32(len(block)))
	binary.LittleEndian.PutUint32(frame[8:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[12:], Checksum(block))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// Decode returns the block held by frame. Any codec can decode any kind.
func (c *Codec) Decode(frame []byte) ([]byte, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(frame))
	}

	kind := Kind(frame[0])
	raw := binary.LittleEndian.Uint32(frame[4:])
	stored := binary.LittleEndian.Uint32(frame[8:])
	sum := binary.LittleEndian.Uint32(frame[12:])

	maxBlock := c.maxBlock
	if maxBlock == 0 {
		maxBlock = DefaultMaxBlockSize
	}
	if raw > maxBlock {
		return nil, fmt.Errorf("%w: block of %d bytes exceeds limit %d", ErrCorrupt, raw, maxBlock)
	}
	if uint64(len(frame)-HeaderSize) < uint64(stored) {
		return nil, fmt.Errorf("%w: payload truncated", ErrCorrupt)
	}
	payload := frame[HeaderSize : HeaderSize+int(stored)]

	var block []byte
	switch kind {
	case None:
		if stored != raw {
			return nil, fmt.Errorf("%w: raw frame sizes differ", ErrCorrupt)
		}
		block = append([]byte(nil), payload...)
	case LZ4:
		block = make([]byte, raw)
		n, err := lz4.UncompressBlock(payload, block)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(n) != raw {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
	case Zstd:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(payload, make([]byte, 0, raw))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != raw {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		block = decoded
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, kind)
	}

	if Checksum(block) != sum {
		return nil, ErrChecksum
	}
	return block, nil
}
