// Package codec frames device blocks for object storage.
//
// A frame is a 16-byte header followed by the payload:
//
//	[kind u8][reserved 3][raw u32][stored u32][crc32c u32][payload]
//
// kind names the compression of the payload (None, LZ4 or Zstd), raw is the
// block length, stored is the payload length and crc32c covers the raw
// block. All integers are little endian. When compression saves less than a
// tenth of the block, the block is stored raw with kind None.
//
// Changing the frame layout is a breaking change: blocks written by older
// layouts may no longer decode.
package codec
