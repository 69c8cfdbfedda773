package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/blobstore"
	"github.com/hupe1980/blockcache/codec"
)

// Blob is a device that keeps each cluster as one object in a
// blobstore.Store, framed by a codec. Clusters with no object read as zeros.
type Blob struct {
	id     uint64
	sector int
	store  blobstore.Store
	codec  *codec.Codec
	prefix string

	counters
}

var _ blockcache.Device = (*Blob)(nil)

// BlobOption configures a Blob device.
type BlobOption func(*Blob)

// WithCodec sets the frame codec. The default stores clusters uncompressed.
func WithCodec(c *codec.Codec) BlobOption {
	return func(b *Blob) {
		if c != nil {
			b.codec = c
		}
	}
}

// WithPrefix namespaces the cluster objects, so several devices can share a
// store.
func WithPrefix(prefix string) BlobOption {
	return func(b *Blob) {
		b.prefix = prefix
	}
}

// NewBlob creates a device over store.
func NewBlob(store blobstore.Store, sectorSize int, optFns ...BlobOption) *Blob {
	b := &Blob{
		id:     NextID(),
		sector: sectorOrDefault(sectorSize),
		store:  store,
		codec:  codec.New(codec.None),
	}
	for _, fn := range optFns {
		fn(b)
	}
	return b
}

// ID implements blockcache.Device.
func (b *Blob) ID() uint64 { return b.id }

// SectorSize implements blockcache.Device.
func (b *Blob) SectorSize() int { return b.sector }

func (b *Blob) name(cluster uint64) string {
	return fmt.Sprintf("%s%016x", b.prefix, cluster)
}

// ReadBlock implements blockcache.Device.
func (b *Blob) ReadBlock(ctx context.Context, cluster uint64, p []byte) (int, error) {
	frame, err := b.store.Get(ctx, b.name(cluster))
	if errors.Is(err, blobstore.ErrNotFound) {
		clear(p)
		b.read(len(p))
		return len(p), nil
	}
	if err != nil {
		return 0, err
	}

	block, err := b.codec.Decode(frame)
	if err != nil {
		return 0, fmt.Errorf("cluster %d: %w", cluster, err)
	}
	n := copy(p, block)
	clear(p[n:])
	b.read(len(p))
	return len(p), nil
}

// WriteBlock implements blockcache.Device.
func (b *Blob) WriteBlock(ctx context.Context, cluster uint64, p []byte) (int, error) {
	frame, err := b.codec.Encode(p)
	if err != nil {
		return 0, err
	}
	if err := b.store.Put(ctx, b.name(cluster), frame); err != nil {
		return 0, err
	}
	b.wrote(len(p))
	return len(p), nil
}

// Discard deletes the object for cluster; it reads as zeros afterwards.
func (b *Blob) Discard(ctx context.Context, cluster uint64) error {
	return b.store.Delete(ctx, b.name(cluster))
}

// Clusters returns the clusters that have an object, in ascending order.
func (b *Blob) Clusters(ctx context.Context) ([]uint64, error) {
	names, err := b.store.List(ctx, b.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(names))
	for _, name := range names {
		hex := strings.TrimPrefix(name, b.prefix)
		if len(hex) != 16 {
			continue
		}
		c, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Counters returns the I/O totals.
func (b *Blob) Counters() Counters { return b.snapshot() }
