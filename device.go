package blockcache

import (
	"context"
	"fmt"
)

// Device is the raw block I/O collaborator. Clusters are addressed in units
// of SectorSize bytes.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// ID identifies the device. Buffers are shared between every file on
	// the same device that maps to the same cluster.
	ID() uint64
	// SectorSize is the size of one cluster address unit in bytes.
	SectorSize() int
	// ReadBlock fills p from the given cluster and returns the bytes read.
	ReadBlock(ctx context.Context, cluster uint64, p []byte) (int, error)
	// WriteBlock stores p at the given cluster and returns the bytes written.
	WriteBlock(ctx context.Context, cluster uint64, p []byte) (int, error)
}

// File is the vnode a buffer belongs to.
type File interface {
	// ID identifies the file on its device, like an inode number.
	ID() uint64
	Device() Device
}

// Translator maps a byte offset within a file to a physical cluster.
// remaining is the offset of the byte within that cluster.
type Translator interface {
	ResolveCluster(ctx context.Context, f File, offset uint64) (cluster uint64, remaining uint64, err error)
}

// LinearTranslator maps file offsets one to one onto the device, as for a
// file that is the device itself.
type LinearTranslator struct{}

// ResolveCluster implements Translator.
func (LinearTranslator) ResolveCluster(_ context.Context, f File, offset uint64) (uint64, uint64, error) {
	sector := f.Device().SectorSize()
	if sector <= 0 {
		return 0, 0, fmt.Errorf("%w: sector size %d", ErrInvalidArgument, sector)
	}
	return offset / uint64(sector), offset % uint64(sector), nil
}
