package device

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/blockcache"
)

// File is a device backed by a disk image or block device. Cluster c lives
// at byte offset c*SectorSize. Reads past the end of the image return the
// bytes that exist and zero the rest.
type File struct {
	id     uint64
	sector int
	f      *os.File

	counters
}

var _ blockcache.Device = (*File)(nil)

// OpenFile opens path read-write, creating it if missing.
func OpenFile(path string, sectorSize int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", path, err)
	}
	return &File{
		id:     NextID(),
		sector: sectorOrDefault(sectorSize),
		f:      f,
	}, nil
}

// ID implements blockcache.Device.
func (d *File) ID() uint64 { return d.id }

// SectorSize implements blockcache.Device.
func (d *File) SectorSize() int { return d.sector }

func (d *File) offset(cluster uint64) int64 {
	return int64(cluster) * int64(d.sector)
}

// ReadBlock implements blockcache.Device. It returns the number of bytes
// present in the image.
func (d *File) ReadBlock(ctx context.Context, cluster uint64, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := d.pread(p, d.offset(cluster))
	if err != nil {
		return n, err
	}
	clear(p[n:])
	d.read(n)
	return n, nil
}

// WriteBlock implements blockcache.Device.
func (d *File) WriteBlock(ctx context.Context, cluster uint64, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := d.pwrite(p, d.offset(cluster))
	d.wrote(n)
	return n, err
}

// Sync flushes the image to stable storage.
func (d *File) Sync() error { return d.f.Sync() }

// Close closes the image.
func (d *File) Close() error { return d.f.Close() }

// Counters returns the I/O totals.
func (d *File) Counters() Counters { return d.snapshot() }
