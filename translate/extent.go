package translate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/blockcache"
)

// ErrUnmapped is returned for offsets no extent covers, i.e. holes.
var ErrUnmapped = errors.New("offset not mapped")

// Extent maps Length bytes of a file starting at FileOffset onto consecutive
// clusters starting at Cluster.
type Extent struct {
	FileOffset uint64
	Length     uint64
	Cluster    uint64
}

// End returns the first file offset after the extent.
func (e Extent) End() uint64 { return e.FileOffset + e.Length }

// Resolve maps an offset inside e. sector is the device's cluster size.
func (e Extent) Resolve(offset uint64, sector int) (cluster, remaining uint64) {
	delta := offset - e.FileOffset
	return e.Cluster + delta/uint64(sector), delta % uint64(sector)
}

// ExtentMap is an in-memory Translator holding sorted, non-overlapping
// extents per file. It is safe for concurrent use.
type ExtentMap struct {
	mu    sync.RWMutex
	files map[uint64][]Extent
}

var _ blockcache.Translator = (*ExtentMap)(nil)

// NewExtentMap creates an empty map.
func NewExtentMap() *ExtentMap {
	return &ExtentMap{files: make(map[uint64][]Extent)}
}

// Map adds an extent for the file. It fails if the extent is empty or
// overlaps one already mapped.
func (m *ExtentMap) Map(fileID uint64, e Extent) error {
	if e.Length == 0 {
		return fmt.Errorf("%w: empty extent", blockcache.ErrInvalidArgument)
	}
	if e.End() < e.FileOffset {
		return fmt.Errorf("%w: extent overflows", blockcache.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	exts := m.files[fileID]
	i, _ := slices.BinarySearchFunc(exts, e.FileOffset, func(x Extent, off uint64) int {
		switch {
		case x.FileOffset < off:
			return -1
		case x.FileOffset > off:
			return 1
		}
		return 0
	})
	if i > 0 && exts[i-1].End() > e.FileOffset {
		return fmt.Errorf("%w: extent at %d overlaps [%d,%d)", blockcache.ErrInvalidArgument, e.FileOffset, exts[i-1].FileOffset, exts[i-1].End())
	}
	if i < len(exts) && exts[i].FileOffset < e.End() {
		return fmt.Errorf("%w: extent at %d overlaps [%d,%d)", blockcache.ErrInvalidArgument, e.FileOffset, exts[i].FileOffset, exts[i].End())
	}
	m.files[fileID] = slices.Insert(exts, i, e)
	return nil
}

// Unmap removes every extent of the file.
func (m *ExtentMap) Unmap(fileID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, fileID)
}

// Extents returns a copy of the file's extents in offset order.
func (m *ExtentMap) Extents(fileID uint64) []Extent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.files[fileID])
}

// Lookup returns the extent covering offset.
func (m *ExtentMap) Lookup(fileID, offset uint64) (Extent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exts := m.files[fileID]
	// First extent starting after offset; the candidate is the one before.
	i, _ := slices.BinarySearchFunc(exts, offset, func(x Extent, off uint64) int {
		if x.FileOffset <= off {
			return -1
		}
		return 1
	})
	if i == 0 {
		return Extent{}, false
	}
	e := exts[i-1]
	if offset >= e.End() {
		return Extent{}, false
	}
	return e, true
}

// ResolveCluster implements blockcache.Translator.
func (m *ExtentMap) ResolveCluster(_ context.Context, f blockcache.File, offset uint64) (uint64, uint64, error) {
	e, ok := m.Lookup(f.ID(), offset)
	if !ok {
		return 0, 0, fmt.Errorf("file %d offset %d: %w", f.ID(), offset, ErrUnmapped)
	}
	sector := f.Device().SectorSize()
	if sector <= 0 {
		return 0, 0, fmt.Errorf("%w: sector size %d", blockcache.ErrInvalidArgument, sector)
	}
	cluster, remaining := e.Resolve(offset, sector)
	return cluster, remaining, nil
}
