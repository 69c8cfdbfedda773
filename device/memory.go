package device

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/blockcache"
)

// Memory is a sparse in-memory device. Clusters never written read as zeros.
type Memory struct {
	id     uint64
	sector int

	mu     sync.RWMutex
	blocks map[uint64][]byte

	counters
}

var _ blockcache.Device = (*Memory)(nil)

// NewMemory creates an empty memory device.
func NewMemory(sectorSize int) *Memory {
	return &Memory{
		id:     NextID(),
		sector: sectorOrDefault(sectorSize),
		blocks: make(map[uint64][]byte),
	}
}

// ID implements blockcache.Device.
func (m *Memory) ID() uint64 { return m.id }

// SectorSize implements blockcache.Device.
func (m *Memory) SectorSize() int { return m.sector }

// ReadBlock implements blockcache.Device.
func (m *Memory) ReadBlock(ctx context.Context, cluster uint64, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	n := copy(p, m.blocks[cluster])
	m.mu.RUnlock()
	clear(p[n:])

	m.read(len(p))
	return len(p), nil
}

// WriteBlock implements blockcache.Device.
func (m *Memory) WriteBlock(ctx context.Context, cluster uint64, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.blocks[cluster] = slices.Clone(p)
	m.mu.Unlock()

	m.wrote(len(p))
	return len(p), nil
}

// Peek returns a copy of the stored cluster, or nil if it was never written.
func (m *Memory) Peek(cluster uint64) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.blocks[cluster])
}

// Len returns the number of clusters written.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// Counters returns the I/O totals.
func (m *Memory) Counters() Counters { return m.snapshot() }
