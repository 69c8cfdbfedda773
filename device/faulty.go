package device

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/blockcache"
)

// ErrInjected is the default error returned by Faulty.
var ErrInjected = errors.New("injected fault error")

// Faulty wraps a device and injects errors. It keeps the wrapped device's
// ID, so buffers cached through either are shared.
type Faulty struct {
	dev blockcache.Device

	mu          sync.Mutex
	readFaults  map[uint64]error
	writeFaults map[uint64]error
	writeLimit  int64 // -1 disables
	written     int64
	shortWrites bool

	// Err is returned when the write budget is exhausted.
	Err error
}

var _ blockcache.Device = (*Faulty)(nil)

// NewFaulty wraps dev with no faults armed.
func NewFaulty(dev blockcache.Device) *Faulty {
	return &Faulty{
		dev:         dev,
		readFaults:  make(map[uint64]error),
		writeFaults: make(map[uint64]error),
		writeLimit:  -1,
		Err:         ErrInjected,
	}
}

// FailRead makes reads of cluster fail with err (ErrInjected if nil).
func (f *Faulty) FailRead(cluster uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readFaults[cluster] = f.orDefault(err)
}

// FailWrite makes writes of cluster fail with err (ErrInjected if nil).
func (f *Faulty) FailWrite(cluster uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeFaults[cluster] = f.orDefault(err)
}

// Heal removes the faults armed for cluster.
func (f *Faulty) Heal(cluster uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.readFaults, cluster)
	delete(f.writeFaults, cluster)
}

// SetWriteLimit fails every write once limit bytes have been written in
// total. A negative limit disables the budget.
func (f *Faulty) SetWriteLimit(limit int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeLimit = limit
}

// SetShortWrites makes every write store one byte less than asked, without
// an error.
func (f *Faulty) SetShortWrites(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shortWrites = on
}

// Written returns the bytes written through the wrapper.
func (f *Faulty) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

func (f *Faulty) orDefault(err error) error {
	if err != nil {
		return err
	}
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// ID implements blockcache.Device.
func (f *Faulty) ID() uint64 { return f.dev.ID() }

// SectorSize implements blockcache.Device.
func (f *Faulty) SectorSize() int { return f.dev.SectorSize() }

// ReadBlock implements blockcache.Device.
func (f *Faulty) ReadBlock(ctx context.Context, cluster uint64, p []byte) (int, error) {
	f.mu.Lock()
	err := f.readFaults[cluster]
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.dev.ReadBlock(ctx, cluster, p)
}

// WriteBlock implements blockcache.Device.
func (f *Faulty) WriteBlock(ctx context.Context, cluster uint64, p []byte) (int, error) {
	f.mu.Lock()
	if err := f.writeFaults[cluster]; err != nil {
		f.mu.Unlock()
		return 0, err
	}
	if f.writeLimit >= 0 && f.written+int64(len(p)) > f.writeLimit {
		f.mu.Unlock()
		return 0, f.orDefault(nil)
	}
	short := f.shortWrites && len(p) > 0
	f.mu.Unlock()

	if short {
		p = p[:len(p)-1]
	}
	n, err := f.dev.WriteBlock(ctx, cluster, p)

	f.mu.Lock()
	f.written += int64(n)
	f.mu.Unlock()
	return n, err
}
