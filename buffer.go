package blockcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Buffer is a memory image of one physical cluster.
//
// A Buffer carries two independent locks. Ownership is handed out by
// Cache.Allocate and dropped by Cache.Release; it is counted, reentrant for
// the same OwnerID and is what keeps an entry from being evicted. The field
// lock (Lock/Unlock) serializes flag and data mutation and may be taken by any
// OwnerID, owner or not.
type Buffer struct {
	file    File
	dev     Device
	block   uint64
	cluster uint64

	// flags is written under the field lock and read lock-free.
	flags atomic.Uint32

	// Ownership state.
	mu       sync.Mutex
	owner    OwnerID
	useCount int
	released chan struct{} // closed and replaced whenever useCount drops to zero

	// Field lock state.
	fieldMu   sync.Mutex
	fieldCond *sync.Cond
	lockedBy  OwnerID
	lockDepth int

	// size and data change only under the field lock, and only by the owner.
	size       int
	validBytes int
	data       []byte

	// charged is the size accounted to the cache, guarded by the cache mutex.
	charged int

	freed atomic.Bool
}

func newBuffer(file File, block, cluster uint64, size int, flags Flag) *Buffer {
	b := &Buffer{
		file:     file,
		dev:      file.Device(),
		block:    block,
		cluster:  cluster,
		size:     size,
		charged:  size,
		data:     make([]byte, size),
		released: make(chan struct{}),
	}
	b.fieldCond = sync.NewCond(&b.fieldMu)
	b.flags.Store(uint32(flags & stateFlags))
	if flags&FlagUpToDate != 0 {
		b.validBytes = size
	}
	return b
}

// Data returns the buffer contents. The slice is only meaningful to the
// current owner; anyone else must hold the field lock while using it.
func (b *Buffer) Data() []byte {
	b.fieldMu.Lock()
	defer b.fieldMu.Unlock()
	return b.data[:b.size]
}

// Size returns the requested block size.
func (b *Buffer) Size() int {
	b.fieldMu.Lock()
	defer b.fieldMu.Unlock()
	return b.size
}

// ValidBytes returns the number of bytes filled by the last device read.
func (b *Buffer) ValidBytes() int { return b.validBytes }

// Flags returns a snapshot of the state bits.
func (b *Buffer) Flags() Flag { return Flag(b.flags.Load()) }

// Block returns the logical block the buffer was first allocated for.
func (b *Buffer) Block() uint64 { return b.block }

// Cluster returns the physical cluster.
func (b *Buffer) Cluster() uint64 { return b.cluster }

// File returns the file the buffer was first allocated for.
func (b *Buffer) File() File { return b.file }

// Device returns the device holding the cluster.
func (b *Buffer) Device() Device { return b.dev }

// Cached reports whether the buffer was registered in a cache.
func (b *Buffer) Cached() bool { return b.Flags()&FlagNonCached == 0 }

// Owner returns the current owner and its hold count.
func (b *Buffer) Owner() (OwnerID, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner, b.useCount
}

// Hold adds another ownership hold for the owner carried by ctx, which must
// already own the buffer. Each Hold is matched by a Cache.Release.
func (b *Buffer) Hold(ctx context.Context) { b.ref(mustOwner(ctx)) }

// Lock takes the field lock for the owner carried by ctx. It is reentrant.
func (b *Buffer) Lock(ctx context.Context) { b.lock(mustOwner(ctx)) }

// Unlock drops one level of the field lock. It panics if ctx's owner does not
// hold it.
func (b *Buffer) Unlock(ctx context.Context) { b.unlock(mustOwner(ctx)) }

// SetFlag sets state bits under the field lock. FlagNonCached and
// FlagPhysical cannot be set after allocation and are ignored.
func (b *Buffer) SetFlag(ctx context.Context, f Flag) {
	id := mustOwner(ctx)
	b.lock(id)
	b.flags.Or(uint32(f & mutableFlags))
	b.unlock(id)
}

// ClearFlag clears state bits under the field lock.
func (b *Buffer) ClearFlag(ctx context.Context, f Flag) {
	id := mustOwner(ctx)
	b.lock(id)
	b.flags.And(^uint32(f & mutableFlags))
	b.unlock(id)
}

const mutableFlags = FlagUpToDate | FlagLittleEndian | FlagWriteLocked | FlagDirty

func (b *Buffer) String() string {
	return fmt.Sprintf("buffer(dev=%d cluster=%d size=%d flags=%s)", b.dev.ID(), b.cluster, b.Size(), b.Flags())
}

func (b *Buffer) lock(id OwnerID) {
	b.fieldMu.Lock()
	for b.lockDepth > 0 && b.lockedBy != id {
		b.fieldCond.Wait()
	}
	b.lockedBy = id
	b.lockDepth++
	b.fieldMu.Unlock()
}

func (b *Buffer) unlock(id OwnerID) {
	b.fieldMu.Lock()
	defer b.fieldMu.Unlock()
	if b.lockDepth == 0 || b.lockedBy != id {
		panic(fmt.Sprintf("blockcache: owner %d unlocking field lock held by %d", id, b.lockedBy))
	}
	b.lockDepth--
	if b.lockDepth == 0 {
		b.lockedBy = 0
		b.fieldCond.Broadcast()
	}
}

// resize grows the data of a buffer owned by id to size. The new tail has
// never been read, so the buffer is no longer up to date.
func (b *Buffer) resize(id OwnerID, size int) {
	b.lock(id)
	defer b.unlock(id)

	b.fieldMu.Lock()
	if size > b.size {
		b.data = append(b.data[:b.size], make([]byte, size-b.size)...)
		b.size = size
		b.flags.And(^uint32(FlagUpToDate))
	}
	b.fieldMu.Unlock()
}

// takeOwnership claims the buffer for id.
//
// outer is held on entry. On success it is still held. If another owner has
// the buffer, outer is unlocked before waiting and stays unlocked on return;
// the caller must then search again (errOwnershipRace) or give up
// (ErrOwnershipTimeout, ctx error). holder is the owner that was waited on.
func (b *Buffer) takeOwnership(ctx context.Context, id OwnerID, outer sync.Locker, timeout time.Duration) (holder OwnerID, err error) {
	b.mu.Lock()
	switch b.owner {
	case 0:
		b.owner = id
		b.useCount = 1
		b.mu.Unlock()
		return 0, nil
	case id:
		b.useCount++
		b.mu.Unlock()
		return 0, nil
	}
	holder = b.owner
	released := b.released
	b.mu.Unlock()

	if outer != nil {
		outer.Unlock()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-released:
		return holder, errOwnershipRace
	case <-timer.C:
		return holder, ErrOwnershipTimeout
	case <-ctx.Done():
		return holder, ctx.Err()
	}
}

func (b *Buffer) ownedBy(id OwnerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.useCount > 0 && b.owner == id
}

func (b *Buffer) inUse() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.useCount > 0
}

// ref adds a hold for id, which must already own the buffer.
func (b *Buffer) ref(id OwnerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.useCount == 0 || b.owner != id {
		panic(fmt.Sprintf("blockcache: owner %d referencing buffer owned by %d", id, b.owner))
	}
	b.useCount++
}

// rele drops a hold and returns the holds left. At zero the buffer is free
// and every waiter is woken.
func (b *Buffer) rele(id OwnerID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.useCount == 0 || b.owner != id {
		panic(fmt.Sprintf("blockcache: owner %d releasing buffer owned by %d", id, b.owner))
	}
	b.useCount--
	if b.useCount == 0 {
		b.owner = 0
		close(b.released)
		b.released = make(chan struct{})
	}
	return b.useCount
}

func (b *Buffer) mustOwn(id OwnerID, op string) {
	if !b.ownedBy(id) {
		panic(fmt.Sprintf("blockcache: %s on %s by non-owner %d", op, b, id))
	}
}
