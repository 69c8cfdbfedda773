package blockcache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/blockcache/resource"
)

type cacheKey struct {
	dev     uint64
	cluster uint64
}

// fileKey names a file on a device. File IDs are only unique per device.
type fileKey struct {
	dev  uint64
	file uint64
}

func fileKeyOf(file File) fileKey {
	return fileKey{dev: file.Device().ID(), file: file.ID()}
}

// Cache is a bounded registry of shared buffers keyed by (device, cluster),
// kept in least-recently-used order.
//
// All methods are safe for concurrent use. Callers identify themselves with an
// OwnerID carried in the context (see WithOwner).
type Cache struct {
	opts    options
	logger  *Logger
	metrics MetricsCollector
	rc      *resource.Controller

	mu      sync.Mutex
	entries map[cacheKey]*list.Element
	lru     *list.List // front is most recently used
	byFile  map[fileKey]*roaring64.Bitmap // resident clusters per file
	stats   Stats

	closed atomic.Bool

	uncached      atomic.Int64
	uncachedBytes atomic.Int64
	peakUncached  atomic.Int64
}

// New creates an empty cache.
func New(optFns ...Option) (*Cache, error) {
	o, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}
	return &Cache{
		opts:    o,
		logger:  o.logger,
		metrics: o.metricsCollector,
		rc:      o.rc,
		entries: make(map[cacheKey]*list.Element),
		lru:     list.New(),
		byFile:  make(map[fileKey]*roaring64.Bitmap),
	}, nil
}

// Close drops every resident buffer. It fails with ErrLeakedBuffers if
// standalone buffers are still outstanding. Later calls return ErrClosed.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return ErrClosed
	}

	c.mu.Lock()
	c.removeAllLocked(context.Background())
	c.mu.Unlock()

	if n := c.uncached.Load(); n > 0 {
		bytes := c.uncachedBytes.Load()
		c.logger.LogLeak(context.Background(), n, bytes)
		return fmt.Errorf("%w: %d buffers, %d bytes", ErrLeakedBuffers, n, bytes)
	}
	return nil
}

// Allocate returns the buffer for block of file, owned by the caller.
//
// The block is translated to a physical cluster unless FlagPhysical is set.
// A resident buffer for that cluster is shared: if another owner holds it,
// Allocate waits for its release up to the ownership timeout. Otherwise a new
// buffer is created, registered unless caching is disabled or FlagNonCached
// is set. FlagUpToDate marks the new buffer's contents as already valid.
//
// Every successful Allocate must be matched by Release or Invalidate.
func (c *Cache) Allocate(ctx context.Context, file File, block uint64, size int, flags Flag) (b *Buffer, err error) {
	start := time.Now()
	hit := false
	defer func() {
		c.metrics.RecordAllocate(hit, time.Since(start), err)
	}()

	if c.closed.Load() {
		return nil, ErrClosed
	}
	id, ok := OwnerFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: allocate without owner", ErrInvalidArgument)
	}
	if file == nil || file.Device() == nil {
		return nil, fmt.Errorf("%w: nil file or device", ErrInvalidArgument)
	}
	if size <= 0 || size > c.opts.maxBufferSize {
		return nil, fmt.Errorf("%w: block size %d outside (0, %d]", ErrInvalidArgument, size, c.opts.maxBufferSize)
	}

	dev := file.Device()
	cluster := block
	if flags&FlagPhysical == 0 {
		if block > math.MaxUint64/uint64(size) {
			return nil, fmt.Errorf("%w: block %d of %d bytes overflows the file offset", ErrInvalidArgument, block, size)
		}
		cl, rem, err := c.opts.translator.ResolveCluster(ctx, file, block*uint64(size))
		if err != nil {
			return nil, blockError("translate", dev.ID(), block, err)
		}
		if rem != 0 {
			return nil, blockError("translate", dev.ID(), cl,
				fmt.Errorf("%w: block %d lands %d bytes into a cluster", ErrInvalidArgument, block, rem))
		}
		cluster = cl
	}
	flags &^= FlagPhysical

	if !c.opts.caching || flags&FlagNonCached != 0 {
		return c.allocateStandalone(ctx, id, file, block, cluster, size, flags|FlagNonCached)
	}

	key := cacheKey{dev: dev.ID(), cluster: cluster}

	c.mu.Lock()
	b, err = c.lookupLocked(ctx, id, key, true)
	if err != nil {
		return nil, blockError("allocate", key.dev, key.cluster, err)
	}

	if b != nil {
		hit = true
		c.stats.Hits++
		grow := size > b.charged
		if grow {
			if err := c.growLocked(ctx, b, size); err != nil {
				c.mu.Unlock()
				b.rele(id)
				return nil, blockError("allocate", key.dev, key.cluster, err)
			}
		}
		c.mu.Unlock()
		if grow {
			b.resize(id, size)
		}
		return b, nil
	}

	c.stats.Misses++
	if c.stats.Entries+1 > c.opts.maxEntries || c.stats.Bytes+int64(size) > c.opts.maxBytes {
		c.trimLocked(ctx, c.opts.minEntries, c.opts.minBytes)
	}
	if err := c.chargeLocked(ctx, int64(size)); err != nil {
		c.mu.Unlock()
		return nil, blockError("allocate", key.dev, key.cluster, err)
	}

	b = newBuffer(file, block, cluster, size, flags)
	b.owner = id
	b.useCount = 1
	c.insertLocked(key, b)
	c.mu.Unlock()
	return b, nil
}

// lookupLocked finds the entry for key and takes ownership of it for id.
// touch moves the entry to the most recently used end.
//
// c.mu is held on entry. A hit or a miss (nil, nil) returns with c.mu held;
// an error returns with it released. Losing a wake-up race restarts the
// search.
func (c *Cache) lookupLocked(ctx context.Context, id OwnerID, key cacheKey, touch bool) (*Buffer, error) {
	for {
		if c.closed.Load() {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		elem, ok := c.entries[key]
		if !ok {
			return nil, nil
		}
		if touch {
			c.lru.MoveToFront(elem)
		}
		b := elem.Value.(*Buffer)

		waitStart := time.Now()
		holder, err := b.takeOwnership(ctx, id, &c.mu, c.opts.ownershipTimeout)
		if err == nil {
			return b, nil
		}
		waited := time.Since(waitStart)

		if errors.Is(err, errOwnershipRace) {
			c.metrics.RecordOwnershipWait(waited, nil)
			c.mu.Lock()
			c.stats.OwnershipWaits++
			continue
		}

		c.metrics.RecordOwnershipWait(waited, err)
		c.mu.Lock()
		c.stats.OwnershipWaits++
		if errors.Is(err, ErrOwnershipTimeout) {
			c.stats.OwnershipTimeouts++
		}
		c.mu.Unlock()
		if errors.Is(err, ErrOwnershipTimeout) {
			c.logger.LogOwnershipTimeout(ctx, key.dev, key.cluster, id, holder, waited)
		}
		return nil, err
	}
}

func (c *Cache) allocateStandalone(ctx context.Context, id OwnerID, file File, block, cluster uint64, size int, flags Flag) (*Buffer, error) {
	c.mu.Lock()
	err := c.chargeLocked(ctx, int64(size))
	c.mu.Unlock()
	if err != nil {
		return nil, blockError("allocate", file.Device().ID(), cluster, err)
	}

	b := newBuffer(file, block, cluster, size, flags)
	b.owner = id
	b.useCount = 1

	n := c.uncached.Add(1)
	c.uncachedBytes.Add(int64(size))
	for {
		peak := c.peakUncached.Load()
		if n <= peak || c.peakUncached.CompareAndSwap(peak, n) {
			break
		}
	}
	return b, nil
}

// chargeLocked reserves n bytes of buffer memory. When the budget is
// exhausted it trims to the lower watermarks and then evicts idle buffers one
// at a time, oldest first, until the charge fits.
func (c *Cache) chargeLocked(ctx context.Context, n int64) error {
	err := c.rc.AcquireMemory(n)
	if err == nil {
		return nil
	}
	c.trimLocked(ctx, c.opts.minEntries, c.opts.minBytes)
	for {
		if err = c.rc.AcquireMemory(n); err == nil {
			return nil
		}
		before := c.stats.Entries
		if before == 0 {
			break
		}
		c.trimLocked(ctx, before-1, c.stats.Bytes-1)
		if c.stats.Entries == before {
			break
		}
	}
	return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
}

// growLocked charges the growth of a resident buffer owned by the caller to
// size. The data itself is resized by Buffer.resize once c.mu is dropped.
func (c *Cache) growLocked(ctx context.Context, b *Buffer, size int) error {
	delta := int64(size - b.charged)
	if c.stats.Bytes+delta > c.opts.maxBytes {
		c.trimLocked(ctx, c.opts.minEntries, c.opts.minBytes)
	}
	if err := c.chargeLocked(ctx, delta); err != nil {
		return err
	}
	b.charged = size
	c.stats.Bytes += delta
	c.stats.PeakBytes = max(c.stats.PeakBytes, c.stats.Bytes)
	return nil
}

func (c *Cache) insertLocked(key cacheKey, b *Buffer) {
	c.entries[key] = c.lru.PushFront(b)

	fk := fileKeyOf(b.file)
	idx, ok := c.byFile[fk]
	if !ok {
		idx = roaring64.NewBitmap()
		c.byFile[fk] = idx
	}
	idx.Add(key.cluster)

	c.stats.Entries++
	c.stats.Bytes += int64(b.charged)
	c.stats.PeakEntries = max(c.stats.PeakEntries, c.stats.Entries)
	c.stats.PeakBytes = max(c.stats.PeakBytes, c.stats.Bytes)
}

// removeLocked unregisters elem and returns its memory to the budget. A
// buffer still owned stays valid for its owner but is no longer shared.
func (c *Cache) removeLocked(elem *list.Element) int64 {
	b := elem.Value.(*Buffer)
	key := cacheKey{dev: b.dev.ID(), cluster: b.cluster}

	delete(c.entries, key)
	c.lru.Remove(elem)

	fk := fileKeyOf(b.file)
	if idx, ok := c.byFile[fk]; ok {
		idx.Remove(key.cluster)
		if idx.IsEmpty() {
			delete(c.byFile, fk)
		}
	}

	size := int64(b.charged)
	c.stats.Entries--
	c.stats.Bytes -= size
	c.rc.ReleaseMemory(size)
	return size
}

func (b *Buffer) evictable() bool {
	if b.Flags()&(FlagWriteLocked|FlagDirty) != 0 {
		return false
	}
	return !b.inUse()
}

// trimLocked evicts from the least recently used end until both totals are
// at or below the targets, skipping buffers that are owned, write-locked or
// dirty.
func (c *Cache) trimLocked(ctx context.Context, entryTarget int, byteTarget int64) {
	var (
		evicted      int
		evictedBytes int64
	)
	for elem := c.lru.Back(); elem != nil && (c.stats.Entries > entryTarget || c.stats.Bytes > byteTarget); {
		prev := elem.Prev()
		if elem.Value.(*Buffer).evictable() {
			evictedBytes += c.removeLocked(elem)
			evicted++
		}
		elem = prev
	}
	if evicted == 0 {
		return
	}
	c.stats.Evictions += int64(evicted)
	c.stats.EvictedBytes += evictedBytes
	c.metrics.RecordEviction(evicted, evictedBytes)
	c.logger.LogEviction(ctx, evicted, evictedBytes, c.stats.Entries, c.stats.Bytes)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := c.stats
	c.mu.Unlock()

	s.Uncached = c.uncached.Load()
	s.UncachedBytes = c.uncachedBytes.Load()
	s.PeakUncached = c.peakUncached.Load()
	return s
}
