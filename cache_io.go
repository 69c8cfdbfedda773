package blockcache

import (
	"context"
	"io"
	"time"
)

// Read fills b from its device unless it is already up to date. The caller
// must own b. Device errors are returned unmodified.
func (c *Cache) Read(ctx context.Context, b *Buffer) error {
	id := mustOwner(ctx)
	b.mustOwn(id, "read")
	if c.closed.Load() {
		return ErrClosed
	}

	b.lock(id)
	defer b.unlock(id)

	if b.Flags()&FlagUpToDate != 0 {
		return nil
	}
	if err := c.rc.WaitIO(ctx, b.size); err != nil {
		return err
	}

	start := time.Now()
	n, err := b.dev.ReadBlock(ctx, b.cluster, b.data[:b.size])
	c.metrics.RecordRead(n, time.Since(start), err)
	if err != nil {
		c.logger.LogIOError(ctx, "read", b.dev.ID(), b.cluster, err)
		return err
	}

	b.validBytes = n
	b.flags.Or(uint32(FlagUpToDate))
	return nil
}

// Write stores all of b on its device and clears FlagDirty. The caller must
// own b, and b must not be write-locked. FlagUpToDate is left as it was.
func (c *Cache) Write(ctx context.Context, b *Buffer) error {
	id := mustOwner(ctx)
	b.mustOwn(id, "write")
	if c.closed.Load() {
		return ErrClosed
	}

	b.lock(id)
	defer b.unlock(id)

	if b.Flags()&FlagWriteLocked != 0 {
		panic("blockcache: write of write-locked " + b.String())
	}
	if err := c.rc.WaitIO(ctx, b.size); err != nil {
		return err
	}

	start := time.Now()
	n, err := b.dev.WriteBlock(ctx, b.cluster, b.data[:b.size])
	if err == nil && n < b.size {
		err = io.ErrShortWrite
	}
	c.metrics.RecordWrite(n, time.Since(start), err)
	if err != nil {
		c.logger.LogIOError(ctx, "write", b.dev.ID(), b.cluster, err)
		return err
	}

	b.flags.And(^uint32(FlagDirty))
	return nil
}

// Release drops one hold on b. A standalone buffer is freed when its last
// hold goes. Release then trims the cache if it is over a watermark and the
// cache mutex is free; it never blocks on other goroutines.
func (c *Cache) Release(ctx context.Context, b *Buffer) {
	if b == nil {
		return
	}
	if b.rele(mustOwner(ctx)) == 0 && !b.Cached() {
		c.freeStandalone(b)
	}

	if !c.mu.TryLock() {
		return
	}
	if c.stats.Entries > c.opts.maxEntries || c.stats.Bytes > c.opts.maxBytes {
		c.trimLocked(ctx, c.opts.minEntries, c.opts.minBytes)
	}
	c.mu.Unlock()
}

// Invalidate drops one hold on b and discards it: a cached buffer is
// unregistered, so the next Allocate of its cluster starts from scratch, and a
// standalone buffer is freed.
func (c *Cache) Invalidate(ctx context.Context, b *Buffer) {
	if b == nil {
		return
	}
	b.rele(mustOwner(ctx))

	if !b.Cached() {
		c.freeStandalone(b)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{dev: b.dev.ID(), cluster: b.cluster}
	if elem, ok := c.entries[key]; ok && elem.Value.(*Buffer) == b {
		c.removeLocked(elem)
		c.stats.Invalidations++
	}
}

func (c *Cache) freeStandalone(b *Buffer) {
	if !b.freed.CompareAndSwap(false, true) {
		return
	}
	c.uncached.Add(-1)
	c.uncachedBytes.Add(-int64(b.size))
	c.rc.ReleaseMemory(int64(b.size))
}
