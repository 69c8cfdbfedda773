package blockcache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Sync writes back every dirty, not write-locked resident buffer of file.
//
// Each buffer is claimed through the ownership protocol under a fresh owner,
// so the caller must not hold any of them. Writes run in parallel, bounded by
// WithSyncConcurrency and by the resource controller's write-back slots. The
// first error cancels the remaining writes and is returned.
func (c *Cache) Sync(ctx context.Context, file File) error {
	if c.closed.Load() {
		return ErrClosed
	}

	var keys []cacheKey
	for _, b := range c.snapshot(file) {
		if b.Flags()&(FlagDirty|FlagWriteLocked) == FlagDirty {
			keys = append(keys, cacheKey{dev: b.dev.ID(), cluster: b.cluster})
		}
	}
	if len(keys) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.syncConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			return c.syncOne(gctx, key)
		})
	}
	return g.Wait()
}

func (c *Cache) syncOne(ctx context.Context, key cacheKey) error {
	if err := c.rc.AcquireWriteback(ctx); err != nil {
		return err
	}
	defer c.rc.ReleaseWriteback()

	ctx = WithOwner(ctx)
	id, _ := OwnerFromContext(ctx)

	c.mu.Lock()
	// Write-back is not a use; the entry keeps its place in the LRU.
	b, err := c.lookupLocked(ctx, id, key, false)
	if err != nil {
		return blockError("sync", key.dev, key.cluster, err)
	}
	c.mu.Unlock()
	if b == nil {
		// Evicted or invalidated since the snapshot.
		return nil
	}
	defer c.Release(ctx, b)

	b.lock(id)
	defer b.unlock(id)
	if b.Flags()&(FlagDirty|FlagWriteLocked) != FlagDirty {
		return nil
	}
	if err := c.Write(ctx, b); err != nil {
		return blockError("sync", key.dev, key.cluster, err)
	}
	return nil
}
