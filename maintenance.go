package blockcache

import (
	"container/list"
	"context"
)

// WriteIterate calls fn for every resident buffer first allocated for file,
// in cluster order. The set is snapshotted first and fn runs without the
// cache mutex, so fn may call Allocate. fn does not own the buffers it is
// handed. A non-nil error from fn stops the walk and is returned.
func (c *Cache) WriteIterate(ctx context.Context, file File, fn func(*Buffer) error, filter IterateFilter) error {
	if c.closed.Load() {
		return ErrClosed
	}

	for _, b := range c.snapshot(file) {
		if err := ctx.Err(); err != nil {
			return err
		}
		locked := b.Flags()&FlagWriteLocked != 0
		if filter&SkipWriteLocked != 0 && locked {
			continue
		}
		if filter&SkipUnlocked != 0 && !locked {
			continue
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) snapshot(file File) []*Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	fk := fileKeyOf(file)
	idx, ok := c.byFile[fk]
	if !ok {
		return nil
	}
	out := make([]*Buffer, 0, idx.GetCardinality())
	it := idx.Iterator()
	for it.HasNext() {
		if elem, ok := c.entries[cacheKey{dev: fk.dev, cluster: it.Next()}]; ok {
			out = append(out, elem.Value.(*Buffer))
		}
	}
	return out
}

// RemoveFile unregisters every resident buffer first allocated for file and
// returns how many were removed. Buffers still owned stay valid for their
// owners.
func (c *Cache) RemoveFile(ctx context.Context, file File) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	fk := fileKeyOf(file)
	idx, ok := c.byFile[fk]
	if !ok {
		return 0
	}
	clusters := idx.ToArray()
	n := 0
	for _, cl := range clusters {
		if elem, ok := c.entries[cacheKey{dev: fk.dev, cluster: cl}]; ok {
			c.forceRemoveLocked(ctx, elem)
			n++
		}
	}
	return n
}

// RemoveDevice unregisters every resident buffer of dev.
func (c *Cache) RemoveDevice(ctx context.Context, dev Device) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := dev.ID()
	n := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*Buffer).dev.ID() == id {
			c.forceRemoveLocked(ctx, elem)
			n++
		}
		elem = next
	}
	return n
}

// RemoveAll unregisters every resident buffer.
func (c *Cache) RemoveAll(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeAllLocked(ctx)
}

func (c *Cache) removeAllLocked(ctx context.Context) int {
	n := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		c.forceRemoveLocked(ctx, elem)
		n++
		elem = next
	}
	return n
}

func (c *Cache) forceRemoveLocked(ctx context.Context, elem *list.Element) {
	b := elem.Value.(*Buffer)
	if b.inUse() || b.Flags()&FlagDirty != 0 {
		c.logger.WarnContext(ctx, "removing busy buffer",
			"device", b.dev.ID(),
			"cluster", b.cluster,
			"flags", b.Flags().String(),
		)
	}
	c.removeLocked(elem)
}
