package blockcache_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/device"
	"github.com/hupe1980/blockcache/resource"
	"github.com/hupe1980/blockcache/testutil"
)

func populate(t *testing.T, c *blockcache.Cache, f blockcache.File, blocks []uint64, flags map[uint64]blockcache.Flag) {
	t.Helper()
	ctx := blockcache.WithOwner(context.Background())
	for _, block := range blocks {
		b, err := c.Allocate(ctx, f, block, blockSize, 0)
		require.NoError(t, err)
		if fl := flags[block]; fl != 0 {
			b.SetFlag(ctx, fl)
		}
		c.Release(ctx, b)
	}
}

func clustersOf(t *testing.T, c *blockcache.Cache, f blockcache.File, filter blockcache.IterateFilter) []uint64 {
	t.Helper()
	var out []uint64
	err := c.WriteIterate(context.Background(), f, func(b *blockcache.Buffer) error {
		out = append(out, b.Cluster())
		return nil
	}, filter)
	require.NoError(t, err)
	return out
}

func TestWriteIterate(t *testing.T) {
	c := newCache(t)
	dev := device.NewMemory(blockSize)
	f, g := testutil.NewFile(dev), testutil.NewFile(dev)

	populate(t, c, f, []uint64{5, 1, 3}, map[uint64]blockcache.Flag{3: blockcache.FlagWriteLocked})
	populate(t, c, g, []uint64{2}, nil)

	assert.Equal(t, []uint64{1, 3, 5}, clustersOf(t, c, f, blockcache.IterateAll))
	assert.Equal(t, []uint64{1, 5}, clustersOf(t, c, f, blockcache.SkipWriteLocked))
	assert.Equal(t, []uint64{3}, clustersOf(t, c, f, blockcache.SkipUnlocked))
	assert.Equal(t, []uint64{2}, clustersOf(t, c, g, blockcache.IterateAll))
	assert.Empty(t, clustersOf(t, c, testutil.NewFile(dev), blockcache.IterateAll))

	errStop := errors.New("stop")
	calls := 0
	err := c.WriteIterate(context.Background(), f, func(*blockcache.Buffer) error {
		calls++
		return errStop
	}, blockcache.IterateAll)
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.WriteIterate(ctx, f, func(*blockcache.Buffer) error { return nil }, blockcache.IterateAll)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteIterate_CallbackMayAllocate(t *testing.T) {
	c := newCache(t)
	f := testutil.NewFile(device.NewMemory(blockSize))
	populate(t, c, f, []uint64{1, 2}, nil)

	ctx := blockcache.WithOwner(context.Background())
	err := c.WriteIterate(ctx, f, func(b *blockcache.Buffer) error {
		got, err := c.Allocate(ctx, f, b.Block(), blockSize, 0)
		if err != nil {
			return err
		}
		defer c.Release(ctx, got)
		if got != b {
			return errors.New("different buffer")
		}
		return nil
	}, blockcache.IterateAll)
	assert.NoError(t, err)
}

func TestRemove(t *testing.T) {
	c := newCache(t)
	dev1, dev2 := device.NewMemory(blockSize), device.NewMemory(blockSize)
	f, g, h := testutil.NewFile(dev1), testutil.NewFile(dev1), testutil.NewFile(dev2)
	ctx := context.Background()

	populate(t, c, f, []uint64{1, 2, 3}, nil)
	populate(t, c, g, []uint64{10, 11}, nil)
	populate(t, c, h, []uint64{1, 2}, nil)
	require.Equal(t, 7, c.Stats().Entries)

	assert.Equal(t, 3, c.RemoveFile(ctx, f))
	assert.Zero(t, c.RemoveFile(ctx, f))
	assert.Equal(t, 4, c.Stats().Entries)
	assert.Empty(t, clustersOf(t, c, f, blockcache.IterateAll))

	assert.Equal(t, 2, c.RemoveDevice(ctx, dev2))
	assert.Equal(t, 2, c.Stats().Entries)

	assert.Equal(t, 2, c.RemoveAll(ctx))
	s := c.Stats()
	assert.Zero(t, s.Entries)
	assert.Zero(t, s.Bytes)
}

func TestRemove_FileIDsArePerDevice(t *testing.T) {
	c := newCache(t)
	f1 := testutil.NewFileWithID(device.NewMemory(blockSize), 2)
	f2 := testutil.NewFileWithID(device.NewMemory(blockSize), 2)

	populate(t, c, f1, []uint64{5}, nil)
	populate(t, c, f2, []uint64{7}, nil)

	assert.Equal(t, []uint64{5}, clustersOf(t, c, f1, blockcache.IterateAll))
	assert.Equal(t, []uint64{7}, clustersOf(t, c, f2, blockcache.IterateAll))

	assert.Equal(t, 1, c.RemoveFile(context.Background(), f2))
	assert.Equal(t, []uint64{5}, clustersOf(t, c, f1, blockcache.IterateAll))
	assert.Empty(t, clustersOf(t, c, f2, blockcache.IterateAll))
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestRemove_OwnedBufferStaysValid(t *testing.T) {
	c := newCache(t)
	f := testutil.NewFile(device.NewMemory(blockSize))
	ctx := blockcache.WithOwner(context.Background())

	b, err := c.Allocate(ctx, f, 4, blockSize, 0)
	require.NoError(t, err)
	copy(b.Data(), "still here")

	assert.Equal(t, 1, c.RemoveFile(ctx, f))
	assert.Equal(t, "still here", string(b.Data()[:10]))
	require.NoError(t, c.Read(ctx, b))

	fresh, err := c.Allocate(ctx, f, 4, blockSize, 0)
	require.NoError(t, err)
	assert.NotSame(t, b, fresh)

	c.Release(ctx, fresh)
	c.Release(ctx, b)
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestSync(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxWriteback: 2})
	c := newCache(t, blockcache.WithResourceController(rc), blockcache.WithSyncConcurrency(3))
	dev := device.NewMemory(blockSize)
	f := testutil.NewFile(dev)
	ctx := blockcache.WithOwner(context.Background())

	want := make(map[uint64][]byte)
	for block := uint64(0); block < 8; block++ {
		b, err := c.Allocate(ctx, f, block, blockSize, blockcache.FlagUpToDate)
		require.NoError(t, err)
		copy(b.Data(), bytes.Repeat([]byte{byte(block + 1)}, blockSize))
		want[block] = bytes.Clone(b.Data())
		b.SetFlag(ctx, blockcache.FlagDirty)
		if block == 7 {
			b.SetFlag(ctx, blockcache.FlagWriteLocked)
		}
		c.Release(ctx, b)
	}
	populate(t, c, f, []uint64{8}, nil)

	require.NoError(t, c.Sync(context.Background(), f))

	for block := uint64(0); block < 7; block++ {
		assert.Equal(t, want[block], dev.Peek(block), "block %d", block)
	}
	assert.Nil(t, dev.Peek(7), "write-locked buffers are skipped")
	assert.Nil(t, dev.Peek(8), "clean buffers are skipped")
	assert.Equal(t, int64(7), dev.Counters().Writes)

	err := c.WriteIterate(ctx, f, func(b *blockcache.Buffer) error {
		dirty := b.Flags()&blockcache.FlagDirty != 0
		assert.Equal(t, b.Cluster() == 7, dirty, "cluster %d", b.Cluster())
		return nil
	}, blockcache.IterateAll)
	require.NoError(t, err)

	// Nothing left to write.
	require.NoError(t, c.Sync(context.Background(), f))
	assert.Equal(t, int64(7), dev.Counters().Writes)
}

func TestSync_KeepsLRUOrder(t *testing.T) {
	c := newCache(t, blockcache.WithEntryLimits(4, 2))
	dev := device.NewMemory(blockSize)
	f := testutil.NewFile(dev)

	populate(t, c, f, []uint64{0, 1, 2, 3}, map[uint64]blockcache.Flag{0: blockcache.FlagDirty})
	require.NoError(t, c.Sync(context.Background(), f))
	assert.Equal(t, int64(1), dev.Counters().Writes)

	// Block 0 is still the oldest, so it goes first.
	populate(t, c, f, []uint64{4}, nil)
	assert.Equal(t, []uint64{2, 3, 4}, clustersOf(t, c, f, blockcache.IterateAll))
}

func TestSync_Error(t *testing.T) {
	c := newCache(t)
	faulty := device.NewFaulty(device.NewMemory(blockSize))
	faulty.FailWrite(3, nil)
	f := testutil.NewFile(faulty)

	populate(t, c, f, []uint64{1, 2, 3}, map[uint64]blockcache.Flag{
		1: blockcache.FlagDirty,
		2: blockcache.FlagDirty,
		3: blockcache.FlagDirty,
	})

	err := c.Sync(context.Background(), f)
	assert.ErrorIs(t, err, device.ErrInjected)

	var be *blockcache.BlockError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "sync", be.Op)
	assert.Equal(t, uint64(3), be.Cluster)

	faulty.Heal(3)
	assert.NoError(t, c.Sync(context.Background(), f))
}
