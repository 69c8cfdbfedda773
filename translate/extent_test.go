package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/device"
	"github.com/hupe1980/blockcache/testutil"
)

func TestExtentMap_Resolve(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFile(device.NewMemory(4096))

	m := NewExtentMap()
	require.NoError(t, m.Map(f.ID(), Extent{FileOffset: 0, Length: 8192, Cluster: 100}))
	require.NoError(t, m.Map(f.ID(), Extent{FileOffset: 16384, Length: 4096, Cluster: 7}))

	tests := []struct {
		offset    uint64
		cluster   uint64
		remaining uint64
	}{
		{0, 100, 0},
		{4096, 101, 0},
		{4100, 101, 4},
		{16384, 7, 0},
	}
	for _, tt := range tests {
		cluster, remaining, err := m.ResolveCluster(ctx, f, tt.offset)
		require.NoError(t, err, "offset %d", tt.offset)
		assert.Equal(t, tt.cluster, cluster, "offset %d", tt.offset)
		assert.Equal(t, tt.remaining, remaining, "offset %d", tt.offset)
	}

	for _, hole := range []uint64{8192, 12288, 20480} {
		_, _, err := m.ResolveCluster(ctx, f, hole)
		assert.ErrorIs(t, err, ErrUnmapped, "offset %d", hole)
	}
}

func TestExtentMap_Map(t *testing.T) {
	m := NewExtentMap()
	require.NoError(t, m.Map(1, Extent{FileOffset: 4096, Length: 4096, Cluster: 1}))
	require.NoError(t, m.Map(1, Extent{FileOffset: 0, Length: 4096, Cluster: 9}))

	assert.ErrorIs(t, m.Map(1, Extent{FileOffset: 0, Length: 0}), blockcache.ErrInvalidArgument)
	assert.ErrorIs(t, m.Map(1, Extent{FileOffset: 2048, Length: 4096}), blockcache.ErrInvalidArgument)
	assert.ErrorIs(t, m.Map(1, Extent{FileOffset: 6000, Length: 10}), blockcache.ErrInvalidArgument)

	assert.Equal(t, []Extent{
		{FileOffset: 0, Length: 4096, Cluster: 9},
		{FileOffset: 4096, Length: 4096, Cluster: 1},
	}, m.Extents(1))

	m.Unmap(1)
	assert.Empty(t, m.Extents(1))
}

// A misaligned extent lands block reads inside a cluster, which the cache
// refuses.
func TestExtentMap_WithCache(t *testing.T) {
	dev := device.NewMemory(4096)
	f := testutil.NewFile(dev)

	m := NewExtentMap()
	require.NoError(t, m.Map(f.ID(), Extent{FileOffset: 0, Length: 4096, Cluster: 40}))
	require.NoError(t, m.Map(f.ID(), Extent{FileOffset: 4096, Length: 4096, Cluster: 0}))

	// g maps half a cluster off alignment.
	g := testutil.NewFile(dev)
	require.NoError(t, m.Map(g.ID(), Extent{FileOffset: 2048, Length: 8192, Cluster: 40}))

	c, err := blockcache.New(blockcache.WithTranslator(m))
	require.NoError(t, err)
	defer c.Close()

	ctx := blockcache.WithOwner(context.Background())
	b, err := c.Allocate(ctx, f, 0, 4096, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), b.Cluster())
	c.Release(ctx, b)

	_, err = c.Allocate(ctx, g, 1, 4096, 0)
	assert.ErrorIs(t, err, blockcache.ErrInvalidArgument)

	_, err = c.Allocate(ctx, f, 5, 4096, 0)
	assert.ErrorIs(t, err, ErrUnmapped)
}
