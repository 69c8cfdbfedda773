package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/device"
	"github.com/hupe1980/blockcache/rangelist"
	"github.com/hupe1980/blockcache/testutil"
	"github.com/hupe1980/blockcache/translate"
)

// benchFile is a file on the shared device that remembers which of its
// bytes were modified since the last sync.
type benchFile struct {
	*testutil.File

	mu       sync.Mutex
	modified *rangelist.List
}

func (f *benchFile) markModified(off, n int64) {
	f.mu.Lock()
	f.modified.Add(off, off+n-1)
	f.mu.Unlock()
}

type result struct {
	Options  options
	Started  time.Time
	Elapsed  time.Duration
	Ops      int64
	Writes   int64
	Synced   int64 // modified bytes covered by the final sync
	Ranges   int   // disjoint modified ranges before the sync
	Cache    blockcache.Stats
	Metrics  blockcache.BasicMetricsStats
	Device   *device.Counters // nil if the device keeps none
	CloseErr error
}

func runWorkload(ctx context.Context, o options, dev blockcache.Device) (*result, error) {
	var cfg blockcache.Config
	if o.config != "" {
		var err error
		if cfg, err = blockcache.LoadConfig(o.config); err != nil {
			return nil, err
		}
	}

	// Each file gets its own run of clusters on the device.
	extents := translate.NewExtentMap()
	files := make([]*benchFile, o.files)
	for i := range files {
		f := &benchFile{File: testutil.NewFile(dev), modified: rangelist.New()}
		err := extents.Map(f.ID(), translate.Extent{
			FileOffset: 0,
			Length:     uint64(o.blocks) * uint64(o.blockSize),
			Cluster:    uint64(i) * uint64(o.blocks),
		})
		if err != nil {
			return nil, err
		}
		files[i] = f
	}

	mc := &blockcache.BasicMetricsCollector{}
	opts := append(cfg.Options(),
		blockcache.WithTranslator(extents),
		blockcache.WithMetricsCollector(mc),
	)
	if o.blockSize > blockcache.DefaultMaxBufferSize {
		opts = append(opts, blockcache.WithMaxBufferSize(o.blockSize))
	}
	c, err := blockcache.New(opts...)
	if err != nil {
		return nil, err
	}

	res := &result{Options: o, Started: time.Now()}

	var (
		mu     sync.Mutex
		writes int64
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := range o.workers {
		rng := testutil.NewRNG(o.seed + int64(w))
		g.Go(func() error {
			n, err := worker(gctx, c, files, rng, o)
			mu.Lock()
			writes += n
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		_ = c.Close()
		return nil, err
	}

	for _, f := range files {
		res.Ranges += f.modified.Len()
		if err := c.Sync(ctx, f); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("sync file %d: %w", f.ID(), err)
		}
		res.Synced += f.modified.Total()
		f.modified.RemoveAll()
	}

	res.Elapsed = time.Since(res.Started)
	res.Ops = int64(o.workers) * int64(o.ops)
	res.Writes = writes
	res.Cache = c.Stats()
	res.Metrics = mc.GetStats()
	if cd, ok := dev.(interface{ Counters() device.Counters }); ok {
		counters := cd.Counters()
		res.Device = &counters
	}
	res.CloseErr = c.Close()
	return res, nil
}

// worker runs o.ops cycles and returns how many modified their block.
func worker(ctx context.Context, c *blockcache.Cache, files []*benchFile, rng *testutil.RNG, o options) (int64, error) {
	ctx = blockcache.WithOwner(ctx)

	var writes int64
	for range o.ops {
		if err := ctx.Err(); err != nil {
			return writes, err
		}
		f := files[rng.Intn(len(files))]
		block := uint64(rng.Zipf(o.blocks, o.skew))

		b, err := c.Allocate(ctx, f, block, o.blockSize, 0)
		if err != nil {
			return writes, err
		}
		if err := c.Read(ctx, b); err != nil {
			c.Release(ctx, b)
			return writes, err
		}

		if rng.Intn(100) < o.writePct {
			off := rng.Intn(o.blockSize)
			n := 1 + rng.Intn(o.blockSize-off)

			b.Lock(ctx)
			rng.Fill(b.Data()[off : off+n])
			b.Unlock(ctx)
			b.SetFlag(ctx, blockcache.FlagDirty)

			f.markModified(int64(block)*int64(o.blockSize)+int64(off), int64(n))
			writes++
		}
		c.Release(ctx, b)
	}
	return writes, nil
}
