package blockcache_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/device"
	"github.com/hupe1980/blockcache/testutil"
)

// Example demonstrates the allocate/read/release cycle.
func Example() {
	c, err := blockcache.New()
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	dev := device.NewMemory(4096)
	file := testutil.NewFile(dev)
	ctx := blockcache.WithOwner(context.Background())

	b, err := c.Allocate(ctx, file, 7, 4096, 0)
	if err != nil {
		log.Fatal(err)
	}
	if err := c.Read(ctx, b); err != nil {
		log.Fatal(err)
	}
	fmt.Println(b.Cluster(), b.ValidBytes(), b.Flags())
	c.Release(ctx, b)

	// Output: 7 4096 UpToDate
}

// Example_standalone shows buffers that bypass the shared registry.
func Example_standalone() {
	c, err := blockcache.New()
	if err != nil {
		log.Fatal(err)
	}

	file := testutil.NewFile(device.NewMemory(4096))
	ctx := blockcache.WithOwner(context.Background())

	b, err := c.Allocate(ctx, file, 0, 4096, blockcache.FlagNonCached)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("outstanding:", c.Stats().Uncached)
	c.Release(ctx, b)
	fmt.Println("outstanding:", c.Stats().Uncached)
	fmt.Println(c.Close())

	// Output:
	// outstanding: 1
	// outstanding: 0
	// <nil>
}
