// Package testutil provides testing utilities for blockcache.
//
// This package is intended for use in tests and benchmarks only.
//
// # Deterministic Randomness
//
//	rng := testutil.NewRNG(seed)
//	block := make([]byte, 4096)
//	rng.Fill(block)
//	hot := rng.Zipf(1000, 1.5) // skewed block number
//
// # Files
//
//	dev := device.NewMemory(4096)
//	f := testutil.NewFile(dev)
//	b, err := cache.Allocate(ctx, f, 0, 4096, 0)
package testutil
