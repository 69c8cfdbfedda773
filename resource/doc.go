// Package resource governs the shared budgets a block cache draws on.
//
//	┌──────────────────────────────────────────────────────────┐
//	│                       Controller                         │
//	├──────────────────┬──────────────────┬────────────────────┤
//	│  Buffer memory   │  Device I/O      │  Write-back slots  │
//	│  (fail-fast)     │  (token bucket)  │  (semaphore)       │
//	├──────────────────┼──────────────────┼────────────────────┤
//	│  AcquireMemory   │  WaitIO          │  AcquireWriteback  │
//	│  ReleaseMemory   │                  │  ReleaseWriteback  │
//	│  MemoryUsage     │                  │                    │
//	└──────────────────┴──────────────────┴────────────────────┘
//
// # Buffer memory
//
// Every buffer's data block is charged against the memory budget when it is
// allocated and credited back when it is freed. AcquireMemory never blocks:
// when the budget is exhausted it returns ErrMemoryLimitExceeded and the
// cache decides whether to evict and retry.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 256 << 20,
//	})
//	if err := rc.AcquireMemory(4096); err != nil {
//	    // evict, then retry or fail with OutOfMemory
//	}
//	defer rc.ReleaseMemory(4096)
//
// # Device I/O
//
// WaitIO paces raw block reads and writes through a token bucket so a
// burst of cache misses cannot saturate the device.
//
// # Nil safety
//
// All methods accept a nil *Controller and behave as if no limit were set.
package resource
