package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when an allocation would exceed the
// memory budget.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes caps the bytes held by buffer data blocks.
	// If 0, usage is only tracked.
	MemoryLimitBytes int64

	// IOBytesPerSec caps raw device throughput. If 0, unlimited.
	IOBytesPerSec int64

	// IOBurstBytes is the token bucket depth. Defaults to IOBytesPerSec.
	IOBurstBytes int64

	// MaxWriteback bounds concurrent write-back jobs. If 0, defaults to 1.
	MaxWriteback int64
}

// Controller tracks buffer memory, paces device I/O and bounds write-back
// concurrency. It is safe for concurrent use.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64
	memPeak atomic.Int64

	wbSem *semaphore.Weighted

	ioLimiter *rate.Limiter
	ioBurst   int
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWriteback <= 0 {
		cfg.MaxWriteback = 1
	}

	c := &Controller{
		cfg:   cfg,
		wbSem: semaphore.NewWeighted(cfg.MaxWriteback),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOBytesPerSec > 0 {
		burst := cfg.IOBurstBytes
		if burst <= 0 {
			burst = cfg.IOBytesPerSec
		}
		c.ioBurst = int(burst)
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOBytesPerSec), c.ioBurst)
	}

	return c
}

// AcquireMemory reserves bytes of buffer memory without blocking.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}

	used := c.memUsed.Add(bytes)
	for {
		peak := c.memPeak.Load()
		if used <= peak || c.memPeak.CompareAndSwap(peak, used) {
			break
		}
	}
	return nil
}

// ReleaseMemory returns bytes reserved by AcquireMemory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// PeakMemoryUsage returns the highest reservation seen.
func (c *Controller) PeakMemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memPeak.Load()
}

// MemoryLimit returns the configured budget (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// WaitIO blocks until the I/O budget admits bytes, or ctx is done.
// Requests larger than the bucket depth are admitted in bucket-sized steps.
func (c *Controller) WaitIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	for bytes > 0 {
		n := min(bytes, c.ioBurst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// AcquireWriteback reserves a write-back slot, blocking while all are busy.
func (c *Controller) AcquireWriteback(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.wbSem.Acquire(ctx, 1)
}

// TryAcquireWriteback reserves a write-back slot without blocking.
func (c *Controller) TryAcquireWriteback() bool {
	if c == nil {
		return true
	}
	return c.wbSem.TryAcquire(1)
}

// ReleaseWriteback returns a slot reserved by AcquireWriteback.
func (c *Controller) ReleaseWriteback() {
	if c == nil {
		return
	}
	c.wbSem.Release(1)
}
