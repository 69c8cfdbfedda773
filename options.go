package blockcache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/blockcache/resource"
)

const (
	// DefaultMaxEntries is the entry count that triggers trimming.
	DefaultMaxEntries = 4096
	// DefaultMinEntries is the entry count trimming stops at.
	DefaultMinEntries = 3072
	// DefaultMaxBytes is the byte total that triggers trimming.
	DefaultMaxBytes = 64 << 20
	// DefaultMinBytes is the byte total trimming stops at.
	DefaultMinBytes = 48 << 20
	// DefaultOwnershipTimeout bounds a wait for another owner's buffer.
	DefaultOwnershipTimeout = 3 * time.Second
	// DefaultMaxBufferSize is the largest block Allocate accepts.
	DefaultMaxBufferSize = 1 << 20
)

type options struct {
	maxEntries       int
	minEntries       int
	maxBytes         int64
	minBytes         int64
	ownershipTimeout time.Duration
	maxBufferSize    int
	caching          bool
	syncConcurrency  int
	translator       Translator
	rc               *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Cache.
type Option func(*options)

// WithEntryLimits sets the entry-count watermark pair. Once an insertion
// would push the cache past upper entries, it is trimmed down to lower.
func WithEntryLimits(upper, lower int) Option {
	return func(o *options) {
		o.maxEntries = upper
		o.minEntries = lower
	}
}

// WithByteLimits sets the byte-total watermark pair.
func WithByteLimits(upper, lower int64) Option {
	return func(o *options) {
		o.maxBytes = upper
		o.minBytes = lower
	}
}

// WithOwnershipTimeout bounds how long Allocate waits for another owner to
// release a shared buffer.
func WithOwnershipTimeout(d time.Duration) Option {
	return func(o *options) {
		o.ownershipTimeout = d
	}
}

// WithCaching enables or disables the shared registry. With caching
// disabled every Allocate returns a standalone buffer.
func WithCaching(enabled bool) Option {
	return func(o *options) {
		o.caching = enabled
	}
}

// WithMaxBufferSize sets the largest block size Allocate accepts.
func WithMaxBufferSize(n int) Option {
	return func(o *options) {
		o.maxBufferSize = n
	}
}

// WithSyncConcurrency bounds the write-back goroutines started by Sync.
func WithSyncConcurrency(n int) Option {
	return func(o *options) {
		o.syncConcurrency = n
	}
}

// WithTranslator configures logical-to-physical block translation.
//
// If nil is passed, LinearTranslator is used.
func WithTranslator(t Translator) Option {
	return func(o *options) {
		if t == nil {
			t = LinearTranslator{}
		}
		o.translator = t
	}
}

// WithResourceController charges buffer memory and device I/O against rc.
//
// Example:
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 128 << 20})
//	c, _ := blockcache.New(blockcache.WithResourceController(rc))
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &blockcache.BasicMetricsCollector{}
//	c, _ := blockcache.New(blockcache.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("hits: %d/%d\n", stats.AllocateHits, stats.AllocateCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) (options, error) {
	o := options{
		maxEntries:       DefaultMaxEntries,
		minEntries:       DefaultMinEntries,
		maxBytes:         DefaultMaxBytes,
		minBytes:         DefaultMinBytes,
		ownershipTimeout: DefaultOwnershipTimeout,
		maxBufferSize:    DefaultMaxBufferSize,
		caching:          true,
		syncConcurrency:  4,
		translator:       LinearTranslator{},
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	if o.minEntries < 0 || o.maxEntries <= o.minEntries {
		return o, fmt.Errorf("%w: entry limits max %d must exceed min %d", ErrInvalidArgument, o.maxEntries, o.minEntries)
	}
	if o.minBytes < 0 || o.maxBytes <= o.minBytes {
		return o, fmt.Errorf("%w: byte limits max %d must exceed min %d", ErrInvalidArgument, o.maxBytes, o.minBytes)
	}
	if o.ownershipTimeout <= 0 {
		return o, fmt.Errorf("%w: ownership timeout %v", ErrInvalidArgument, o.ownershipTimeout)
	}
	if o.maxBufferSize <= 0 {
		return o, fmt.Errorf("%w: max buffer size %d", ErrInvalidArgument, o.maxBufferSize)
	}
	if o.syncConcurrency <= 0 {
		o.syncConcurrency = 1
	}
	return o, nil
}
