package blockcache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/hupe1980/blockcache/resource"
)

// Config is the file form of the cache options. Files are JSON with comments
// and trailing commas allowed. Zero fields keep their defaults.
type Config struct {
	MaxEntries       int    `json:"max_entries,omitempty"`
	MinEntries       int    `json:"min_entries,omitempty"`
	MaxBytes         int64  `json:"max_bytes,omitempty"`
	MinBytes         int64  `json:"min_bytes,omitempty"`
	OwnershipTimeout string `json:"ownership_timeout,omitempty"` // time.ParseDuration syntax
	MaxBufferSize    int    `json:"max_buffer_size,omitempty"`
	Caching          *bool  `json:"caching,omitempty"`
	SyncConcurrency  int    `json:"sync_concurrency,omitempty"`

	Resource ResourceConfig `json:"resource"`
	Log      LogConfig      `json:"log"`
}

// ResourceConfig mirrors resource.Config.
type ResourceConfig struct {
	MemoryLimitBytes int64 `json:"memory_limit_bytes,omitempty"`
	IOBytesPerSec    int64 `json:"io_bytes_per_sec,omitempty"`
	IOBurstBytes     int64 `json:"io_burst_bytes,omitempty"`
	MaxWriteback     int64 `json:"max_writeback,omitempty"`
}

func (r ResourceConfig) enabled() bool {
	return r != ResourceConfig{}
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error; empty disables logging
	Format string `json:"format,omitempty"` // text (default) or json
}

// LoadConfig reads and parses a config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses a config document.
func ParseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalidArgument, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSON: %w", ErrInvalidArgument, err)
	}

	if cfg.OwnershipTimeout != "" {
		if _, err := time.ParseDuration(cfg.OwnershipTimeout); err != nil {
			return Config{}, fmt.Errorf("%w: ownership_timeout: %w", ErrInvalidArgument, err)
		}
	}
	if _, _, err := cfg.Log.parse(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Options converts the config into cache options. A resource controller is
// built when any resource limit is set. Options appended by the caller after
// these take precedence.
func (cfg Config) Options() []Option {
	var opts []Option

	if cfg.MaxEntries != 0 || cfg.MinEntries != 0 {
		upper, lower := cfg.MaxEntries, cfg.MinEntries
		if upper == 0 {
			upper = DefaultMaxEntries
		}
		if lower == 0 {
			lower = upper * 3 / 4
		}
		opts = append(opts, WithEntryLimits(upper, lower))
	}
	if cfg.MaxBytes != 0 || cfg.MinBytes != 0 {
		upper, lower := cfg.MaxBytes, cfg.MinBytes
		if upper == 0 {
			upper = DefaultMaxBytes
		}
		if lower == 0 {
			lower = upper * 3 / 4
		}
		opts = append(opts, WithByteLimits(upper, lower))
	}
	if d, err := time.ParseDuration(cfg.OwnershipTimeout); err == nil && cfg.OwnershipTimeout != "" {
		opts = append(opts, WithOwnershipTimeout(d))
	}
	if cfg.MaxBufferSize != 0 {
		opts = append(opts, WithMaxBufferSize(cfg.MaxBufferSize))
	}
	if cfg.Caching != nil {
		opts = append(opts, WithCaching(*cfg.Caching))
	}
	if cfg.SyncConcurrency != 0 {
		opts = append(opts, WithSyncConcurrency(cfg.SyncConcurrency))
	}
	if cfg.Resource.enabled() {
		opts = append(opts, WithResourceController(resource.NewController(resource.Config(cfg.Resource))))
	}
	if level, format, err := cfg.Log.parse(); err == nil && cfg.Log.Level != "" {
		if format == "json" {
			opts = append(opts, WithLogger(NewJSONLogger(level)))
		} else {
			opts = append(opts, WithLogger(NewTextLogger(level)))
		}
	}
	return opts
}

func (l LogConfig) parse() (slog.Level, string, error) {
	var level slog.Level
	if l.Level != "" {
		if err := level.UnmarshalText([]byte(l.Level)); err != nil {
			return 0, "", fmt.Errorf("%w: log level: %w", ErrInvalidArgument, err)
		}
	}
	format := strings.ToLower(l.Format)
	switch format {
	case "", "text":
		format = "text"
	case "json":
	default:
		return 0, "", fmt.Errorf("%w: log format %q", ErrInvalidArgument, l.Format)
	}
	return level, format, nil
}
