package blockcache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAllocate is called after each Allocate. hit reports whether a
	// resident buffer was returned.
	RecordAllocate(hit bool, duration time.Duration, err error)

	// RecordRead is called after each raw read that reached the device.
	RecordRead(bytes int, duration time.Duration, err error)

	// RecordWrite is called after each raw write.
	RecordWrite(bytes int, duration time.Duration, err error)

	// RecordEviction is called after a trim pass removed entries.
	RecordEviction(entries int, bytes int64)

	// RecordOwnershipWait is called after Allocate had to wait for another
	// owner. err is nil when the wait ended in a retry.
	RecordOwnershipWait(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordRead(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordEviction(int, int64)                 {}
func (NoopMetricsCollector) RecordOwnershipWait(time.Duration, error)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	AllocateCount     atomic.Int64
	AllocateHits      atomic.Int64
	AllocateErrors    atomic.Int64
	ReadCount         atomic.Int64
	ReadBytes         atomic.Int64
	ReadErrors        atomic.Int64
	ReadTotalNanos    atomic.Int64
	WriteCount        atomic.Int64
	WriteBytes        atomic.Int64
	WriteErrors       atomic.Int64
	WriteTotalNanos   atomic.Int64
	EvictedEntries    atomic.Int64
	EvictedBytes      atomic.Int64
	OwnershipWaits    atomic.Int64
	OwnershipTimeouts atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(hit bool, _ time.Duration, err error) {
	b.AllocateCount.Add(1)
	if err != nil {
		b.AllocateErrors.Add(1)
		return
	}
	if hit {
		b.AllocateHits.Add(1)
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(bytes int, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	b.ReadBytes.Add(int64(bytes))
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteBytes.Add(int64(bytes))
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(entries int, bytes int64) {
	b.EvictedEntries.Add(int64(entries))
	b.EvictedBytes.Add(bytes)
}

// RecordOwnershipWait implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOwnershipWait(_ time.Duration, err error) {
	b.OwnershipWaits.Add(1)
	if err != nil {
		b.OwnershipTimeouts.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocateCount:     b.AllocateCount.Load(),
		AllocateHits:      b.AllocateHits.Load(),
		AllocateErrors:    b.AllocateErrors.Load(),
		ReadCount:         b.ReadCount.Load(),
		ReadBytes:         b.ReadBytes.Load(),
		ReadErrors:        b.ReadErrors.Load(),
		ReadAvgNanos:      avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		WriteCount:        b.WriteCount.Load(),
		WriteBytes:        b.WriteBytes.Load(),
		WriteErrors:       b.WriteErrors.Load(),
		WriteAvgNanos:     avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		EvictedEntries:    b.EvictedEntries.Load(),
		EvictedBytes:      b.EvictedBytes.Load(),
		OwnershipWaits:    b.OwnershipWaits.Load(),
		OwnershipTimeouts: b.OwnershipTimeouts.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocateCount     int64
	AllocateHits      int64
	AllocateErrors    int64
	ReadCount         int64
	ReadBytes         int64
	ReadErrors        int64
	ReadAvgNanos      int64
	WriteCount        int64
	WriteBytes        int64
	WriteErrors       int64
	WriteAvgNanos     int64
	EvictedEntries    int64
	EvictedBytes      int64
	OwnershipWaits    int64
	OwnershipTimeouts int64
}
