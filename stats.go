package blockcache

// Stats is a snapshot of cache counters.
type Stats struct {
	// Resident registry.
	Entries     int
	Bytes       int64
	PeakEntries int
	PeakBytes   int64

	Hits          int64
	Misses        int64
	Evictions     int64
	EvictedBytes  int64
	Invalidations int64

	OwnershipWaits    int64
	OwnershipTimeouts int64

	// Standalone (FlagNonCached) buffers.
	Uncached      int64
	UncachedBytes int64
	PeakUncached  int64
}

// HitRate returns Hits / (Hits + Misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
