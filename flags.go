package blockcache

import "strings"

// Flag is a buffer state bit. The same set is used to request state at
// Allocate time and to describe a buffer afterwards.
type Flag uint32

const (
	// FlagNonCached requests (or marks) a standalone buffer that is never
	// registered in the cache.
	FlagNonCached Flag = 1 << iota
	// FlagUpToDate marks data that matches the device, so Read is a no-op.
	FlagUpToDate
	// FlagLittleEndian marks metadata already swapped to host order.
	FlagLittleEndian
	// FlagWriteLocked forbids Write and protects the entry from eviction.
	FlagWriteLocked
	// FlagDirty marks data that Sync must write back; dirty entries are not
	// evicted.
	FlagDirty
	// FlagPhysical tells Allocate the block number is already a physical
	// cluster. It is never stored on a buffer.
	FlagPhysical
)

const stateFlags = FlagNonCached | FlagUpToDate | FlagLittleEndian | FlagWriteLocked | FlagDirty

func (f Flag) String() string {
	if f == 0 {
		return "0"
	}
	names := []struct {
		f    Flag
		name string
	}{
		{FlagNonCached, "NonCached"},
		{FlagUpToDate, "UpToDate"},
		{FlagLittleEndian, "LittleEndian"},
		{FlagWriteLocked, "WriteLocked"},
		{FlagDirty, "Dirty"},
		{FlagPhysical, "Physical"},
	}
	var parts []string
	for _, n := range names {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// IterateFilter selects the buffers WriteIterate visits.
type IterateFilter uint8

const (
	// IterateAll visits every cached buffer of the file.
	IterateAll IterateFilter = 0
	// SkipWriteLocked skips buffers marked FlagWriteLocked.
	SkipWriteLocked IterateFilter = 1 << 0
	// SkipUnlocked skips buffers not marked FlagWriteLocked.
	SkipUnlocked IterateFilter = 1 << 1
)
