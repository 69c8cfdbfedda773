// Package blockcache provides a shared buffer cache for user-space filesystems.
//
// A Cache turns logical file-block requests into reference-counted,
// physically addressed memory buffers. Two files whose blocks map to the same
// physical cluster share one Buffer. Resident buffers are bounded by two
// watermark pairs (entry count and total bytes) and evicted in
// least-recently-used order.
//
// # Quick Start
//
//	c, _ := blockcache.New(
//	    blockcache.WithEntryLimits(1024, 768),
//	    blockcache.WithByteLimits(16<<20, 12<<20),
//	)
//	defer c.Close()
//
//	ctx = blockcache.WithOwner(ctx)
//	b, err := c.Allocate(ctx, file, 7, 4096, 0)
//	if err != nil {
//	    return err
//	}
//	defer c.Release(ctx, b)
//	if err := c.Read(ctx, b); err != nil {
//	    return err
//	}
//	use(b.Data()[:b.ValidBytes()])
//
// # Ownership
//
// Every goroutine that allocates buffers carries an OwnerID in its context
// (WithOwner). Allocate hands out ownership; an owner may allocate the same
// buffer again, and each Allocate is matched by one Release. Allocate of a
// buffer owned by someone else waits until it is released, up to the
// ownership timeout (WithOwnershipTimeout, 3s by default), and then fails
// with ErrOwnershipTimeout.
//
// Independently of ownership, Buffer.Lock and Buffer.Unlock form a reentrant
// field lock that serializes flag and data changes. Read and Write take it.
//
// # Flags
//
//	FlagPhysical     block is already a physical cluster (Allocate only)
//	FlagNonCached    standalone buffer, never registered
//	FlagUpToDate     contents match the device; Read is a no-op
//	FlagLittleEndian metadata already swapped to host order
//	FlagWriteLocked  Write panics; never evicted
//	FlagDirty        Sync writes it back; never evicted
//
// # Collaborators
//
// The cache performs no I/O of its own. A Device reads and writes clusters,
// a File names the device a block lives on and a Translator maps file offsets
// to clusters. Reference implementations live in the device and translate
// packages.
//
// # Resource Limits
//
// A resource.Controller passed with WithResourceController caps buffer
// memory (Allocate fails with ErrOutOfMemory once eviction cannot make room),
// paces device I/O and bounds parallel write-back in Sync.
//
// # Range Lists
//
// The rangelist package tracks byte ranges within a file, such as the valid
// or dirty parts of a block, as sorted, coalesced intervals.
package blockcache
