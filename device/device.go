package device

import "sync/atomic"

// DefaultSectorSize is used when a constructor is given a non-positive sector
// size.
const DefaultSectorSize = 4096

func sectorOrDefault(n int) int {
	if n <= 0 {
		return DefaultSectorSize
	}
	return n
}

var idSeq atomic.Uint64

// NextID returns a process-wide unique device ID.
func NextID() uint64 { return idSeq.Add(1) }

// Counters are per-device I/O totals.
type Counters struct {
	Reads        int64
	Writes       int64
	BytesRead    int64
	BytesWritten int64
}

type counters struct {
	reads, writes           atomic.Int64
	bytesRead, bytesWritten atomic.Int64
}

func (c *counters) read(n int) {
	c.reads.Add(1)
	c.bytesRead.Add(int64(n))
}

func (c *counters) wrote(n int) {
	c.writes.Add(1)
	c.bytesWritten.Add(int64(n))
}

func (c *counters) snapshot() Counters {
	return Counters{
		Reads:        c.reads.Load(),
		Writes:       c.writes.Load(),
		BytesRead:    c.bytesRead.Load(),
		BytesWritten: c.bytesWritten.Load(),
	}
}

