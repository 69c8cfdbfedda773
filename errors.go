package blockcache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed requests: a nil buffer or
	// file, a missing owner, a non-positive or oversized block size.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO is the class of failures a filesystem should surface as an I/O
	// error.
	ErrIO = errors.New("i/o error")

	// ErrOwnershipTimeout is returned when another owner kept a buffer for
	// longer than the ownership timeout. It also matches ErrIO: the block's
	// cached state is indeterminate and retrying indefinitely would risk
	// livelock.
	ErrOwnershipTimeout = fmt.Errorf("buffer ownership wait timed out: %w", ErrIO)

	// ErrOutOfMemory is returned when the memory budget cannot hold another
	// buffer even after eviction.
	ErrOutOfMemory = errors.New("out of buffer memory")

	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache closed")

	// ErrLeakedBuffers is returned by Close when standalone buffers were
	// never released.
	ErrLeakedBuffers = errors.New("standalone buffers outstanding")
)

// errOwnershipRace reports that the buffer changed hands while we waited.
// Allocate restarts its search on it; it never reaches callers.
var errOwnershipRace = errors.New("buffer ownership changed while waiting")

// BlockError decorates a failure with the block it concerns.
//
// The underlying error can be accessed via errors.Unwrap.
type BlockError struct {
	Op      string
	Device  uint64
	Cluster uint64
	Err     error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("blockcache: %s dev %d cluster %d: %v", e.Op, e.Device, e.Cluster, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

func blockError(op string, dev, cluster uint64, err error) error {
	if err == nil {
		return nil
	}
	return &BlockError{Op: op, Device: dev, Cluster: cluster, Err: err}
}
