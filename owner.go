package blockcache

import (
	"context"
	"sync/atomic"
)

// OwnerID identifies a caller for buffer ownership and field locking. It
// plays the role a thread id plays in a threaded filesystem.
type OwnerID uint64

type ownerKey struct{}

var ownerSeq atomic.Uint64

// WithOwner returns a context carrying a fresh OwnerID. Each goroutine that
// allocates buffers should use its own.
func WithOwner(ctx context.Context) context.Context {
	return context.WithValue(ctx, ownerKey{}, OwnerID(ownerSeq.Add(1)))
}

// OwnerFromContext returns the OwnerID carried by ctx.
func OwnerFromContext(ctx context.Context) (OwnerID, bool) {
	id, ok := ctx.Value(ownerKey{}).(OwnerID)
	return id, ok && id != 0
}

func mustOwner(ctx context.Context) OwnerID {
	id, ok := OwnerFromContext(ctx)
	if !ok {
		panic("blockcache: context carries no owner; use WithOwner")
	}
	return id
}
