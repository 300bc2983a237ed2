package port

import (
	"context"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
)

// FrameFuture is the handle for one requested source frame. Requesting and
// consuming are split so a caller can declare all of its dependencies before
// waiting on any of them.
//
// Release must be called exactly once per future, on every exit path; it
// returns the lease regardless of whether Await was ever called or whether
// it failed.
type FrameFuture interface {
	// Await blocks until the frame has materialized or ctx is done.
	Await(ctx context.Context) (*entity.Frame, error)

	// Release returns the lease on the frame. Idempotent.
	Release()
}

// FrameSource serves frames from the source timeline by index.
type FrameSource interface {
	// RequestFrame starts fetching the frame at index and returns
	// immediately. Out-of-range indices surface as an Await error.
	RequestFrame(ctx context.Context, index int) FrameFuture

	// FrameCount reports the total number of source frames.
	FrameCount() int
}
