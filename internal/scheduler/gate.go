package scheduler

import (
	"context"
	"fmt"
)

// Gate bounds the number of concurrent interpolator invocations to the
// configured GPU lane count. It is a plain counting semaphore: no frame
// identity, no priority, and no fairness guarantee beyond the capacity
// bound itself.
type Gate struct {
	permits chan struct{}
}

// NewGate creates a gate with lanes permits.
func NewGate(lanes int) (*Gate, error) {
	if lanes < 1 {
		return nil, fmt.Errorf("lane count must be at least 1, got %d", lanes)
	}
	return &Gate{permits: make(chan struct{}, lanes)}, nil
}

// Acquire blocks until a permit is available or ctx is done. A caller that
// acquires a permit must guarantee a matching Release on every exit path.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a permit without blocking, reporting whether it did.
func (g *Gate) TryAcquire() bool {
	select {
	case g.permits <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a previously acquired permit. Releasing without a
// matching acquisition is a programming error.
func (g *Gate) Release() {
	select {
	case <-g.permits:
	default:
		panic("scheduler: gate released without matching acquire")
	}
}

// InUse reports the number of outstanding permits.
func (g *Gate) InUse() int {
	return len(g.permits)
}

// Lanes reports the gate's capacity.
func (g *Gate) Lanes() int {
	return cap(g.permits)
}
