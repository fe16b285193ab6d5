package browser

import (
	"context"
	"fmt"
)

// gate is a counting semaphore bounding simultaneous in-flight fetch calls.
// One slot covers a whole fetch call including all of its retries; a single
// call never holds more than one slot even though it may open several pages.
type gate struct {
	slots chan struct{}
}

func newGate(capacity int) gate {
	return gate{slots: make(chan struct{}, capacity)}
}

// acquire blocks until a slot is free or ctx is done. The returned release
// func must be called exactly once; callers defer it so every exit path,
// including panics further down, gives the slot back.
func (g gate) acquire(ctx context.Context) (func(), error) {
	select {
	case g.slots <- struct{}{}:
		return func() { <-g.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire fetch slot: %w", ctx.Err())
	}
}
