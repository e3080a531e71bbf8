package repository

import "context"

// SourceQueue is a FIFO of source references waiting for a batch.
type SourceQueue interface {
	// Push enqueues ref unless it is already waiting. It reports whether ref
	// was added.
	Push(ctx context.Context, ref string) (bool, error)
	// Pop removes the oldest ref. It returns ErrQueueEmpty when nothing waits.
	// A non-empty ref returned with an error has left the queue and must
	// still be handled.
	Pop(ctx context.Context) (string, error)
	// Size returns the current number of waiting refs.
	Size(ctx context.Context) (int64, error)
}
