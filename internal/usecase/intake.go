package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/ledger"
	"github.com/user/tablemagnifier/internal/repository"
	"github.com/user/tablemagnifier/pkg/metrics"
)

// Intake feeds the source queue, refusing refs the ledger already holds.
type Intake struct {
	queue   repository.SourceQueue
	state   *ledger.State
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewIntake(queue repository.SourceQueue, state *ledger.State, m *metrics.Metrics, logger *zap.Logger) *Intake {
	if m == nil {
		m = metrics.Nop()
	}
	return &Intake{queue: queue, state: state, metrics: m, logger: logger}
}

// Submit queues ref. It returns ErrAlreadyRecorded for refs in the ledger and
// false when ref is already waiting in the queue.
func (in *Intake) Submit(ctx context.Context, ref string) (bool, error) {
	if in.state.Contains(ParseSource(ref).Ref) {
		return false, ErrAlreadyRecorded
	}
	added, err := in.queue.Push(ctx, ref)
	if err != nil {
		return false, err
	}
	if size, err := in.queue.Size(ctx); err == nil {
		in.metrics.QueueDepth.Set(float64(size))
	} else {
		in.logger.Warn("Queue size unavailable", zap.Error(err))
	}
	return added, nil
}

// Take drains up to limit queued refs into batch sources. A limit of zero or
// less takes everything. A ref that left the queue is always returned, even
// when the queue reported an error alongside it.
func (in *Intake) Take(ctx context.Context, limit int) ([]Source, error) {
	var sources []Source
	for limit <= 0 || len(sources) < limit {
		ref, err := in.queue.Pop(ctx)
		if errors.Is(err, repository.ErrQueueEmpty) {
			break
		}
		if ref == "" {
			if err != nil {
				return sources, err
			}
			continue
		}
		if err != nil {
			in.logger.Warn("Queued ref popped with error", zap.String("source", ref), zap.Error(err))
		}
		sources = append(sources, ParseSource(ref))
	}
	if size, err := in.queue.Size(ctx); err == nil {
		in.metrics.QueueDepth.Set(float64(size))
	}
	return sources, nil
}
