package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/repository"
)

// Load reads the stored ledger. Any failure yields an empty state so a damaged
// or missing ledger never blocks a batch.
func Load(ctx context.Context, store repository.LedgerStore, logger *zap.Logger) *State {
	snap, err := store.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrLedgerNotFound):
		logger.Info("No ledger found, starting fresh")
		return NewState()
	case err != nil:
		logger.Warn("Ledger unreadable, starting fresh", zap.Error(err))
		return NewState()
	}

	state := FromSnapshot(snap)
	logger.Info("Ledger loaded",
		zap.Int("sources", len(snap.Sources)),
		zap.Int("tables", len(snap.Tables)),
		zap.Int("max_origin_id", state.MaxOriginID()),
	)
	for _, p := range state.Problems() {
		logger.Warn("Ledger integrity problem", zap.String("problem", p))
	}
	return state
}

// Commit writes the whole state, replacing the previous snapshot.
func Commit(ctx context.Context, store repository.LedgerStore, state *State) error {
	if err := store.Save(ctx, state.Snapshot()); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrLedgerIO, err)
	}
	return nil
}
