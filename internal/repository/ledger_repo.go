package repository

import (
	"context"

	"github.com/user/tablemagnifier/internal/entity"
)

// LedgerStore persists both ledger relations. Save always overwrites the whole
// prior snapshot.
type LedgerStore interface {
	// Load returns ErrLedgerNotFound when nothing has been written yet.
	Load(ctx context.Context) (entity.LedgerSnapshot, error)
	Save(ctx context.Context, snapshot entity.LedgerSnapshot) error
}
