package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type SnapshotRepository interface {
	// Load returns a private copy of the stored snapshot; an empty store yields an empty snapshot
	Load(ctx context.Context) (*domain.Snapshot, error)

	// Save replaces the stored snapshot with optimistic locking on snap.Revision.
	// On success snap.Revision is advanced to the new stored revision.
	Save(ctx context.Context, snap *domain.Snapshot) error
}
