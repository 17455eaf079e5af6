package repository

import (
	"context"

	"github.com/mamadbah2/hostelbites/internal/domain/models"
)

// Store persists the roster and the attendance state.
//
// Load returns an empty roster and a normalized state with a zero LastReset
// when nothing has been saved yet. Save writes both halves of the snapshot;
// implementations backed by a transactional engine must apply them atomically.
type Store interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snapshot models.Snapshot) error
}
