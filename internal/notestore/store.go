package notestore

import (
	"context"

	"github.com/starford/jotter/internal/models"
)

// Store defines the note persistence contract.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Store interface {
	Subscribe(ctx context.Context) (*Subscription, error)
	SubscribeTitleSearch(ctx context.Context, query string) (*Subscription, error)
	List(ctx context.Context) ([]models.Note, error)
	GetByID(ctx context.Context, id int64) (*models.Note, error)
	SearchByTitle(ctx context.Context, query string) ([]models.Note, error)
	Upsert(ctx context.Context, note *models.Note) error
	Save(ctx context.Context, note *models.Note) (created bool, err error)
	Delete(ctx context.Context, note models.Note) error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
