package event

import (
	"context"
	"time"

	domain "dojo/internal/domain/event"
)

// Store defines the interface for event persistence.
type Store interface {
	Save(ctx context.Context, e domain.Event) error
	GetByID(ctx context.Context, id string) (domain.Event, error)
	// List returns events ending on or after from, soonest first.
	// POST: when publicOnly is true, only public events are returned
	List(ctx context.Context, from time.Time, publicOnly bool) ([]domain.Event, error)
	Delete(ctx context.Context, id string) error
}

var _ Store = (*SQLiteStore)(nil)
