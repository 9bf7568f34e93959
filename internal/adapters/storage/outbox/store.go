package outbox

import (
	"context"

	domain "dojo/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry.
	// PRE: entry has been validated
	// POST: Entry is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns entries still to be delivered (pending or retrying).
	// PRE: limit > 0
	// POST: Returns up to limit entries, oldest first
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListByStatus returns entries in one status, most recently attempted first.
	// An empty status lists every entry.
	ListByStatus(ctx context.Context, status string, limit int) ([]domain.Entry, error)

	// CountByStatus returns the number of entries per status.
	CountByStatus(ctx context.Context) (map[string]int, error)

	// Delete removes a terminal outbox entry.
	// PRE: id is non-empty
	Delete(ctx context.Context, id string) error
}

var _ Store = (*SQLiteStore)(nil)
