package registration

import (
	"context"

	domain "dojo/internal/domain/registration"
)

// Store defines the interface for registration persistence.
type Store interface {
	// Save persists a registration. Registrations are append-only.
	// PRE: r has been validated
	Save(ctx context.Context, r domain.Registration) error

	// ListByMember returns a member's registrations, newest first.
	ListByMember(ctx context.Context, memberID string) ([]domain.Registration, error)

	// CountSince returns how many registrations were submitted at or after since (RFC3339).
	CountSince(ctx context.Context, since string) (int, error)
}

var _ Store = (*SQLiteStore)(nil)
