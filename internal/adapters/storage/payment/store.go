package payment

import (
	"context"
	"time"

	domain "dojo/internal/domain/payment"
)

// Store defines the interface for payment persistence.
type Store interface {
	// Save inserts or updates a payment.
	// PRE: p has been validated
	Save(ctx context.Context, p domain.Payment) error

	// GetByID retrieves a payment or returns ErrNotFound.
	GetByID(ctx context.Context, id string) (domain.Payment, error)

	// Complete moves a pending payment to outcome.
	// POST: returns false without changing anything when the payment is no longer pending
	Complete(ctx context.Context, id, outcome, gatewayRef string, now time.Time) (bool, error)

	// ListByMember returns a member's payments, newest first.
	ListByMember(ctx context.Context, memberID string) ([]domain.Payment, error)

	// SumByStatus returns the number and total cents of payments per status.
	SumByStatus(ctx context.Context) (map[string]Totals, error)
}

// Totals aggregates payments sharing a status.
type Totals struct {
	Count int
	Cents int64
}

var _ Store = (*SQLiteStore)(nil)
