package consent

import (
	"context"

	domain "dojo/internal/domain/consent"
)

// Store defines the interface for consent persistence.
type Store interface {
	// Save persists a consent record.
	// PRE: consent is valid
	// POST: Consent is persisted (insert or update)
	Save(ctx context.Context, c domain.Consent) error

	// GetByMemberID retrieves all consent records for a member, newest first.
	// PRE: memberID is non-empty
	GetByMemberID(ctx context.Context, memberID string) ([]domain.Consent, error)

	// HasValidConsent checks if member has a current, unrevoked consent of a type.
	// PRE: memberID and consentType are non-empty
	HasValidConsent(ctx context.Context, memberID string, consentType domain.Type) (bool, error)
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
