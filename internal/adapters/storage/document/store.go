package document

import (
	"context"

	domain "dojo/internal/domain/document"
)

// Store defines the interface for uploaded document metadata.
type Store interface {
	Save(ctx context.Context, d domain.Document) error
	GetByID(ctx context.Context, id string) (domain.Document, error)
	// LinkToMember attaches documents uploaded during registration to the created member.
	// POST: every listed document has MemberID set
	LinkToMember(ctx context.Context, memberID string, ids []string) error
	ListByMember(ctx context.Context, memberID string) ([]domain.Document, error)
}

var _ Store = (*SQLiteStore)(nil)
