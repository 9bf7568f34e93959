package member

import (
	"context"
	"errors"

	domain "dojo/internal/domain/member"
)

// ErrNotFound is returned when no member or guardian matches.
var ErrNotFound = errors.New("member not found")

// Store persists Member and Guardian state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Member, error)
	GetByIDNumber(ctx context.Context, idNumber string) (domain.Member, error)
	GetByMembershipNumber(ctx context.Context, number string) (domain.Member, error)
	NumberTaken(ctx context.Context, number string) (bool, error)
	Save(ctx context.Context, value domain.Member) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Member, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	ListByGuardian(ctx context.Context, guardianID string) ([]domain.Member, error)
	SaveGuardian(ctx context.Context, value domain.Guardian) error
	GetGuardian(ctx context.Context, id string) (domain.Guardian, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit   int
	Offset  int
	Program string
	Status  string
	Search  string // matches name, email or membership number
	Sort    string // name, number, program, status, joined
	Dir     string // asc or desc
}
