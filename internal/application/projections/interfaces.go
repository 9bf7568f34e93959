package projections

import (
	"context"
	"time"

	"dojo/internal/adapters/storage/member"
	"dojo/internal/adapters/storage/payment"
	domainAccount "dojo/internal/domain/account"
	domainConsent "dojo/internal/domain/consent"
	domainDocument "dojo/internal/domain/document"
	domainEvent "dojo/internal/domain/event"
	domainMember "dojo/internal/domain/member"
	domainOutbox "dojo/internal/domain/outbox"
	domainPayment "dojo/internal/domain/payment"
	domainRegistration "dojo/internal/domain/registration"
)

// MemberStore interface for member queries.
type MemberStore interface {
	GetByID(ctx context.Context, id string) (domainMember.Member, error)
	List(ctx context.Context, filter member.ListFilter) ([]domainMember.Member, error)
	Count(ctx context.Context, filter member.ListFilter) (int, error)
	ListByGuardian(ctx context.Context, guardianID string) ([]domainMember.Member, error)
	GetGuardian(ctx context.Context, id string) (domainMember.Guardian, error)
}

// AccountStore interface for account lookups.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (domainAccount.Account, error)
}

// RegistrationStore interface for registration queries.
type RegistrationStore interface {
	ListByMember(ctx context.Context, memberID string) ([]domainRegistration.Registration, error)
	CountSince(ctx context.Context, since string) (int, error)
}

// ConsentStore interface for consent queries.
type ConsentStore interface {
	GetByMemberID(ctx context.Context, memberID string) ([]domainConsent.Consent, error)
}

// DocumentStore interface for document queries.
type DocumentStore interface {
	ListByMember(ctx context.Context, memberID string) ([]domainDocument.Document, error)
}

// PaymentStore interface for payment queries.
type PaymentStore interface {
	ListByMember(ctx context.Context, memberID string) ([]domainPayment.Payment, error)
	SumByStatus(ctx context.Context) (map[string]payment.Totals, error)
}

// EventStore interface for event queries.
type EventStore interface {
	List(ctx context.Context, from time.Time, publicOnly bool) ([]domainEvent.Event, error)
}

// OutboxStore interface for outbox queries.
type OutboxStore interface {
	ListByStatus(ctx context.Context, status string, limit int) ([]domainOutbox.Entry, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}
