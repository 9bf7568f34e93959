package payment

import (
	"errors"
	"fmt"
	"time"
)

// Type is the enumerated payment purpose sent to the gateway.
type Type string

const (
	TypeRegistrationFee Type = "registration_fee"
	TypeMonthlyFee      Type = "monthly_fee"
	TypeGradingFee      Type = "grading_fee"
	TypeEventFee        Type = "event_fee"
)

// Status constants for the payment lifecycle.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Currency is the only currency the school charges in.
const Currency = "ZAR"

// Domain errors
var (
	ErrUnknownType      = errors.New("unknown payment type")
	ErrInvalidAmount    = errors.New("payment amount must be positive")
	ErrAlreadyCompleted = errors.New("payment has already been completed")
	ErrInvalidOutcome   = errors.New("payment outcome must be paid, cancelled or failed")
	ErrNotAllowed       = errors.New("this payment type cannot be started here")
)

// Types lists every payment type.
var Types = []Type{TypeRegistrationFee, TypeMonthlyFee, TypeGradingFee, TypeEventFee}

// StudentTypes are the payments a student may start from the portal.
var StudentTypes = []Type{TypeMonthlyFee, TypeGradingFee}

// Label is a human name for the type.
func (t Type) Label() string {
	switch t {
	case TypeRegistrationFee:
		return "Registration fee"
	case TypeMonthlyFee:
		return "Monthly fee"
	case TypeGradingFee:
		return "Grading fee"
	case TypeEventFee:
		return "Event fee"
	}
	return string(t)
}

// Valid reports whether t is a known payment type.
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// StudentMayStart reports whether a student can create a link for t.
func StudentMayStart(t Type) bool {
	for _, v := range StudentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Amounts holds the configured price in cents for each type.
type Amounts map[Type]int64

// For returns the configured amount for t.
// POST: Returns a positive amount or an error
func (a Amounts) For(t Type) (int64, error) {
	if !t.Valid() {
		return 0, ErrUnknownType
	}
	cents, ok := a[t]
	if !ok || cents <= 0 {
		return 0, fmt.Errorf("%s: %w", t, ErrInvalidAmount)
	}
	return cents, nil
}

// Payment is one payment link and its outcome.
type Payment struct {
	ID          string
	MemberID    string
	Type        Type
	AmountCents int64
	Currency    string
	Reference   string // shown to the payer, e.g. "ZF0042-registration_fee"
	Status      string
	LinkURL     string
	GatewayRef  string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Validate checks the payment before it is stored.
// PRE: Payment struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Payment) Validate() error {
	if p.MemberID == "" {
		return errors.New("payment member is required")
	}
	if !p.Type.Valid() {
		return ErrUnknownType
	}
	if p.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if p.Currency != Currency {
		return errors.New("payment currency must be ZAR")
	}
	return nil
}

// IsPending reports whether the payment still awaits an outcome.
func (p *Payment) IsPending() bool {
	return p.Status == StatusPending
}

// Complete records the gateway outcome.
// PRE: Payment is pending
// POST: Status is the outcome and CompletedAt is now
// INVARIANT: A payment leaves pending at most once
func (p *Payment) Complete(outcome string, now time.Time) error {
	if outcome != StatusPaid && outcome != StatusCancelled && outcome != StatusFailed {
		return ErrInvalidOutcome
	}
	if !p.IsPending() {
		return ErrAlreadyCompleted
	}
	p.Status = outcome
	p.CompletedAt = now
	return nil
}

// FormatAmount renders cents as rands, e.g. "R350.00".
func FormatAmount(cents int64) string {
	return fmt.Sprintf("R%d.%02d", cents/100, cents%100)
}
