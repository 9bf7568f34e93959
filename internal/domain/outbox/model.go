package outbox

import (
	"errors"
	"time"
)

// Status constants for outbox entry lifecycle.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// ActionTypeEmail sends one transactional email.
const ActionTypeEmail = "email"

// DefaultMaxAttempts is used when an entry does not set its own limit.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrNotRetryable    = errors.New("entry cannot be retried")
	ErrTerminal        = errors.New("entry is already finished")
)

// Entry is one external action waiting to be delivered.
type Entry struct {
	ID              string
	ActionType      string
	Payload         string // JSON payload for replay
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	CreatedAt       time.Time
	ExternalID      string // provider message ID once delivered
	ErrorMessage    string // last error if the action failed
}

// NewEntry creates a pending entry.
// PRE: actionType and payload are non-empty
// POST: Returns a pending entry with the default attempt limit
func NewEntry(id, actionType, payload string, now time.Time) (Entry, error) {
	e := Entry{
		ID:          id,
		ActionType:  actionType,
		Payload:     payload,
		Status:      StatusPending,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
	}
	return e, e.Validate()
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// CanRetry returns true if the entry can be attempted again.
// POST: Returns true for pending/retrying entries with attempts < max
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying) && e.Attempts < e.MaxAttempts
}

// IsTerminal returns true if the entry has reached a terminal state.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusDone || e.Status == StatusFailed || e.Status == StatusAbandoned
}

// IsDue reports whether the backoff delay since the last attempt has passed.
func (e *Entry) IsDue(now time.Time, baseDelay, maxDelay time.Duration) bool {
	if e.Attempts == 0 {
		return true
	}
	return !now.Before(e.LastAttemptedAt.Add(e.NextRetryDelay(baseDelay, maxDelay)))
}

// MarkAttempt records an attempt.
// PRE: CanRetry is true
// POST: Attempts incremented, LastAttemptedAt updated, status set to retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry as delivered.
// POST: Status set to done, ExternalID recorded
func (e *Entry) MarkSuccess(externalID string) {
	e.Status = StatusDone
	e.ExternalID = externalID
	e.ErrorMessage = ""
}

// MarkFailed records a failed attempt. The entry fails for good once attempts run out.
// POST: ErrorMessage set; Status is failed when attempts >= max
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// Requeue gives a failed entry a fresh set of attempts.
// PRE: Status is failed
// POST: Status is pending and Attempts is 0
func (e *Entry) Requeue() error {
	if e.Status != StatusFailed {
		return ErrNotRetryable
	}
	e.Status = StatusPending
	e.Attempts = 0
	return nil
}

// MarkAbandoned marks the entry as abandoned by an admin.
// PRE: Entry is not done
// POST: Status set to abandoned
func (e *Entry) MarkAbandoned() error {
	if e.Status == StatusDone || e.Status == StatusAbandoned {
		return ErrTerminal
	}
	e.Status = StatusAbandoned
	return nil
}

// NextRetryDelay calculates the delay before the next attempt.
// Uses exponential backoff: 2^(attempts-1) * baseDelay, capped at maxDelay.
func (e *Entry) NextRetryDelay(baseDelay, maxDelay time.Duration) time.Duration {
	if e.Attempts <= 0 {
		return 0
	}
	delay := baseDelay << (e.Attempts - 1)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}
