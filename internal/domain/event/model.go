package event

import (
	"errors"
	"time"
)

// Max length constants.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 4000
	MaxLocationLength    = 200
)

// Domain errors
var (
	ErrEmptyTitle     = errors.New("event title cannot be empty")
	ErrNoStartDate    = errors.New("event start date is required")
	ErrEndBeforeStart = errors.New("event end date cannot be before start date")
)

// Event is a school event such as a grading, seminar or closure.
// Public events are listed on the public site; the rest only in the portals.
// INVARIANT: EndDate >= StartDate when EndDate is set.
type Event struct {
	ID          string
	Title       string
	Description string // markdown
	Location    string
	StartDate   time.Time
	EndDate     time.Time // zero value means single-day event
	Public      bool
	FeeCents    int64 // 0 when free
	CreatedBy   string
	CreatedAt   time.Time
}

// Validate checks the event's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrEmptyTitle
	}
	if len(e.Title) > MaxTitleLength {
		return errors.New("event title cannot exceed 200 characters")
	}
	if e.StartDate.IsZero() {
		return ErrNoStartDate
	}
	if !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate) {
		return ErrEndBeforeStart
	}
	if len(e.Description) > MaxDescriptionLength {
		return errors.New("event description cannot exceed 4000 characters")
	}
	if len(e.Location) > MaxLocationLength {
		return errors.New("event location cannot exceed 200 characters")
	}
	if e.FeeCents < 0 {
		return errors.New("event fee cannot be negative")
	}
	return nil
}

// IsMultiDay returns true if the event spans more than one day.
// PRE: none
// POST: returns true if EndDate is set and on a different calendar day than StartDate
func (e *Event) IsMultiDay() bool {
	if e.EndDate.IsZero() {
		return false
	}
	return e.EndDate.After(e.StartDate) &&
		e.EndDate.Format("2006-01-02") != e.StartDate.Format("2006-01-02")
}

// IsPast reports whether the event has finished before now.
func (e *Event) IsPast(now time.Time) bool {
	end := e.EndDate
	if end.IsZero() {
		end = e.StartDate
	}
	return end.AddDate(0, 0, 1).Before(now)
}
