package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"dojo/internal/domain/event"
)

// EventStoreForSave defines the store interface needed by the event orchestrators.
type EventStoreForSave interface {
	Save(ctx context.Context, e event.Event) error
	GetByID(ctx context.Context, id string) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

// SaveEventInput carries the admin event form. An empty ID creates a new event.
type SaveEventInput struct {
	ID          string
	Title       string
	Description string
	Location    string
	StartDate   time.Time
	EndDate     time.Time
	Public      bool
	FeeCents    int64
	CreatedBy   string
}

// EventDeps holds dependencies for the event orchestrators.
type EventDeps struct {
	EventStore EventStoreForSave
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteSaveEvent creates or updates an event.
// PRE: CreatedBy is the acting admin's account ID
// POST: the event is stored; an existing event keeps its creator
func ExecuteSaveEvent(ctx context.Context, in SaveEventInput, deps EventDeps) (event.Event, error) {
	e := event.Event{
		ID:          in.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Public:      in.Public,
		FeeCents:    in.FeeCents,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   clock(deps.Now),
	}
	if e.ID != "" {
		existing, err := deps.EventStore.GetByID(ctx, e.ID)
		if err != nil {
			return event.Event{}, err
		}
		e.CreatedBy = existing.CreatedBy
		e.CreatedAt = existing.CreatedAt
	} else {
		e.ID = newID(deps.GenerateID)
	}
	if err := e.Validate(); err != nil {
		return event.Event{}, invalid(err)
	}
	if err := deps.EventStore.Save(ctx, e); err != nil {
		return event.Event{}, err
	}
	slog.Info("event_saved", "event_id", e.ID, "public", e.Public)
	return e, nil
}

// ExecuteDeleteEvent removes an event.
func ExecuteDeleteEvent(ctx context.Context, id string, deps EventDeps) error {
	if id == "" {
		return errors.New("event ID is required")
	}
	if err := deps.EventStore.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("event_deleted", "event_id", id)
	return nil
}
