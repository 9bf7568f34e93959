package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"dojo/internal/domain/event"
)

func TestSaveAndDeleteEvent(t *testing.T) {
	store := &mockEventStore{events: map[string]event.Event{}}
	created := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	deps := EventDeps{EventStore: store, Now: func() time.Time { return created }, GenerateID: sequence("ev")}
	ctx := context.Background()
	start := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)

	e, err := ExecuteSaveEvent(ctx, SaveEventInput{Title: "  Summer grading ", StartDate: start, Public: true, CreatedBy: "admin-1"}, deps)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID != "ev-1" || e.Title != "Summer grading" {
		t.Errorf("event = %+v", e)
	}

	deps.Now = func() time.Time { return created.Add(24 * time.Hour) }
	updated, err := ExecuteSaveEvent(ctx, SaveEventInput{ID: e.ID, Title: "Summer grading", StartDate: start, FeeCents: 15000, CreatedBy: "admin-2"}, deps)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CreatedBy != "admin-1" || !updated.CreatedAt.Equal(created) || updated.Public {
		t.Errorf("updated = %+v", updated)
	}

	_, err = ExecuteSaveEvent(ctx, SaveEventInput{Title: "Camp", StartDate: start, EndDate: start.AddDate(0, 0, -1)}, deps)
	if !errors.Is(err, event.ErrEndBeforeStart) || !IsInputError(err) {
		t.Errorf("end before start = %v", err)
	}

	if err := ExecuteDeleteEvent(ctx, e.ID, deps); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.events) != 0 {
		t.Errorf("events = %d", len(store.events))
	}
}
