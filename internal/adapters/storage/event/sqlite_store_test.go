package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	eventStore "dojo/internal/adapters/storage/event"
	"dojo/internal/adapters/storage/storagetest"
	domain "dojo/internal/domain/event"
)

func TestSQLiteStore_List(t *testing.T) {
	ctx := context.Background()
	store := eventStore.NewSQLiteStore(storagetest.Open(t))
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	events := []domain.Event{
		{ID: "past", Title: "Old grading", StartDate: now.AddDate(0, 0, -30), Public: true},
		{ID: "camp", Title: "Winter camp", StartDate: now.AddDate(0, 0, -1), EndDate: now.AddDate(0, 0, 1), Public: true, FeeCents: 45000},
		{ID: "staff", Title: "Instructor meeting", StartDate: now.AddDate(0, 0, 3)},
		{ID: "open", Title: "Open day", StartDate: now.AddDate(0, 0, 7), Public: true, Location: "Main hall"},
	}
	for _, e := range events {
		e.CreatedBy = "admin"
		e.CreatedAt = now
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save(%s) error = %v", e.ID, err)
		}
	}

	tests := []struct {
		name       string
		publicOnly bool
		want       []string
	}{
		{"portal sees everything upcoming", false, []string{"camp", "staff", "open"}},
		{"public site sees public only", true, []string{"camp", "open"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, now, tt.publicOnly)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() = %d events, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSQLiteStore_SaveUpdateDelete(t *testing.T) {
	ctx := context.Background()
	store := eventStore.NewSQLiteStore(storagetest.Open(t))
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	e := domain.Event{ID: "e1", Title: "Seminar", StartDate: now, CreatedBy: "admin", CreatedAt: now}
	if err := store.Save(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Public = true
	e.FeeCents = 20000
	e.CreatedBy = "someone-else"
	if err := store.Save(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetByID(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Public || got.FeeCents != 20000 || got.CreatedBy != "admin" {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.EndDate.IsZero() || !got.StartDate.Equal(now) {
		t.Errorf("dates = %v - %v", got.StartDate, got.EndDate)
	}

	if err := store.Delete(ctx, "e1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetByID(ctx, "e1"); !errors.Is(err, eventStore.ErrNotFound) {
		t.Errorf("GetByID() after delete = %v", err)
	}
}
