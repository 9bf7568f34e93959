package parq_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"dojo/internal/domain/parq"
)

func answers(yes ...int) [parq.QuestionCount]bool {
	var a [parq.QuestionCount]bool
	for _, q := range yes {
		a[q-1] = true
	}
	return a
}

// TestFormValidate tests the conditional clearance-letter rule.
func TestFormValidate(t *testing.T) {
	tests := []struct {
		name    string
		form    parq.Form
		wantErr error
	}{
		{
			name: "all no without letter",
			form: parq.Form{Declared: true},
		},
		{
			name:    "health yes without letter",
			form:    parq.Form{Answers: answers(3), Declared: true},
			wantErr: parq.ErrClearanceLetterRequired,
		},
		{
			name:    "every health question triggers",
			form:    parq.Form{Answers: answers(6), Declared: true},
			wantErr: parq.ErrClearanceLetterRequired,
		},
		{
			name: "health yes with letter",
			form: parq.Form{Answers: answers(1, 5), ClearanceDocumentID: "doc-1", Declared: true},
		},
		{
			name:    "other reason without details",
			form:    parq.Form{Answers: answers(7), Declared: true},
			wantErr: parq.ErrDetailsRequired,
		},
		{
			name: "other reason with details needs no letter",
			form: parq.Form{Answers: answers(7), Details: "recovering from flu", Declared: true},
		},
		{
			name:    "details too long",
			form:    parq.Form{Answers: answers(7), Details: strings.Repeat("x", parq.MaxDetailsLength+1), Declared: true},
			wantErr: parq.ErrDetailsTooLong,
		},
		{
			name:    "not declared",
			form:    parq.Form{},
			wantErr: parq.ErrNotDeclared,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestFormComplete tests that completion only happens on a valid form.
func TestFormComplete(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	f := parq.Form{Answers: answers(2), Declared: true}
	if err := f.Complete(now); err == nil {
		t.Fatal("Complete() should fail without clearance letter")
	}
	if f.Completed {
		t.Error("form must not be marked completed after a failed validation")
	}

	f.ClearanceDocumentID = "letter"
	if err := f.Complete(now); err != nil {
		t.Fatalf("Complete() unexpected error: %v", err)
	}
	if !f.Completed || !f.CompletedAt.Equal(now) {
		t.Errorf("Completed = %v, CompletedAt = %v", f.Completed, f.CompletedAt)
	}
}

// TestFormFlagged tests the list of flagged question numbers.
func TestFormFlagged(t *testing.T) {
	f := parq.Form{Answers: answers(2, 7)}
	got := f.Flagged()
	if len(got) != 2 || got[0] != 2 || got[1] != 7 {
		t.Errorf("Flagged() = %v, want [2 7]", got)
	}
	if !f.RequiresClearance() {
		t.Error("RequiresClearance() = false, want true")
	}
}
