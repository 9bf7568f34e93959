package parq

import (
	"errors"
	"strings"
	"time"
)

// QuestionCount is the number of yes/no questions on the form.
const QuestionCount = 7

// healthQuestionCount is how many leading questions trigger a clearance letter.
const healthQuestionCount = 6

// MaxDetailsLength caps the free-text explanation for the final question.
const MaxDetailsLength = 1000

// Questions holds the wording shown for each answer, in order.
var Questions = [QuestionCount]string{
	"Has your doctor ever said that you have a heart condition and that you should only do physical activity recommended by a doctor?",
	"Do you feel pain in your chest when you do physical activity?",
	"In the past month, have you had chest pain when you were not doing physical activity?",
	"Do you lose your balance because of dizziness or do you ever lose consciousness?",
	"Do you have a bone or joint problem that could be made worse by a change in your physical activity?",
	"Is your doctor currently prescribing drugs for your blood pressure or heart condition?",
	"Do you know of any other reason why you should not do physical activity?",
}

// Domain errors
var (
	ErrClearanceLetterRequired = errors.New("a medical clearance letter is required when any health question is answered yes")
	ErrDetailsRequired         = errors.New("please explain the other reason you should not do physical activity")
	ErrDetailsTooLong          = errors.New("explanation cannot exceed 1000 characters")
	ErrNotDeclared             = errors.New("you must declare that your answers are true")
)

// Form holds the PAR-Q answers for one applicant.
type Form struct {
	Answers [QuestionCount]bool `json:"answers"`
	// Details explains a "yes" to the final question.
	Details string `json:"details,omitempty"`
	// ClearanceDocumentID references an uploaded clearance letter, if any.
	ClearanceDocumentID string    `json:"clearance_document_id,omitempty"`
	Declared            bool      `json:"declared"`
	Completed           bool      `json:"completed"`
	CompletedAt         time.Time `json:"completed_at"`
}

// RequiresClearance reports whether any health question was answered yes.
// INVARIANT: Form fields are not mutated
func (f *Form) RequiresClearance() bool {
	for i := 0; i < healthQuestionCount; i++ {
		if f.Answers[i] {
			return true
		}
	}
	return false
}

// HasClearance reports whether a clearance letter is attached.
func (f *Form) HasClearance() bool {
	return f.ClearanceDocumentID != ""
}

// Flagged returns the 1-based numbers of questions answered yes.
func (f *Form) Flagged() []int {
	var flagged []int
	for i, yes := range f.Answers {
		if yes {
			flagged = append(flagged, i+1)
		}
	}
	return flagged
}

// Validate checks the conditional rules of the questionnaire.
// PRE: Form is populated from user input
// POST: Returns nil if the form may be submitted
// INVARIANT: a yes to Q1-Q6 needs a clearance letter; a yes to Q7 needs details
func (f *Form) Validate() error {
	if !f.Declared {
		return ErrNotDeclared
	}
	if f.RequiresClearance() && !f.HasClearance() {
		return ErrClearanceLetterRequired
	}
	if f.Answers[QuestionCount-1] && strings.TrimSpace(f.Details) == "" {
		return ErrDetailsRequired
	}
	if len(f.Details) > MaxDetailsLength {
		return ErrDetailsTooLong
	}
	return nil
}

// Complete validates the form and marks it completed.
// PRE: now is the submission time
// POST: Completed is true on success
func (f *Form) Complete(now time.Time) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.Completed = true
	f.CompletedAt = now
	return nil
}
