package registration

import (
	"errors"
	"time"
)

// Kind constants
const (
	KindNew          = "new"
	KindReactivation = "reactivation"
)

// Registration is one submitted run of the registration wizard.
// The questionnaire and health records are kept as the JSON submitted.
type Registration struct {
	ID            string
	MemberID      string
	GuardianID    string
	Kind          string
	ParQJSON      string
	TrainingJSON  string
	MedicalJSON   string
	ReadinessJSON string
	ParQFlagged   bool // at least one health question answered yes
	SubmittedIP   string
	SubmittedAt   time.Time
}

// Validate checks the registration record.
// PRE: Registration struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Registration) Validate() error {
	if r.MemberID == "" {
		return errors.New("registration member is required")
	}
	if r.Kind != KindNew && r.Kind != KindReactivation {
		return errors.New("registration kind must be 'new' or 'reactivation'")
	}
	if r.ParQJSON == "" {
		return errors.New("registration must include the PAR-Q")
	}
	if r.SubmittedAt.IsZero() {
		return errors.New("submitted_at must be set")
	}
	return nil
}
