package wizard

import (
	"errors"
	"time"

	"dojo/internal/domain/applicant"
	"dojo/internal/domain/parq"
)

// Domain errors
var (
	ErrLocked          = errors.New("registration has already been submitted")
	ErrStepUnavailable = errors.New("this step is not available yet")
)

// ExistingMember identifies a previous membership matched by identity number.
type ExistingMember struct {
	MemberID         string `json:"member_id"`
	MembershipNumber string `json:"membership_number"`
	Status           string `json:"status"`
}

// Membership holds the artifacts issued when the registration is submitted.
// Numbers[0] belongs to the registering student; children follow in order.
type Membership struct {
	MemberIDs    []string  `json:"member_ids"`
	Numbers      []string  `json:"numbers"`
	TempPassword string    `json:"temp_password,omitempty"`
	LoginEmail   string    `json:"login_email"`
	Reactivated  bool      `json:"reactivated"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Submission holds what a summary submit drew before its first write. A retry after
// a partial failure reuses it, so rows already written are rewritten in place.
type Submission struct {
	LoginEmail   string            `json:"login_email"`
	AccountID    string            `json:"account_id"`
	NewAccount   bool              `json:"new_account"`
	TempPassword string            `json:"temp_password,omitempty"`
	GuardianID   string            `json:"guardian_id,omitempty"`
	Members      []SubmittedMember `json:"members"`
}

// SubmittedMember is one member a submit writes. Members[0] is the student.
type SubmittedMember struct {
	MemberID string `json:"member_id"`
	Number   string `json:"number,omitempty"`
	// Existing is set when MemberID is a reactivated membership rather than a new one.
	Existing bool `json:"existing,omitempty"`
	// RecordIDs are the registration ID followed by one ID per consent.
	RecordIDs []string `json:"record_ids"`
}

// PaymentRef points at the payment started from the completion page.
type PaymentRef struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// State is one visitor's in-progress registration. It is the single source of
// truth for which wizard pages are reachable.
type State struct {
	Token string `json:"token"`

	ParQ     *parq.Form         `json:"parq,omitempty"`
	Student  *applicant.Student `json:"student,omitempty"`
	Minor    bool               `json:"minor"`
	Parent   *applicant.Parent  `json:"parent,omitempty"`
	Children []applicant.Child  `json:"children,omitempty"`
	// ChildrenDone is set once the AddChildren page is submitted, even with no children.
	ChildrenDone bool `json:"children_done"`

	Training  *applicant.PreviousTraining  `json:"training,omitempty"`
	Medical   *applicant.MedicalCondition  `json:"medical,omitempty"`
	Readiness *applicant.PhysicalReadiness `json:"readiness,omitempty"`

	Existing              *ExistingMember `json:"existing,omitempty"`
	ReactivationConfirmed bool            `json:"reactivation_confirmed"`
	IDDocumentID          string          `json:"id_document_id,omitempty"`
	// DocumentIDs lists every upload made during this session, linked to members on submit.
	DocumentIDs []string `json:"document_ids,omitempty"`

	IndemnityAccepted *bool `json:"indemnity_accepted,omitempty"`
	PopiaAccepted     *bool `json:"popia_accepted,omitempty"`

	Submission *Submission `json:"submission,omitempty"`
	Membership *Membership `json:"membership,omitempty"`
	Payment    *PaymentRef `json:"payment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty state for the given token.
func New(token string, now time.Time) *State {
	return &State{Token: token, CreatedAt: now, UpdatedAt: now}
}

// ParQAccepted reports whether the PAR-Q has been completed.
func (s *State) ParQAccepted() bool {
	return s.ParQ != nil && s.ParQ.Completed
}

// Issued reports whether the registration has been submitted.
func (s *State) Issued() bool {
	return s.Membership != nil
}

// Reactivating reports whether the identity step is a reactivation.
func (s *State) Reactivating() bool {
	return s.Existing != nil
}

// requirement is one prerequisite in guard order.
type requirement struct {
	met  func(*State) bool
	page func(*State) Step
}

func fixed(step Step) func(*State) Step {
	return func(*State) Step { return step }
}

// requirements are checked in order; the first unmet one decides the redirect.
var requirements = []requirement{
	{met: (*State).ParQAccepted, page: fixed(StepParQ)},
	{met: func(s *State) bool { return s.Student != nil }, page: fixed(StepRegistration)},
	{met: func(s *State) bool { return !s.Minor || s.Parent != nil }, page: fixed(StepParentDetails)},
	{met: func(s *State) bool { return !s.Minor || s.ChildrenDone }, page: fixed(StepAddChildren)},
	{met: func(s *State) bool { return s.Training != nil }, page: fixed(StepPreviousTraining)},
	{met: func(s *State) bool { return s.Medical != nil }, page: fixed(StepMedicalCondition)},
	{met: func(s *State) bool { return s.Readiness != nil }, page: fixed(StepPhysicalReadiness)},
	{met: (*State).identityDone, page: (*State).identityStep},
	{met: func(s *State) bool { return accepted(s.IndemnityAccepted) }, page: fixed(StepIndemnity)},
	{met: func(s *State) bool { return accepted(s.PopiaAccepted) }, page: fixed(StepPopia)},
	{met: (*State).Issued, page: fixed(StepSummary)},
}

// prerequisites is how many leading requirements each step needs.
var prerequisites = map[Step]int{
	StepIndex:                  0,
	StepParQ:                   0,
	StepRegistration:           1,
	StepParentDetails:          2,
	StepAddChildren:            3,
	StepPreviousTraining:       4,
	StepMedicalCondition:       5,
	StepPhysicalReadiness:      6,
	StepMembershipReactivation: 7,
	StepUploadID:               7,
	StepIndemnity:              8,
	StepIndemnityRejected:      8,
	StepPopia:                  9,
	StepPopiaRejected:          9,
	StepSummary:                10,
	StepCompletion:             11,
}

func accepted(b *bool) bool { return b != nil && *b }
func rejected(b *bool) bool { return b != nil && !*b }

func (s *State) identityDone() bool {
	if s.Reactivating() {
		return s.ReactivationConfirmed
	}
	return s.IDDocumentID != ""
}

func (s *State) identityStep() Step {
	if s.Reactivating() {
		return StepMembershipReactivation
	}
	return StepUploadID
}

// Guard decides whether a step may be shown for this state.
// PRE: s may be nil, which is treated as an empty session
// POST: Returns ("", true) when the step is reachable, otherwise the step to redirect to
// INVARIANT: State is not mutated
func (s *State) Guard(step Step) (Step, bool) {
	if s == nil {
		s = &State{}
	}
	if s.Issued() && step.editable() {
		return StepCompletion, false
	}
	switch step {
	case StepPaymentSuccess, StepPaymentCancelled:
		if !s.Issued() {
			return StepIndex, false
		}
		return "", true
	}

	n, ok := prerequisites[step]
	if !ok {
		return StepIndex, false
	}
	for _, req := range requirements[:n] {
		if !req.met(s) {
			return req.page(s), false
		}
	}

	switch step {
	case StepParentDetails, StepAddChildren:
		if !s.Minor {
			return StepPreviousTraining, false
		}
	case StepMembershipReactivation, StepUploadID:
		if want := s.identityStep(); want != step {
			return want, false
		}
	case StepIndemnityRejected:
		if !rejected(s.IndemnityAccepted) {
			return StepIndemnity, false
		}
	case StepPopiaRejected:
		if !rejected(s.PopiaAccepted) {
			return StepPopia, false
		}
	}
	return "", true
}

// Next returns the step that follows a successful submission of step.
// PRE: The step's output has already been written to s
func (s *State) Next(step Step) Step {
	switch step {
	case StepIndex:
		return StepParQ
	case StepParQ:
		return StepRegistration
	case StepRegistration:
		if s.Minor {
			return StepParentDetails
		}
		return StepPreviousTraining
	case StepParentDetails:
		return StepAddChildren
	case StepAddChildren:
		return StepPreviousTraining
	case StepPreviousTraining:
		return StepMedicalCondition
	case StepMedicalCondition:
		return StepPhysicalReadiness
	case StepPhysicalReadiness:
		return s.identityStep()
	case StepMembershipReactivation, StepUploadID:
		return StepIndemnity
	case StepIndemnity:
		if accepted(s.IndemnityAccepted) {
			return StepPopia
		}
		return StepIndemnityRejected
	case StepPopia:
		if accepted(s.PopiaAccepted) {
			return StepSummary
		}
		return StepPopiaRejected
	case StepSummary:
		return StepCompletion
	default:
		return StepCompletion
	}
}

// SetParQ records the completed questionnaire.
func (s *State) SetParQ(form parq.Form) {
	s.ParQ = &form
}

// SetStudent records the student's details and the age gate result.
// A student who is no longer a minor drops guardian and children records.
// Changing identity clears the identity step so it is redone for the new match.
func (s *State) SetStudent(student applicant.Student, minor bool, existing *ExistingMember) {
	if s.Student == nil || s.Student.IDNumber != student.IDNumber || !sameExisting(s.Existing, existing) {
		s.ReactivationConfirmed = false
		s.IDDocumentID = ""
	}
	s.Student = &student
	s.Minor = minor
	s.Existing = existing
	if !minor {
		s.Parent = nil
		s.Children = nil
		s.ChildrenDone = false
	}
}

func sameExisting(a, b *ExistingMember) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.MemberID == b.MemberID
}

// SetParent records the guardian.
func (s *State) SetParent(p applicant.Parent) {
	s.Parent = &p
}

// SetChildren records the additional children and marks the page done.
func (s *State) SetChildren(children []applicant.Child) {
	s.Children = children
	s.ChildrenDone = true
}

// SetTraining records previous training.
func (s *State) SetTraining(t applicant.PreviousTraining) {
	s.Training = &t
}

// SetMedical records the medical condition form.
func (s *State) SetMedical(m applicant.MedicalCondition) {
	s.Medical = &m
}

// SetReadiness records physical readiness.
func (s *State) SetReadiness(r applicant.PhysicalReadiness) {
	s.Readiness = &r
}

// ConfirmReactivation records the visitor's request to reactivate the matched membership.
func (s *State) ConfirmReactivation() {
	s.ReactivationConfirmed = true
}

// SetIDDocument records the uploaded identity document.
func (s *State) SetIDDocument(documentID string) {
	s.IDDocumentID = documentID
	s.AddDocument(documentID)
}

// AddDocument remembers an upload so it can be linked on submit.
func (s *State) AddDocument(documentID string) {
	for _, id := range s.DocumentIDs {
		if id == documentID {
			return
		}
	}
	s.DocumentIDs = append(s.DocumentIDs, documentID)
}

// DecideIndemnity stores the indemnity choice.
func (s *State) DecideIndemnity(accept bool) {
	s.IndemnityAccepted = &accept
}

// DecidePopia stores the POPIA choice.
func (s *State) DecidePopia(accept bool) {
	s.PopiaAccepted = &accept
}

// Issue freezes the registration with its membership artifacts.
// PRE: Guard(StepSummary) allows the summary
// POST: Editing steps redirect to completion; the submission draft is dropped
func (s *State) Issue(m Membership) error {
	if s.Issued() {
		return ErrLocked
	}
	s.Membership = &m
	s.Submission = nil
	return nil
}

// SetPayment records the payment started from the completion page.
func (s *State) SetPayment(id, status string) {
	s.Payment = &PaymentRef{ID: id, Status: status}
}
