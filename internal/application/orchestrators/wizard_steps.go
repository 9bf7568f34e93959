package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	memberStore "dojo/internal/adapters/storage/member"
	"dojo/internal/domain/applicant"
	"dojo/internal/domain/document"
	"dojo/internal/domain/member"
	"dojo/internal/domain/parq"
	"dojo/internal/domain/wizard"
)

// Wizard step errors shown to the visitor.
var (
	ErrIDDocumentRequired       = errors.New("please upload a photo of your identity document")
	ErrParentIDRequired         = errors.New("please upload a photo of the front of the guardian's identity document")
	ErrReactivationNotConfirmed = errors.New("please confirm that you want to reactivate your membership")
	ErrChildAlreadyMember       = errors.New("this child is already a member; sign in to manage their membership")
)

// MemberStoreForWizard defines the store interface needed by the wizard steps.
type MemberStoreForWizard interface {
	GetByIDNumber(ctx context.Context, idNumber string) (member.Member, error)
}

// StepDeps holds dependencies shared by the wizard step orchestrators.
type StepDeps struct {
	MemberStore MemberStoreForWizard
	Uploads     UploadDeps
	Now         func() time.Time
}

// Each step writes only its own output into the state. The caller persists the
// state and redirects to st.Next(step) when the step returns nil.

// ParQInput carries the questionnaire answers.
type ParQInput struct {
	Answers  [parq.QuestionCount]bool
	Details  string
	Declared bool
	Letter   *UploadInput // clearance letter; may be nil
}

// pendingUpload stands in for a document that is validated before it is stored.
const pendingUpload = "pending"

// ExecuteSaveParQ completes the PAR-Q step.
// A letter uploaded earlier in the session is kept when no new one is sent.
// PRE: st is the visitor's session state
// POST: st.ParQ is completed, or an InputError explains what is missing
// INVARIANT: a yes to any of Q1-Q6 is never accepted without a clearance letter
func ExecuteSaveParQ(ctx context.Context, st *wizard.State, in ParQInput, deps StepDeps) error {
	now := clock(deps.Now)
	form := parq.Form{
		Answers:  in.Answers,
		Details:  strings.TrimSpace(in.Details),
		Declared: in.Declared,
	}
	if st.ParQ != nil {
		form.ClearanceDocumentID = st.ParQ.ClearanceDocumentID
	}
	if in.Letter != nil {
		form.ClearanceDocumentID = pendingUpload
	}
	if err := form.Validate(); err != nil {
		return invalid(err)
	}

	if in.Letter != nil {
		in.Letter.Kind = document.KindClearanceLetter
		doc, err := ExecuteUploadDocument(ctx, *in.Letter, deps.Uploads)
		if err != nil {
			return err
		}
		form.ClearanceDocumentID = doc.ID
		st.AddDocument(doc.ID)
	}
	if err := form.Complete(now); err != nil {
		return invalid(err)
	}

	st.SetParQ(form)
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", wizard.StepParQ, "flagged", form.Flagged())
	return nil
}

// StudentInput carries the registration page.
type StudentInput struct {
	Student applicant.Student
	Photo   *UploadInput
}

// ExecuteSaveStudent records the student, runs the age gate and looks the identity
// number up among existing members.
// PRE: st has a completed PAR-Q
// POST: st.Student is set; st.Minor reflects the age on the day of submission;
// st.Existing is set when an inactive or archived member owns the identity number
func ExecuteSaveStudent(ctx context.Context, st *wizard.State, in StudentInput, deps StepDeps) error {
	now := clock(deps.Now)
	s := in.Student
	s.Normalize()
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	if st.Student != nil && st.Student.IDNumber == s.IDNumber {
		s.PhotoDocumentID = st.Student.PhotoDocumentID
	}
	if err := s.Validate(now); err != nil {
		return invalid(err)
	}

	existing, err := findExistingMember(ctx, deps.MemberStore, s.IDNumber)
	if err != nil {
		return err
	}

	if in.Photo != nil {
		in.Photo.Kind = document.KindStudentPhoto
		doc, err := ExecuteUploadDocument(ctx, *in.Photo, deps.Uploads)
		if err != nil {
			return err
		}
		s.PhotoDocumentID = doc.ID
		st.AddDocument(doc.ID)
	}

	minor := s.IsMinor(now)
	st.SetStudent(s, minor, existing)
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", wizard.StepRegistration, "minor", minor, "reactivation", existing != nil)
	return nil
}

// findExistingMember returns the inactive or archived member owning idNumber.
// An active owner is an InputError; no owner returns nil.
func findExistingMember(ctx context.Context, store MemberStoreForWizard, idNumber string) (*wizard.ExistingMember, error) {
	m, err := store.GetByIDNumber(ctx, idNumber)
	if errors.Is(err, memberStore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up identity number: %w", err)
	}
	if m.IsActive() {
		return nil, invalid(member.ErrActiveMembership)
	}
	return &wizard.ExistingMember{
		MemberID:         m.ID,
		MembershipNumber: m.MembershipNumber,
		Status:           m.Status,
	}, nil
}

// ParentInput carries the guardian page.
type ParentInput struct {
	Parent  applicant.Parent
	IDFront *UploadInput
	IDBack  *UploadInput
}

// ExecuteSaveParent records a minor's guardian.
// PRE: st.Minor is true
// POST: st.Parent is set with at least the front of the guardian's ID on file
func ExecuteSaveParent(ctx context.Context, st *wizard.State, in ParentInput, deps StepDeps) error {
	if !st.Minor {
		return wizard.ErrStepUnavailable
	}
	now := clock(deps.Now)
	p := in.Parent
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if st.Parent != nil {
		p.IDFrontDocumentID = st.Parent.IDFrontDocumentID
		p.IDBackDocumentID = st.Parent.IDBackDocumentID
	}
	if err := p.Validate(now); err != nil {
		return invalid(err)
	}
	if in.IDFront == nil && p.IDFrontDocumentID == "" {
		return invalid(ErrParentIDRequired)
	}

	uploads := []struct {
		in   *UploadInput
		kind document.Kind
		dst  *string
	}{
		{in.IDFront, document.KindParentIDFront, &p.IDFrontDocumentID},
		{in.IDBack, document.KindParentIDBack, &p.IDBackDocumentID},
	}
	for _, u := range uploads {
		if u.in == nil {
			continue
		}
		u.in.Kind = u.kind
		doc, err := ExecuteUploadDocument(ctx, *u.in, deps.Uploads)
		if err != nil {
			return err
		}
		*u.dst = doc.ID
		st.AddDocument(doc.ID)
	}

	st.SetParent(p)
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", wizard.StepParentDetails, "relationship", p.Relationship)
	return nil
}

// ChildInput is one additional child with an optional photo.
type ChildInput struct {
	Child applicant.Child
	Photo *UploadInput
}

// ExecuteSaveChildren records the guardian's additional children. An empty list is valid.
// PRE: st.Minor is true and st.Parent is set
// POST: st.ChildrenDone is true
func ExecuteSaveChildren(ctx context.Context, st *wizard.State, in []ChildInput, deps StepDeps) error {
	if !st.Minor || st.Student == nil {
		return wizard.ErrStepUnavailable
	}
	now := clock(deps.Now)

	previous := make(map[string]string, len(st.Children))
	for _, c := range st.Children {
		previous[c.IDNumber] = c.PhotoDocumentID
	}

	children := make([]applicant.Child, len(in))
	for i := range in {
		children[i] = in[i].Child
	}
	if err := applicant.ValidateChildren(children, st.Student.IDNumber, now); err != nil {
		return invalid(err)
	}
	for i := range children {
		if _, err := deps.MemberStore.GetByIDNumber(ctx, children[i].IDNumber); err == nil {
			return invalid(fmt.Errorf("child %d: %w", i+1, ErrChildAlreadyMember))
		} else if !errors.Is(err, memberStore.ErrNotFound) {
			return fmt.Errorf("look up child identity number: %w", err)
		}
		children[i].PhotoDocumentID = previous[children[i].IDNumber]
	}

	for i := range in {
		if in[i].Photo == nil {
			continue
		}
		in[i].Photo.Kind = document.KindChildPhoto
		doc, err := ExecuteUploadDocument(ctx, *in[i].Photo, deps.Uploads)
		if err != nil {
			return err
		}
		children[i].PhotoDocumentID = doc.ID
		st.AddDocument(doc.ID)
	}

	st.SetChildren(children)
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", wizard.StepAddChildren, "children", len(children))
	return nil
}

// ExecuteSaveTraining records previous training.
func ExecuteSaveTraining(st *wizard.State, t applicant.PreviousTraining, now time.Time) error {
	if err := t.Validate(); err != nil {
		return invalid(err)
	}
	st.SetTraining(t)
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", wizard.StepPreviousTraining)
	return nil
}

// ExecuteSaveMedical records the medical condition form.
func ExecuteSaveMedical(st *wizard.State, m applicant.MedicalCondition, now time.Time) error {
	if err := m.Validate(); err != nil {
		return invalid(err)
	}
	st.SetMedical(m)
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", wizard.StepMedicalCondition, "has_condition", m.HasCondition)
	return nil
}

// ExecuteSaveReadiness records physical readiness.
func ExecuteSaveReadiness(st *wizard.State, r applicant.PhysicalReadiness, now time.Time) error {
	if err := r.Validate(); err != nil {
		return invalid(err)
	}
	st.SetReadiness(r)
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", wizard.StepPhysicalReadiness)
	return nil
}

// ExecuteConfirmReactivation records the visitor's choice to reactivate the matched membership.
// PRE: st.Existing is set
func ExecuteConfirmReactivation(st *wizard.State, confirmed bool, now time.Time) error {
	if !st.Reactivating() {
		return wizard.ErrStepUnavailable
	}
	if !confirmed {
		return invalid(ErrReactivationNotConfirmed)
	}
	st.ConfirmReactivation()
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", wizard.StepMembershipReactivation, "membership_number", st.Existing.MembershipNumber)
	return nil
}

// ExecuteUploadID stores the new student's identity document.
// A document uploaded earlier in the session satisfies the step when file is nil.
// PRE: st is not reactivating
func ExecuteUploadID(ctx context.Context, st *wizard.State, file *UploadInput, deps StepDeps) error {
	if st.Reactivating() {
		return wizard.ErrStepUnavailable
	}
	now := clock(deps.Now)
	if file == nil {
		if st.IDDocumentID == "" {
			return invalid(ErrIDDocumentRequired)
		}
		st.UpdatedAt = now
		return nil
	}
	file.Kind = document.KindStudentID
	doc, err := ExecuteUploadDocument(ctx, *file, deps.Uploads)
	if err != nil {
		return err
	}
	st.SetIDDocument(doc.ID)
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", wizard.StepUploadID)
	return nil
}

// ExecuteDecideConsent stores the accept or reject choice of the indemnity or POPIA page.
// Only the flag is kept, so a visitor who rejected may come back and accept.
// PRE: step is StepIndemnity or StepPopia
func ExecuteDecideConsent(st *wizard.State, step wizard.Step, accept bool, now time.Time) error {
	switch step {
	case wizard.StepIndemnity:
		st.DecideIndemnity(accept)
	case wizard.StepPopia:
		st.DecidePopia(accept)
	default:
		return fmt.Errorf("%s is not a consent step", step)
	}
	st.UpdatedAt = now
	slog.Info("wizard_step_saved", "step", step, "accepted", accept)
	return nil
}
