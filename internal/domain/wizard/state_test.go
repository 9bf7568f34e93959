package wizard_test

import (
	"testing"
	"time"

	"dojo/internal/domain/applicant"
	"dojo/internal/domain/parq"
	"dojo/internal/domain/wizard"
)

var now = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)

// adultThroughReadiness returns an adult's state completed up to the identity step.
func adultThroughReadiness() *wizard.State {
	s := wizard.New("tok", now)
	s.SetParQ(parq.Form{Declared: true, Completed: true, CompletedAt: now})
	s.SetStudent(applicant.Student{Person: applicant.Person{FirstName: "A", IDNumber: "1"}}, false, nil)
	s.SetTraining(applicant.PreviousTraining{})
	s.SetMedical(applicant.MedicalCondition{})
	s.SetReadiness(applicant.PhysicalReadiness{Confirmed: true})
	return s
}

// TestGuardEmptySession tests that every gated page redirects an empty session.
func TestGuardEmptySession(t *testing.T) {
	tests := []struct {
		step wizard.Step
		want wizard.Step
	}{
		{wizard.StepRegistration, wizard.StepParQ},
		{wizard.StepParentDetails, wizard.StepParQ},
		{wizard.StepAddChildren, wizard.StepParQ},
		{wizard.StepPreviousTraining, wizard.StepParQ},
		{wizard.StepMedicalCondition, wizard.StepParQ},
		{wizard.StepPhysicalReadiness, wizard.StepParQ},
		{wizard.StepMembershipReactivation, wizard.StepParQ},
		{wizard.StepUploadID, wizard.StepParQ},
		{wizard.StepIndemnity, wizard.StepParQ},
		{wizard.StepIndemnityRejected, wizard.StepParQ},
		{wizard.StepPopia, wizard.StepParQ},
		{wizard.StepPopiaRejected, wizard.StepParQ},
		{wizard.StepSummary, wizard.StepParQ},
		{wizard.StepCompletion, wizard.StepParQ},
		{wizard.StepPaymentSuccess, wizard.StepIndex},
		{wizard.StepPaymentCancelled, wizard.StepIndex},
	}
	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			for _, s := range []*wizard.State{nil, wizard.New("tok", now)} {
				got, ok := s.Guard(tt.step)
				if ok || got != tt.want {
					t.Errorf("Guard(%s) = %s, %v; want %s, false", tt.step, got, ok, tt.want)
				}
			}
		})
	}

	for _, step := range []wizard.Step{wizard.StepIndex, wizard.StepParQ} {
		if _, ok := wizard.New("tok", now).Guard(step); !ok {
			t.Errorf("Guard(%s) should always allow", step)
		}
	}
}

// TestGuardSummaryWithoutStudent tests the summary redirect when student details are missing.
func TestGuardSummaryWithoutStudent(t *testing.T) {
	s := wizard.New("tok", now)
	if got, _ := s.Guard(wizard.StepSummary); got.Path() != "/par-form" {
		t.Errorf("Guard(summary) redirect = %s, want /par-form", got.Path())
	}

	s.SetParQ(parq.Form{Declared: true, Completed: true})
	if got, _ := s.Guard(wizard.StepSummary); got != wizard.StepRegistration {
		t.Errorf("after PAR-Q, Guard(summary) redirect = %s, want registration", got)
	}
}

// TestAdultFlow walks an adult through every step.
func TestAdultFlow(t *testing.T) {
	s := adultThroughReadiness()

	if got, _ := s.Guard(wizard.StepParentDetails); got != wizard.StepPreviousTraining {
		t.Errorf("adult at parent details redirected to %s", got)
	}
	if got := s.Next(wizard.StepPhysicalReadiness); got != wizard.StepUploadID {
		t.Errorf("Next(readiness) = %s, want upload_id", got)
	}
	if got, _ := s.Guard(wizard.StepMembershipReactivation); got != wizard.StepUploadID {
		t.Errorf("reactivation without match redirected to %s", got)
	}
	if got, _ := s.Guard(wizard.StepIndemnity); got != wizard.StepUploadID {
		t.Errorf("indemnity before upload redirected to %s", got)
	}

	s.SetIDDocument("doc-1")
	if _, ok := s.Guard(wizard.StepIndemnity); !ok {
		t.Fatal("indemnity should be reachable after upload")
	}
	if got, _ := s.Guard(wizard.StepPopia); got != wizard.StepIndemnity {
		t.Errorf("popia before indemnity redirected to %s", got)
	}

	s.DecideIndemnity(true)
	s.DecidePopia(true)
	if _, ok := s.Guard(wizard.StepSummary); !ok {
		t.Fatal("summary should be reachable")
	}
	if got, _ := s.Guard(wizard.StepCompletion); got != wizard.StepSummary {
		t.Errorf("completion before submit redirected to %s", got)
	}

	if err := s.Issue(wizard.Membership{Numbers: []string{"ZF0001"}}); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := s.Issue(wizard.Membership{}); err != wizard.ErrLocked {
		t.Errorf("second Issue() error = %v, want ErrLocked", err)
	}
	if _, ok := s.Guard(wizard.StepCompletion); !ok {
		t.Error("completion should be reachable after submit")
	}
	if _, ok := s.Guard(wizard.StepPaymentSuccess); !ok {
		t.Error("payment return should be reachable after submit")
	}
	for _, step := range []wizard.Step{wizard.StepParQ, wizard.StepRegistration, wizard.StepSummary, wizard.StepPopia} {
		if got, _ := s.Guard(step); got != wizard.StepCompletion {
			t.Errorf("after submit Guard(%s) = %s, want completion", step, got)
		}
	}
}

// TestMinorBranch tests the guardian pages for a minor and their removal on change to adult.
func TestMinorBranch(t *testing.T) {
	s := wizard.New("tok", now)
	s.SetParQ(parq.Form{Declared: true, Completed: true})
	s.SetStudent(applicant.Student{Person: applicant.Person{IDNumber: "1"}}, true, nil)

	if got := s.Next(wizard.StepRegistration); got != wizard.StepParentDetails {
		t.Errorf("Next(registration) for minor = %s", got)
	}
	if got, _ := s.Guard(wizard.StepPreviousTraining); got != wizard.StepParentDetails {
		t.Errorf("minor skipping guardian redirected to %s", got)
	}
	if got, _ := s.Guard(wizard.StepAddChildren); got != wizard.StepParentDetails {
		t.Errorf("children before guardian redirected to %s", got)
	}

	s.SetParent(applicant.Parent{FirstName: "P"})
	if got, _ := s.Guard(wizard.StepPreviousTraining); got != wizard.StepAddChildren {
		t.Errorf("training before children redirected to %s", got)
	}
	s.SetChildren(nil)
	if _, ok := s.Guard(wizard.StepPreviousTraining); !ok {
		t.Error("training should be reachable once children page is submitted")
	}

	s.SetStudent(applicant.Student{Person: applicant.Person{IDNumber: "1"}}, false, nil)
	if s.Parent != nil || s.ChildrenDone {
		t.Error("guardian records should be dropped for an adult")
	}
}

// TestReactivationBranch tests the existing membership branch.
func TestReactivationBranch(t *testing.T) {
	s := adultThroughReadiness()
	existing := &wizard.ExistingMember{MemberID: "m1", MembershipNumber: "ZF1234", Status: "inactive"}
	s.SetStudent(*s.Student, false, existing)

	if got := s.Next(wizard.StepPhysicalReadiness); got != wizard.StepMembershipReactivation {
		t.Errorf("Next(readiness) = %s, want reactivation", got)
	}
	if got, _ := s.Guard(wizard.StepUploadID); got != wizard.StepMembershipReactivation {
		t.Errorf("upload with match redirected to %s", got)
	}
	s.ConfirmReactivation()
	if _, ok := s.Guard(wizard.StepIndemnity); !ok {
		t.Error("indemnity should be reachable after reactivation")
	}

	// A different identity resets the identity step.
	s.SetStudent(applicant.Student{Person: applicant.Person{IDNumber: "2"}}, false, nil)
	if got, _ := s.Guard(wizard.StepIndemnity); got != wizard.StepUploadID {
		t.Errorf("after identity change redirected to %s", got)
	}
}

// TestConsentRouting tests the accept and reject routes of both consent pages.
func TestConsentRouting(t *testing.T) {
	s := adultThroughReadiness()
	s.SetIDDocument("doc")

	if got, _ := s.Guard(wizard.StepIndemnityRejected); got != wizard.StepIndemnity {
		t.Errorf("rejected page before decision redirected to %s", got)
	}

	s.DecideIndemnity(false)
	if got := s.Next(wizard.StepIndemnity); got.Path() != "/indemnity-rejected" {
		t.Errorf("reject indemnity routes to %s", got.Path())
	}
	if _, ok := s.Guard(wizard.StepIndemnityRejected); !ok {
		t.Error("rejection page should be reachable after rejecting")
	}
	if got, _ := s.Guard(wizard.StepPopia); got != wizard.StepIndemnity {
		t.Errorf("popia after rejection redirected to %s", got)
	}

	s.DecideIndemnity(true)
	if got := s.Next(wizard.StepIndemnity); got.Path() != "/popia" {
		t.Errorf("accept indemnity routes to %s", got.Path())
	}

	s.DecidePopia(false)
	if got := s.Next(wizard.StepPopia); got.Path() != "/popia-rejected" {
		t.Errorf("reject popia routes to %s", got.Path())
	}
	s.DecidePopia(true)
	if got := s.Next(wizard.StepPopia); got.Path() != "/summary" {
		t.Errorf("accept popia routes to %s", got.Path())
	}
}

// TestStepPaths tests that every step has a unique route.
func TestStepPaths(t *testing.T) {
	seen := map[string]bool{}
	for _, step := range wizard.Steps() {
		p := step.Path()
		if seen[p] {
			t.Errorf("duplicate path %s", p)
		}
		seen[p] = true
		if back, ok := wizard.StepForPath(p); !ok || back != step {
			t.Errorf("StepForPath(%s) = %s, %v", p, back, ok)
		}
	}
}
