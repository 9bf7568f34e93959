package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"dojo/internal/domain/account"
	"dojo/internal/domain/applicant"
	"dojo/internal/domain/consent"
	"dojo/internal/domain/member"
	"dojo/internal/domain/membership"
	"dojo/internal/domain/notification"
	"dojo/internal/domain/parq"
	"dojo/internal/domain/registration"
	"dojo/internal/domain/wizard"
)

type recordingQueue struct {
	msgs []notification.Message
}

func (q *recordingQueue) EnqueueEmail(_ context.Context, msg notification.Message) error {
	q.msgs = append(q.msgs, msg)
	return nil
}

type registrationFixture struct {
	members  *mockMemberStore
	accounts *mockAccountStore
	regs     *mockRegistrationStore
	consents *mockConsentStore
	docs     *mockDocumentStore
	emails   *recordingQueue
	deps     CompleteRegistrationDeps
}

func newRegistrationFixture(existing ...member.Member) *registrationFixture {
	f := &registrationFixture{
		members:  newMockMemberStore(existing...),
		accounts: newMockAccountStore(),
		regs:     &mockRegistrationStore{},
		consents: &mockConsentStore{},
		docs:     newMockDocumentStore(),
		emails:   &recordingQueue{},
	}
	f.deps = CompleteRegistrationDeps{
		MemberStore:       f.members,
		AccountStore:      f.accounts,
		RegistrationStore: f.regs,
		ConsentStore:      f.consents,
		DocumentStore:     f.docs,
		Emails:            f.emails,
		Numbers:           membership.NewGenerator(nil),
		SchoolName:        "Zanshin Dojo",
		LoginURL:          "https://dojo.test/login",
		InstructorEmails:  []string{"sensei@dojo.test"},
		Now:               func() time.Time { return wizardNow },
		GenerateID:        sequence("id"),
	}
	return f
}

// readyState returns a session that has passed every step up to the summary.
func readyState(t *testing.T, dob time.Time) *wizard.State {
	st := wizard.New("tok", wizardNow)
	st.SetParQ(parq.Form{Answers: [parq.QuestionCount]bool{false, false, false, false, false, false, true}, Details: "asthma", Declared: true, Completed: true})
	s := testStudent(t, dob)
	s.Email = "thandi@example.com"
	st.SetStudent(s, s.IsMinor(wizardNow), nil)
	st.SetTraining(applicant.PreviousTraining{})
	st.SetMedical(applicant.MedicalCondition{HasCondition: true, Conditions: "asthma", EmergencyContactName: "Lerato", EmergencyContactPhone: "0829876543"})
	st.SetReadiness(applicant.PhysicalReadiness{FitnessLevel: applicant.FitnessModerate, Confirmed: true})
	st.DecideIndemnity(true)
	st.DecidePopia(true)
	return st
}

func (f *registrationFixture) addDocument(st *wizard.State, id string) {
	f.docs.docs[id] = docWithID(id)
	st.AddDocument(id)
}

var numberRE = regexp.MustCompile(`^ZF\d{4}$`)

// TestCompleteRegistration_Adult verifies a new adult gets a member, account, consents and emails.
func TestCompleteRegistration_Adult(t *testing.T) {
	f := newRegistrationFixture()
	st := readyState(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))
	f.addDocument(st, "doc-id")
	st.SetIDDocument("doc-id")

	issued, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{IPAddress: "10.0.0.1", UserAgent: "test"}, f.deps)
	if err != nil {
		t.Fatalf("ExecuteCompleteRegistration: %v", err)
	}

	if len(issued.Numbers) != 1 || !numberRE.MatchString(issued.Numbers[0]) {
		t.Fatalf("numbers = %v", issued.Numbers)
	}
	if len(issued.TempPassword) != membership.TempPasswordLength {
		t.Errorf("temp password length = %d", len(issued.TempPassword))
	}
	if !st.Issued() {
		t.Error("state should be issued")
	}
	if step, ok := st.Guard(wizard.StepRegistration); ok || step != wizard.StepCompletion {
		t.Errorf("Guard(registration) after issue = %s, %v", step, ok)
	}

	m := f.members.members[issued.MemberIDs[0]]
	if m.Status != member.StatusActive || m.Program != member.ProgramAdults || m.GuardianID != "" {
		t.Errorf("member = %+v", m)
	}

	acct, err := f.accounts.GetByEmail(context.Background(), "thandi@example.com")
	if err != nil {
		t.Fatalf("account not created: %v", err)
	}
	if acct.Role != account.RoleStudent || !acct.PasswordChangeRequired || acct.MemberID != m.ID || m.AccountID != acct.ID {
		t.Errorf("account = %+v, member account = %s", acct, m.AccountID)
	}
	if err := acct.CheckPassword(issued.TempPassword); err != nil {
		t.Error("temporary password should log in")
	}

	if len(f.regs.saved) != 1 || f.regs.saved[0].Kind != registration.KindNew || f.regs.saved[0].ParQFlagged {
		t.Errorf("registrations = %+v", f.regs.saved)
	}
	types := map[consent.Type]bool{}
	for _, c := range f.consents.saved {
		types[c.Type] = c.IsCurrent() && c.MemberID == m.ID && c.IPAddress == "10.0.0.1"
	}
	for _, want := range []consent.Type{consent.TypeParQ, consent.TypeIndemnity, consent.TypePopia} {
		if !types[want] {
			t.Errorf("missing current %s consent", want)
		}
	}
	if f.docs.docs["doc-id"].MemberID != m.ID {
		t.Error("ID document not linked to member")
	}

	if len(f.emails.msgs) != 2 {
		t.Fatalf("emails = %d, want 2", len(f.emails.msgs))
	}
	if f.emails.msgs[0].To[0] != "thandi@example.com" || !strings.Contains(f.emails.msgs[0].HTML, issued.Numbers[0]) {
		t.Errorf("confirmation = %+v", f.emails.msgs[0])
	}
	if strings.Contains(f.emails.msgs[0].HTML, issued.TempPassword) {
		t.Error("temporary password must not be emailed")
	}
	if !strings.Contains(f.emails.msgs[1].Subject, "health notes") {
		t.Errorf("instructor subject = %q", f.emails.msgs[1].Subject)
	}

	// A second submit is refused and changes nothing.
	if _, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps); !errors.Is(err, wizard.ErrLocked) {
		t.Errorf("second submit error = %v, want ErrLocked", err)
	}
	if len(f.members.members) != 1 {
		t.Errorf("members = %d after resubmit", len(f.members.members))
	}
}

// TestCompleteRegistration_MinorWithChildren verifies guardian, children and the parent's login.
func TestCompleteRegistration_MinorWithChildren(t *testing.T) {
	f := newRegistrationFixture()
	st := readyState(t, time.Date(2014, 7, 20, 0, 0, 0, 0, time.UTC))
	p := testParent()
	p.Email = "lerato@example.com"
	st.SetParent(p)
	childDOB := time.Date(2016, 5, 5, 0, 0, 0, 0, time.UTC)
	st.SetChildren([]applicant.Child{{
		Person:          applicant.Person{FirstName: "Sipho", LastName: "Mokoena", IDType: applicant.IDTypeSAID, IDNumber: saID(t, childDOB), DateOfBirth: childDOB},
		PhotoDocumentID: "doc-child",
	}})
	f.addDocument(st, "doc-child")
	f.addDocument(st, "doc-id")
	st.SetIDDocument("doc-id")

	issued, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps)
	if err != nil {
		t.Fatalf("ExecuteCompleteRegistration: %v", err)
	}
	if len(issued.Numbers) != 2 || issued.Numbers[0] == issued.Numbers[1] {
		t.Fatalf("numbers = %v, want two distinct", issued.Numbers)
	}
	for _, n := range issued.Numbers {
		if !numberRE.MatchString(n) {
			t.Errorf("number %q", n)
		}
	}
	if issued.LoginEmail != "lerato@example.com" {
		t.Errorf("login email = %s, want the guardian's", issued.LoginEmail)
	}
	if len(f.members.guardians) != 1 {
		t.Fatalf("guardians = %d", len(f.members.guardians))
	}
	student := f.members.members[issued.MemberIDs[0]]
	child := f.members.members[issued.MemberIDs[1]]
	if student.Program != member.ProgramKids || child.Program != member.ProgramKids {
		t.Errorf("programs = %s, %s", student.Program, child.Program)
	}
	if student.GuardianID == "" || child.GuardianID != student.GuardianID || child.AccountID != student.AccountID {
		t.Errorf("student = %+v, child = %+v", student, child)
	}
	if f.docs.docs["doc-child"].MemberID != child.ID || f.docs.docs["doc-id"].MemberID != student.ID {
		t.Error("documents linked to the wrong members")
	}
	if len(f.regs.saved) != 2 || len(f.consents.saved) != 6 {
		t.Errorf("registrations = %d, consents = %d", len(f.regs.saved), len(f.consents.saved))
	}
	if !strings.Contains(f.emails.msgs[0].HTML, "Hi Lerato Mokoena") {
		t.Errorf("confirmation should greet the guardian: %s", f.emails.msgs[0].HTML)
	}
}

// TestCompleteRegistration_Reactivation verifies the old number is kept and no new account is made.
func TestCompleteRegistration_Reactivation(t *testing.T) {
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	old := member.Member{
		ID: "m-old", MembershipNumber: "ZF0042", FirstName: "Thandi", LastName: "Dlamini",
		IDType: applicant.IDTypeSAID, IDNumber: saID(t, dob), DateOfBirth: dob,
		Program: member.ProgramAdults, Status: member.StatusArchived, AccountID: "acct-old",
	}
	f := newRegistrationFixture(old)
	f.accounts.byID["acct-old"] = account.Account{ID: "acct-old", Email: "thandi@example.com", Role: account.RoleStudent, MemberID: "m-old"}

	st := readyState(t, dob)
	st.SetStudent(*st.Student, false, &wizard.ExistingMember{MemberID: "m-old", MembershipNumber: "ZF0042", Status: member.StatusArchived})
	st.ConfirmReactivation()

	issued, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps)
	if err != nil {
		t.Fatalf("ExecuteCompleteRegistration: %v", err)
	}
	if issued.Numbers[0] != "ZF0042" || !issued.Reactivated || issued.TempPassword != "" {
		t.Errorf("issued = %+v", issued)
	}
	m := f.members.members["m-old"]
	if m.Status != member.StatusActive || m.LastName != "Mokoena" {
		t.Errorf("member = %+v", m)
	}
	if len(f.accounts.byID) != 1 {
		t.Errorf("accounts = %d, want the existing one reused", len(f.accounts.byID))
	}
	if f.regs.saved[0].Kind != registration.KindReactivation {
		t.Errorf("kind = %s", f.regs.saved[0].Kind)
	}
}

// TestCompleteRegistration_Refusals covers submissions that must not write anything.
func TestCompleteRegistration_Refusals(t *testing.T) {
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("incomplete session", func(t *testing.T) {
		f := newRegistrationFixture()
		st := readyState(t, dob)
		st.PopiaAccepted = nil
		if _, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps); !errors.Is(err, wizard.ErrStepUnavailable) {
			t.Fatalf("error = %v", err)
		}
	})

	t.Run("staff email", func(t *testing.T) {
		f := newRegistrationFixture()
		f.accounts.byID["a1"] = account.Account{ID: "a1", Email: "thandi@example.com", Role: account.RoleInstructor}
		st := readyState(t, dob)
		st.SetIDDocument("doc-id")
		_, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps)
		if !errors.Is(err, ErrLoginEmailInUse) || !IsInputError(err) {
			t.Fatalf("error = %v, want ErrLoginEmailInUse", err)
		}
		if len(f.members.members) != 0 {
			t.Error("no member should be written")
		}
	})

	t.Run("became active meanwhile", func(t *testing.T) {
		st := readyState(t, dob)
		f := newRegistrationFixture(member.Member{ID: "m1", IDNumber: st.Student.IDNumber, Status: member.StatusActive})
		st.SetIDDocument("doc-id")
		if _, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps); !errors.Is(err, member.ErrActiveMembership) {
			t.Fatalf("error = %v", err)
		}
		if st.Issued() {
			t.Error("state must stay unissued")
		}
	})
}

// TestCompleteRegistration_RetryAfterStoreFailure verifies a submit that fails part way
// can be submitted again from the checkpointed session and finishes the same registration.
func TestCompleteRegistration_RetryAfterStoreFailure(t *testing.T) {
	tests := []struct {
		name        string
		dob         time.Time
		withChild   bool
		wantMembers int
	}{
		{"adult", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), false, 1},
		{"minor with sibling", time.Date(2014, 7, 20, 0, 0, 0, 0, time.UTC), true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistrationFixture()
			var checkpoint []byte
			f.deps.Checkpoint = func(_ context.Context, st *wizard.State) error {
				var err error
				checkpoint, err = json.Marshal(st)
				return err
			}

			st := readyState(t, tt.dob)
			if st.Minor {
				p := testParent()
				p.Email = "lerato@example.com"
				st.SetParent(p)
			}
			if tt.withChild {
				childDOB := time.Date(2016, 5, 5, 0, 0, 0, 0, time.UTC)
				st.SetChildren([]applicant.Child{{Person: applicant.Person{FirstName: "Sipho", LastName: "Mokoena", IDType: applicant.IDTypeSAID, IDNumber: saID(t, childDOB), DateOfBirth: childDOB}}})
			}
			f.addDocument(st, "doc-id")
			st.SetIDDocument("doc-id")

			f.consents.failNext = errors.New("disk I/O error")
			if _, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps); err == nil || IsInputError(err) {
				t.Fatalf("first submit error = %v, want a store failure", err)
			}
			if st.Issued() {
				t.Fatal("failed submit must not issue")
			}

			var reloaded wizard.State
			if err := json.Unmarshal(checkpoint, &reloaded); err != nil {
				t.Fatalf("checkpoint: %v", err)
			}
			drafted := reloaded.Submission
			if drafted == nil || drafted.TempPassword == "" || len(drafted.Members) != tt.wantMembers {
				t.Fatalf("checkpointed submission = %+v", drafted)
			}

			issued, err := ExecuteCompleteRegistration(context.Background(), &reloaded, CompleteRegistrationInput{}, f.deps)
			if err != nil {
				t.Fatalf("retry: %v", err)
			}
			if issued.Numbers[0] != drafted.Members[0].Number || issued.TempPassword != drafted.TempPassword {
				t.Errorf("retry issued %+v, want the drafted number and password", issued)
			}
			if reloaded.Submission != nil {
				t.Error("submission draft should be dropped once issued")
			}

			acct, err := f.accounts.GetByEmail(context.Background(), issued.LoginEmail)
			if err != nil {
				t.Fatalf("account: %v", err)
			}
			if err := acct.CheckPassword(issued.TempPassword); err != nil {
				t.Error("the temporary password shown after the retry should log in")
			}
			if len(f.accounts.byID) != 1 || len(f.members.members) != tt.wantMembers {
				t.Errorf("accounts = %d, members = %d", len(f.accounts.byID), len(f.members.members))
			}
			if st.Minor && len(f.members.guardians) != 1 {
				t.Errorf("guardians = %d, want 1", len(f.members.guardians))
			}
			if len(f.regs.saved) != tt.wantMembers || len(f.consents.saved) != 3*tt.wantMembers {
				t.Errorf("registrations = %d, consents = %d", len(f.regs.saved), len(f.consents.saved))
			}
		})
	}
}

// TestCompleteRegistration_RetryTakesOverReactivation verifies a reactivation whose member
// was already switched to active by the failed attempt still completes.
func TestCompleteRegistration_RetryTakesOverReactivation(t *testing.T) {
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	old := member.Member{
		ID: "m-old", MembershipNumber: "ZF0042", FirstName: "Thandi", LastName: "Dlamini",
		IDType: applicant.IDTypeSAID, IDNumber: saID(t, dob), DateOfBirth: dob,
		Program: member.ProgramAdults, Status: member.StatusInactive,
	}
	f := newRegistrationFixture(old)
	st := readyState(t, dob)
	st.SetStudent(*st.Student, false, &wizard.ExistingMember{MemberID: "m-old", MembershipNumber: "ZF0042", Status: member.StatusInactive})
	st.ConfirmReactivation()

	f.consents.failNext = errors.New("disk I/O error")
	if _, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps); err == nil {
		t.Fatal("first submit should fail")
	}
	if m := f.members.members["m-old"]; !m.IsActive() {
		t.Fatalf("member status after failed attempt = %s, want active", m.Status)
	}

	issued, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if issued.Numbers[0] != "ZF0042" || !issued.Reactivated {
		t.Errorf("issued = %+v", issued)
	}
}

// TestCompleteRegistration_CheckpointFailure verifies nothing is written when the draft
// cannot be saved.
func TestCompleteRegistration_CheckpointFailure(t *testing.T) {
	f := newRegistrationFixture()
	f.deps.Checkpoint = func(context.Context, *wizard.State) error { return errors.New("redis down") }
	st := readyState(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))
	st.SetIDDocument("doc-id")

	if _, err := ExecuteCompleteRegistration(context.Background(), st, CompleteRegistrationInput{}, f.deps); err == nil {
		t.Fatal("expected checkpoint error")
	}
	if len(f.members.members) != 0 || len(f.accounts.byID) != 0 {
		t.Errorf("members = %d, accounts = %d; want nothing written", len(f.members.members), len(f.accounts.byID))
	}
}
