package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	accountStore "dojo/internal/adapters/storage/account"
	memberStore "dojo/internal/adapters/storage/member"
	"dojo/internal/domain/account"
	"dojo/internal/domain/applicant"
	"dojo/internal/domain/consent"
	"dojo/internal/domain/member"
	"dojo/internal/domain/membership"
	"dojo/internal/domain/notification"
	"dojo/internal/domain/registration"
	"dojo/internal/domain/wizard"
)

// numberAttempts bounds the retries when a drawn membership number is already taken.
const numberAttempts = 50

// MemberStoreForRegistration defines the store interface needed by CompleteRegistration.
type MemberStoreForRegistration interface {
	GetByID(ctx context.Context, id string) (member.Member, error)
	GetByIDNumber(ctx context.Context, idNumber string) (member.Member, error)
	NumberTaken(ctx context.Context, number string) (bool, error)
	Save(ctx context.Context, m member.Member) error
	SaveGuardian(ctx context.Context, g member.Guardian) error
}

// AccountStoreForRegistration defines the account store interface needed by CompleteRegistration.
type AccountStoreForRegistration interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// RegistrationStoreForComplete persists registration records.
type RegistrationStoreForComplete interface {
	Save(ctx context.Context, r registration.Registration) error
}

// ConsentStoreForComplete persists consent records.
type ConsentStoreForComplete interface {
	Save(ctx context.Context, c consent.Consent) error
}

// DocumentLinker attaches session uploads to members.
type DocumentLinker interface {
	LinkToMember(ctx context.Context, memberID string, ids []string) error
}

// EmailQueue accepts outgoing email for delivery.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, msg notification.Message) error
}

// CompleteRegistrationInput carries request details recorded with the consents.
type CompleteRegistrationInput struct {
	IPAddress string
	UserAgent string
}

// CompleteRegistrationDeps holds dependencies for CompleteRegistration.
type CompleteRegistrationDeps struct {
	MemberStore       MemberStoreForRegistration
	AccountStore      AccountStoreForRegistration
	RegistrationStore RegistrationStoreForComplete
	ConsentStore      ConsentStoreForComplete
	DocumentStore     DocumentLinker
	Emails            EmailQueue
	Numbers           *membership.Generator
	SchoolName        string
	LoginURL          string
	InstructorEmails  []string
	// Checkpoint persists the session once the submission is drafted, before any write.
	Checkpoint func(ctx context.Context, st *wizard.State) error
	Now        func() time.Time
	GenerateID func() string
}

// ErrLoginEmailInUse is returned when the login email belongs to a staff account.
var ErrLoginEmailInUse = errors.New("this email address is used by a staff account; please use another")

// registrationConsents are granted for every registered member, in RecordIDs order.
var registrationConsents = []consent.Type{consent.TypeParQ, consent.TypeIndemnity, consent.TypePopia}

// ExecuteCompleteRegistration submits the summary: it issues membership numbers and a
// temporary password, creates or reactivates the members with their guardian, account,
// registration, consents and documents, and queues the confirmation emails.
// Writes are not transactional across stores. Every ID, number and the temporary
// password are drawn into st.Submission and checkpointed first, and every write is an
// upsert by ID, so submitting again after a failure finishes the same registration.
// PRE: st passes Guard(StepSummary)
// POST: st.Membership is set; editing steps now redirect to completion
// INVARIANT: every issued number matches ZF\d{4} and is unique in the member store
func ExecuteCompleteRegistration(ctx context.Context, st *wizard.State, in CompleteRegistrationInput, deps CompleteRegistrationDeps) (wizard.Membership, error) {
	if st.Issued() {
		return *st.Membership, wizard.ErrLocked
	}
	if _, ok := st.Guard(wizard.StepSummary); !ok {
		return wizard.Membership{}, wizard.ErrStepUnavailable
	}
	if deps.Numbers == nil {
		deps.Numbers = membership.NewGenerator(nil)
	}
	now := clock(deps.Now)
	retry := st.Submission != nil

	loginEmail := st.Student.Email
	if st.Minor {
		loginEmail = st.Parent.Email
	}
	sub, err := draftSubmission(ctx, st, account.NormalizeEmail(loginEmail), deps)
	if err != nil {
		return wizard.Membership{}, err
	}
	st.Submission = sub
	if deps.Checkpoint != nil {
		if err := deps.Checkpoint(ctx, st); err != nil {
			return wizard.Membership{}, fmt.Errorf("save submission: %w", err)
		}
	}

	if st.Minor {
		g := member.Guardian{
			ID:           sub.GuardianID,
			FirstName:    st.Parent.FirstName,
			LastName:     st.Parent.LastName,
			IDType:       st.Parent.IDType,
			IDNumber:     st.Parent.IDNumber,
			Relationship: st.Parent.Relationship,
			Email:        st.Parent.Email,
			Phone:        st.Parent.Phone,
			Address:      st.Parent.Address,
			CreatedAt:    now,
		}
		if err := g.Validate(); err != nil {
			return wizard.Membership{}, invalid(err)
		}
		if err := deps.MemberStore.SaveGuardian(ctx, g); err != nil {
			return wizard.Membership{}, fmt.Errorf("save guardian: %w", err)
		}
	}

	primary, err := primaryMember(ctx, st, sub.Members[0], retry, deps, now)
	if err != nil {
		return wizard.Membership{}, err
	}
	primary.GuardianID = sub.GuardianID
	primary.AccountID = sub.AccountID
	if err := saveMember(ctx, deps.MemberStore, &primary); err != nil {
		return wizard.Membership{}, err
	}

	members := []member.Member{primary}
	for i, c := range st.Children {
		drawn := sub.Members[i+1]
		m := member.Member{
			ID:               drawn.MemberID,
			MembershipNumber: drawn.Number,
			FirstName:        c.FirstName,
			LastName:         c.LastName,
			IDType:           c.IDType,
			IDNumber:         c.IDNumber,
			DateOfBirth:      c.DateOfBirth,
			Email:            st.Parent.Email,
			Phone:            st.Parent.Phone,
			Address:          st.Parent.Address,
			Program:          member.ProgramKids,
			Status:           member.StatusActive,
			GuardianID:       sub.GuardianID,
			AccountID:        sub.AccountID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := saveMember(ctx, deps.MemberStore, &m); err != nil {
			return wizard.Membership{}, err
		}
		members = append(members, m)
	}

	if sub.NewAccount {
		acct := account.Account{
			ID:                     sub.AccountID,
			Email:                  sub.LoginEmail,
			Role:                   account.RoleStudent,
			MemberID:               primary.ID,
			CreatedAt:              now,
			PasswordChangeRequired: true,
		}
		if err := acct.SetPassword(sub.TempPassword); err != nil {
			return wizard.Membership{}, err
		}
		if err := deps.AccountStore.Save(ctx, acct); err != nil {
			return wizard.Membership{}, fmt.Errorf("save account: %w", err)
		}
		slog.Info("auth_event", "event", "account_created", "email", sub.LoginEmail, "role", account.RoleStudent)
	}

	if err := recordRegistrations(ctx, st, members, in, deps, now); err != nil {
		return wizard.Membership{}, err
	}
	if err := linkDocuments(ctx, st, members, deps.DocumentStore); err != nil {
		return wizard.Membership{}, err
	}

	issued := wizard.Membership{
		TempPassword: sub.TempPassword,
		LoginEmail:   sub.LoginEmail,
		Reactivated:  st.Reactivating(),
		IssuedAt:     now,
	}
	for _, m := range members {
		issued.MemberIDs = append(issued.MemberIDs, m.ID)
		issued.Numbers = append(issued.Numbers, m.MembershipNumber)
	}
	if err := st.Issue(issued); err != nil {
		return wizard.Membership{}, err
	}
	st.UpdatedAt = now

	queueRegistrationEmails(ctx, st, members, deps)

	slog.Info("registration_completed",
		"membership_number", primary.MembershipNumber,
		"members", len(members),
		"reactivation", issued.Reactivated,
		"retry", retry,
		"parq_flagged", st.ParQ.RequiresClearance())
	return issued, nil
}

// draftSubmission resolves the login account and draws every ID, number and the
// temporary password the submit needs, reusing whatever an earlier attempt drew.
// Only store lookups happen here; nothing is written.
func draftSubmission(ctx context.Context, st *wizard.State, loginEmail string, deps CompleteRegistrationDeps) (*wizard.Submission, error) {
	sub := &wizard.Submission{}
	if st.Submission != nil {
		prev := *st.Submission
		prev.Members = append([]wizard.SubmittedMember(nil), st.Submission.Members...)
		sub = &prev
	}

	if err := draftAccount(ctx, sub, loginEmail, deps); err != nil {
		return nil, err
	}
	if !st.Minor {
		sub.GuardianID = ""
	} else if sub.GuardianID == "" {
		sub.GuardianID = newID(deps.GenerateID)
	}

	want := 1 + len(st.Children)
	for len(sub.Members) < want {
		sub.Members = append(sub.Members, wizard.SubmittedMember{})
	}
	sub.Members = sub.Members[:want]

	for i := range sub.Members {
		drawn := &sub.Members[i]
		switch {
		case i == 0 && st.Reactivating():
			if !drawn.Existing || drawn.MemberID != st.Existing.MemberID {
				*drawn = wizard.SubmittedMember{MemberID: st.Existing.MemberID, Existing: true}
			}
		case drawn.MemberID == "" || drawn.Existing:
			number, err := issueNumber(ctx, deps, sub.Members)
			if err != nil {
				return nil, err
			}
			*drawn = wizard.SubmittedMember{MemberID: newID(deps.GenerateID), Number: number}
		default:
			// Drawn by an earlier attempt; draw again if another registration took the
			// number before this member was written.
			if err := recheckNumber(ctx, drawn, sub.Members, deps); err != nil {
				return nil, err
			}
		}
		for len(drawn.RecordIDs) < 1+len(registrationConsents) {
			drawn.RecordIDs = append(drawn.RecordIDs, newID(deps.GenerateID))
		}
	}
	return sub, nil
}

// draftAccount picks the login account: the student account already using the email,
// the new account an earlier attempt drew, or a fresh one with a temporary password.
// A guardian registering again reuses their account and keeps their password.
func draftAccount(ctx context.Context, sub *wizard.Submission, loginEmail string, deps CompleteRegistrationDeps) error {
	acct, err := deps.AccountStore.GetByEmail(ctx, loginEmail)
	switch {
	case errors.Is(err, accountStore.ErrNotFound):
		if !sub.NewAccount {
			password, err := deps.Numbers.TempPassword()
			if err != nil {
				return err
			}
			sub.AccountID = newID(deps.GenerateID)
			sub.NewAccount = true
			sub.TempPassword = password
		}
	case err != nil:
		return fmt.Errorf("look up login email: %w", err)
	case sub.NewAccount && acct.ID == sub.AccountID:
		// written by an earlier attempt
	case acct.Role != account.RoleStudent:
		return invalid(ErrLoginEmailInUse)
	default:
		sub.AccountID = acct.ID
		sub.NewAccount = false
		sub.TempPassword = ""
	}
	sub.LoginEmail = loginEmail
	return nil
}

// recheckNumber redraws a number an earlier attempt reserved but another member now holds.
func recheckNumber(ctx context.Context, drawn *wizard.SubmittedMember, all []wizard.SubmittedMember, deps CompleteRegistrationDeps) error {
	m, err := deps.MemberStore.GetByID(ctx, drawn.MemberID)
	if err == nil && m.MembershipNumber == drawn.Number {
		return nil
	}
	if err != nil && !errors.Is(err, memberStore.ErrNotFound) {
		return fmt.Errorf("load drafted member: %w", err)
	}
	taken, err := deps.MemberStore.NumberTaken(ctx, drawn.Number)
	if err != nil {
		return err
	}
	if !taken {
		return nil
	}
	number, err := issueNumber(ctx, deps, all)
	if err != nil {
		return err
	}
	drawn.Number = number
	return nil
}

// primaryMember reactivates the matched member or builds a new one for the student.
// On a retry the member written by the earlier attempt is taken over rather than
// treated as someone else's active membership.
func primaryMember(ctx context.Context, st *wizard.State, drawn wizard.SubmittedMember, retry bool, deps CompleteRegistrationDeps, now time.Time) (member.Member, error) {
	s := st.Student
	program := member.ProgramForAge(s.Age(now))

	if st.Reactivating() {
		m, err := deps.MemberStore.GetByID(ctx, st.Existing.MemberID)
		if err != nil {
			return member.Member{}, fmt.Errorf("load member for reactivation: %w", err)
		}
		if err := m.Reactivate(); err != nil {
			if !errors.Is(err, member.ErrAlreadyActive) {
				return member.Member{}, err
			}
			if !retry {
				return member.Member{}, invalid(member.ErrActiveMembership)
			}
		}
		applyStudent(&m, s)
		m.Program = program
		m.UpdatedAt = now
		return m, nil
	}

	m := member.Member{
		ID:               drawn.MemberID,
		MembershipNumber: drawn.Number,
		Program:          program,
		Status:           member.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	found, err := deps.MemberStore.GetByIDNumber(ctx, s.IDNumber)
	switch {
	case err == nil && found.ID == drawn.MemberID:
		m.CreatedAt = found.CreatedAt
	case err == nil:
		return member.Member{}, invalid(member.ErrActiveMembership)
	case !errors.Is(err, memberStore.ErrNotFound):
		return member.Member{}, fmt.Errorf("look up identity number: %w", err)
	}
	applyStudent(&m, s)
	return m, nil
}

func applyStudent(m *member.Member, s *applicant.Student) {
	m.FirstName = s.FirstName
	m.LastName = s.LastName
	m.IDType = s.IDType
	m.IDNumber = s.IDNumber
	m.DateOfBirth = s.DateOfBirth
	m.Email = s.Email
	m.Phone = s.Phone
	m.Address = s.Address
}

// issueNumber draws a number that no stored member holds and no other drafted member uses.
func issueNumber(ctx context.Context, deps CompleteRegistrationDeps, drafted []wizard.SubmittedMember) (string, error) {
	return deps.Numbers.UniqueNumber(numberAttempts, func(n string) (bool, error) {
		for _, d := range drafted {
			if d.Number == n {
				return true, nil
			}
		}
		return deps.MemberStore.NumberTaken(ctx, n)
	})
}

func saveMember(ctx context.Context, store MemberStoreForRegistration, m *member.Member) error {
	if err := m.Validate(); err != nil {
		return invalid(err)
	}
	if err := store.Save(ctx, *m); err != nil {
		return fmt.Errorf("save member %s: %w", m.MembershipNumber, err)
	}
	return nil
}

// recordRegistrations writes one registration and the consents per member, using the
// record IDs drawn into the submission.
func recordRegistrations(ctx context.Context, st *wizard.State, members []member.Member, in CompleteRegistrationInput, deps CompleteRegistrationDeps, now time.Time) error {
	parqJSON, err := json.Marshal(st.ParQ)
	if err != nil {
		return err
	}
	trainingJSON, err := json.Marshal(st.Training)
	if err != nil {
		return err
	}
	medicalJSON, err := json.Marshal(st.Medical)
	if err != nil {
		return err
	}
	readinessJSON, err := json.Marshal(st.Readiness)
	if err != nil {
		return err
	}

	for i, m := range members {
		ids := st.Submission.Members[i].RecordIDs
		kind := registration.KindNew
		if i == 0 && st.Reactivating() {
			kind = registration.KindReactivation
		}
		r := registration.Registration{
			ID:            ids[0],
			MemberID:      m.ID,
			GuardianID:    st.Submission.GuardianID,
			Kind:          kind,
			ParQJSON:      string(parqJSON),
			TrainingJSON:  string(trainingJSON),
			MedicalJSON:   string(medicalJSON),
			ReadinessJSON: string(readinessJSON),
			ParQFlagged:   st.ParQ.RequiresClearance(),
			SubmittedIP:   in.IPAddress,
			SubmittedAt:   now,
		}
		if err := r.Validate(); err != nil {
			return err
		}
		if err := deps.RegistrationStore.Save(ctx, r); err != nil {
			return fmt.Errorf("save registration: %w", err)
		}

		for j, t := range registrationConsents {
			c := consent.NewConsent(m.ID, t, consent.SourceRegistration, in.IPAddress, in.UserAgent, now)
			c.ID = ids[1+j]
			if err := deps.ConsentStore.Save(ctx, c); err != nil {
				return fmt.Errorf("save %s consent: %w", t, err)
			}
		}
	}
	return nil
}

// linkDocuments attaches child photos to their child and every other upload to the student.
func linkDocuments(ctx context.Context, st *wizard.State, members []member.Member, store DocumentLinker) error {
	owner := make(map[string]string, len(st.DocumentIDs))
	for i, c := range st.Children {
		if c.PhotoDocumentID != "" && i+1 < len(members) {
			owner[c.PhotoDocumentID] = members[i+1].ID
		}
	}
	byMember := map[string][]string{}
	for _, id := range st.DocumentIDs {
		memberID, ok := owner[id]
		if !ok {
			memberID = members[0].ID
		}
		byMember[memberID] = append(byMember[memberID], id)
	}
	for memberID, ids := range byMember {
		if err := store.LinkToMember(ctx, memberID, ids); err != nil {
			return fmt.Errorf("link documents: %w", err)
		}
	}
	return nil
}

// queueRegistrationEmails hands the confirmation and instructor emails to the outbox.
// The registration is already committed, so failures are logged rather than returned.
func queueRegistrationEmails(ctx context.Context, st *wizard.State, members []member.Member, deps CompleteRegistrationDeps) {
	if deps.Emails == nil {
		return
	}
	data := notification.RegistrationData{
		SchoolName:   deps.SchoolName,
		StudentName:  st.Student.FullName(),
		LoginEmail:   st.Membership.LoginEmail,
		Reactivation: st.Membership.Reactivated,
		ParQFlagged:  st.ParQ.Flagged(),
		HasMedical:   st.Medical != nil && st.Medical.HasCondition,
		LoginURL:     deps.LoginURL,
	}
	if st.Parent != nil {
		data.GuardianName = st.Parent.FullName()
	}
	for _, m := range members {
		data.Members = append(data.Members, notification.MemberLine{
			Name:             m.Name(),
			MembershipNumber: m.MembershipNumber,
			Program:          m.Program,
		})
	}

	msgs := make([]notification.Message, 0, 2)
	if msg, err := notification.RegistrationConfirmation(st.Membership.LoginEmail, data); err != nil {
		slog.Error("registration_email_failed", "template", notification.TemplateRegistrationConfirmation, "error", err)
	} else {
		msgs = append(msgs, msg)
	}
	if len(deps.InstructorEmails) > 0 {
		if msg, err := notification.InstructorNotification(deps.InstructorEmails, data); err != nil {
			slog.Error("registration_email_failed", "template", notification.TemplateInstructorNotification, "error", err)
		} else {
			msgs = append(msgs, msg)
		}
	}
	for _, msg := range msgs {
		if err := deps.Emails.EnqueueEmail(ctx, msg); err != nil {
			slog.Error("registration_email_failed", "template", msg.Template, "error", err)
		}
	}
}
