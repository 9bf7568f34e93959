package projections

import (
	"time"

	"github.com/samber/lo"

	"dojo/internal/domain/applicant"
	domainMember "dojo/internal/domain/member"
	"dojo/internal/domain/parq"
	"dojo/internal/domain/wizard"
)

// SummaryPerson is one person who will receive a membership.
type SummaryPerson struct {
	Name        string
	IDNumber    string
	DateOfBirth string
	Age         int
	Program     string
}

// WizardSummary is the read-only review shown before a registration is submitted.
type WizardSummary struct {
	Student      SummaryPerson
	Email        string
	Phone        string
	Minor        bool
	Parent       *applicant.Parent
	Children     []SummaryPerson
	Reactivating bool
	ExistingNo   string
	ParQFlagged  []int
	Questions    [parq.QuestionCount]string
	Training     *applicant.PreviousTraining
	Medical      *applicant.MedicalCondition
	Readiness    *applicant.PhysicalReadiness
	Documents    int
}

// QueryWizardSummary builds the review from a session.
// PRE: st has reached the summary step
func QueryWizardSummary(st *wizard.State, now time.Time) WizardSummary {
	s := WizardSummary{
		Minor:        st.Minor,
		Parent:       st.Parent,
		Reactivating: st.Reactivating(),
		Questions:    parq.Questions,
		Training:     st.Training,
		Medical:      st.Medical,
		Readiness:    st.Readiness,
		Documents:    len(st.DocumentIDs),
	}
	if st.Student != nil {
		s.Student = summaryPerson(st.Student.Person, now)
		s.Email = st.Student.Email
		s.Phone = st.Student.Phone
	}
	if st.Existing != nil {
		s.ExistingNo = st.Existing.MembershipNumber
	}
	if st.ParQ != nil {
		s.ParQFlagged = st.ParQ.Flagged()
	}
	s.Children = lo.Map(st.Children, func(c applicant.Child, _ int) SummaryPerson {
		return summaryPerson(c.Person, now)
	})
	return s
}

func summaryPerson(p applicant.Person, now time.Time) SummaryPerson {
	age := applicant.AgeOn(p.DateOfBirth, now)
	return SummaryPerson{
		Name:        p.FullName(),
		IDNumber:    p.IDNumber,
		DateOfBirth: p.DateOfBirth.Format("2006-01-02"),
		Age:         age,
		Program:     domainMember.ProgramForAge(age),
	}
}

// CompletionPerson pairs a name with the membership number issued for it.
type CompletionPerson struct {
	Name   string
	Number string
}

// CompletionView is shown after the registration is submitted.
type CompletionView struct {
	People       []CompletionPerson
	LoginEmail   string
	TempPassword string
	Reactivated  bool
	PaymentState string
}

// QueryCompletion pairs issued numbers with the names they were issued to.
// PRE: st.Issued()
func QueryCompletion(st *wizard.State) CompletionView {
	m := st.Membership
	names := []string{}
	if st.Student != nil {
		names = append(names, st.Student.FullName())
	}
	for _, c := range st.Children {
		names = append(names, c.FullName())
	}
	v := CompletionView{
		LoginEmail:   m.LoginEmail,
		TempPassword: m.TempPassword,
		Reactivated:  m.Reactivated,
	}
	for i, n := range m.Numbers {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		v.People = append(v.People, CompletionPerson{Name: name, Number: n})
	}
	if st.Payment != nil {
		v.PaymentState = st.Payment.Status
	}
	return v
}
