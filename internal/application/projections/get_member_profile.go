package projections

import (
	"context"
	"errors"

	"github.com/samber/lo"

	domainConsent "dojo/internal/domain/consent"
	domainDocument "dojo/internal/domain/document"
	domainMember "dojo/internal/domain/member"
	domainPayment "dojo/internal/domain/payment"
	domainRegistration "dojo/internal/domain/registration"
)

// GetMemberProfileDeps holds dependencies for GetMemberProfile.
type GetMemberProfileDeps struct {
	MemberStore       MemberStore
	RegistrationStore RegistrationStore
	ConsentStore      ConsentStore
	DocumentStore     DocumentStore
	PaymentStore      PaymentStore
}

// ConsentLine is the current state of one consent type.
type ConsentLine struct {
	Type    domainConsent.Type
	Granted bool
	Current bool // granted for the latest document version
	Version string
	When    string
}

// MemberProfileResult is everything the portals show about one member.
type MemberProfileResult struct {
	Member        domainMember.Member
	Guardian      *domainMember.Guardian
	Dependents    []domainMember.Member // other members registered by the same guardian
	Consents      []ConsentLine
	Documents     []domainDocument.Document
	Payments      []domainPayment.Payment
	Registrations []domainRegistration.Registration
	Roster        RosterRow
}

// QueryGetMemberProfile assembles the profile of one member.
// PRE: memberID names an existing member
// POST: consents list the newest record per type
func QueryGetMemberProfile(ctx context.Context, memberID string, deps GetMemberProfileDeps) (MemberProfileResult, error) {
	if memberID == "" {
		return MemberProfileResult{}, errors.New("member ID is required")
	}
	m, err := deps.MemberStore.GetByID(ctx, memberID)
	if err != nil {
		return MemberProfileResult{}, err
	}
	res := MemberProfileResult{
		Member: m,
		Roster: RosterRow{MemberID: m.ID, MembershipNumber: m.MembershipNumber, Name: m.Name(), Program: m.Program},
	}

	if m.GuardianID != "" {
		g, err := deps.MemberStore.GetGuardian(ctx, m.GuardianID)
		if err != nil {
			return MemberProfileResult{}, err
		}
		res.Guardian = &g
		family, err := deps.MemberStore.ListByGuardian(ctx, m.GuardianID)
		if err != nil {
			return MemberProfileResult{}, err
		}
		res.Dependents = lo.Reject(family, func(f domainMember.Member, _ int) bool { return f.ID == m.ID })
	}

	consents, err := deps.ConsentStore.GetByMemberID(ctx, m.ID)
	if err != nil {
		return MemberProfileResult{}, err
	}
	res.Consents = latestConsents(consents)

	if res.Documents, err = deps.DocumentStore.ListByMember(ctx, m.ID); err != nil {
		return MemberProfileResult{}, err
	}
	if res.Payments, err = deps.PaymentStore.ListByMember(ctx, m.ID); err != nil {
		return MemberProfileResult{}, err
	}
	if res.Registrations, err = deps.RegistrationStore.ListByMember(ctx, m.ID); err != nil {
		return MemberProfileResult{}, err
	}
	if len(res.Registrations) > 0 {
		applyHealth(&res.Roster, res.Registrations[0].ParQJSON, res.Registrations[0].MedicalJSON)
	}
	return res, nil
}

// latestConsents keeps the newest record of each type in a fixed order.
// PRE: consents are ordered newest first
func latestConsents(consents []domainConsent.Consent) []ConsentLine {
	newest := lo.UniqBy(consents, func(c domainConsent.Consent) domainConsent.Type { return c.Type })
	byType := lo.KeyBy(newest, func(c domainConsent.Consent) domainConsent.Type { return c.Type })

	var lines []ConsentLine
	for _, t := range []domainConsent.Type{domainConsent.TypeParQ, domainConsent.TypeIndemnity, domainConsent.TypePopia} {
		c, ok := byType[t]
		if !ok {
			lines = append(lines, ConsentLine{Type: t})
			continue
		}
		lines = append(lines, ConsentLine{
			Type:    t,
			Granted: c.IsValid(),
			Current: c.IsCurrent(),
			Version: c.Version,
			When:    c.GrantedAt.Format("2006-01-02"),
		})
	}
	return lines
}
