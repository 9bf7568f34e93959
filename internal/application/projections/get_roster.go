package projections

import (
	"context"
	"encoding/json"

	"github.com/samber/lo"

	"dojo/internal/adapters/storage/member"
	"dojo/internal/domain/applicant"
	domainMember "dojo/internal/domain/member"
	"dojo/internal/domain/parq"
)

// RosterRow is one active member with the health flags instructors check before class.
type RosterRow struct {
	MemberID         string
	MembershipNumber string
	Name             string
	Program          string
	ParQFlagged      []int
	HasClearance     bool
	Medical          string // conditions as declared, empty when none
	Allergies        string
	EmergencyContact string
}

// Flagged reports whether the instructor should look at this member's health notes.
func (r RosterRow) Flagged() bool {
	return len(r.ParQFlagged) > 0 || r.Medical != ""
}

// GetRosterDeps holds dependencies for GetRoster.
type GetRosterDeps struct {
	MemberStore       MemberStore
	RegistrationStore RegistrationStore
}

// GetRosterResult carries the roster split by program.
type GetRosterResult struct {
	Adults       []RosterRow
	Kids         []RosterRow
	FlaggedCount int
}

// QueryGetRoster lists active members with the health answers of their latest registration.
// PRE: none
// POST: rows are ordered by name within each program
func QueryGetRoster(ctx context.Context, deps GetRosterDeps) (GetRosterResult, error) {
	members, err := deps.MemberStore.List(ctx, member.ListFilter{Status: domainMember.StatusActive, Sort: "name"})
	if err != nil {
		return GetRosterResult{}, err
	}

	rows := make([]RosterRow, 0, len(members))
	for _, m := range members {
		row := RosterRow{
			MemberID:         m.ID,
			MembershipNumber: m.MembershipNumber,
			Name:             m.Name(),
			Program:          m.Program,
		}
		regs, err := deps.RegistrationStore.ListByMember(ctx, m.ID)
		if err != nil {
			return GetRosterResult{}, err
		}
		if len(regs) > 0 {
			applyHealth(&row, regs[0].ParQJSON, regs[0].MedicalJSON)
		}
		rows = append(rows, row)
	}

	return GetRosterResult{
		Adults:       lo.Filter(rows, func(r RosterRow, _ int) bool { return r.Program == domainMember.ProgramAdults }),
		Kids:         lo.Filter(rows, func(r RosterRow, _ int) bool { return r.Program == domainMember.ProgramKids }),
		FlaggedCount: lo.CountBy(rows, RosterRow.Flagged),
	}, nil
}

// applyHealth copies flags from the stored JSON. Unreadable records are skipped.
func applyHealth(row *RosterRow, parqJSON, medicalJSON string) {
	var form parq.Form
	if json.Unmarshal([]byte(parqJSON), &form) == nil {
		row.ParQFlagged = form.Flagged()
		row.HasClearance = form.HasClearance()
	}
	var med applicant.MedicalCondition
	if medicalJSON != "" && json.Unmarshal([]byte(medicalJSON), &med) == nil {
		if med.HasCondition {
			row.Medical = med.Conditions
		}
		row.Allergies = med.Allergies
		if med.EmergencyContactName != "" {
			row.EmergencyContact = med.EmergencyContactName + " " + med.EmergencyContactPhone
		}
	}
}
