package member

import (
	"errors"
	"strings"
	"time"

	"dojo/internal/domain/membership"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
)

// Business rule constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusArchived = "archived"
	ProgramAdults  = "adults"
	ProgramKids    = "kids"
)

// Domain errors
var (
	ErrAlreadyArchived  = errors.New("member is already archived")
	ErrNotArchived      = errors.New("member is not archived")
	ErrAlreadyActive    = errors.New("member is already active")
	ErrInvalidNumber    = errors.New("membership number must match ZF followed by four digits")
	ErrActiveMembership = errors.New("this identity number already belongs to an active member; please sign in")
)

// Member is one registered student of the school.
type Member struct {
	ID               string
	MembershipNumber string
	FirstName        string
	LastName         string
	IDType           string
	IDNumber         string
	DateOfBirth      time.Time
	Email            string
	Phone            string
	Address          string
	Program          string
	Status           string
	GuardianID       string // empty for adults
	AccountID        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Name joins first and last name.
func (m *Member) Name() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// Validate checks if the Member has valid data.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: MembershipNumber matches ZF\d{4}, FirstName is not empty
func (m *Member) Validate() error {
	if strings.TrimSpace(m.FirstName) == "" {
		return errors.New("member first name cannot be empty")
	}
	if len(m.FirstName) > MaxNameLength || len(m.LastName) > MaxNameLength {
		return errors.New("member name cannot exceed 100 characters")
	}
	if !membership.Valid(m.MembershipNumber) {
		return ErrInvalidNumber
	}
	if m.IDNumber == "" {
		return errors.New("member identity number is required")
	}
	if m.Email != "" && !strings.Contains(m.Email, "@") {
		return errors.New("member email must be valid")
	}
	if m.Program != ProgramAdults && m.Program != ProgramKids {
		return errors.New("program must be 'adults' or 'kids'")
	}
	if m.Status != StatusActive && m.Status != StatusInactive && m.Status != StatusArchived {
		return errors.New("status must be 'active', 'inactive', or 'archived'")
	}
	return nil
}

// ProgramForAge picks the program a member of the given age trains in.
func ProgramForAge(age int) string {
	if age < 18 {
		return ProgramKids
	}
	return ProgramAdults
}

// IsActive returns true if the member is currently active.
// INVARIANT: Status field is not mutated
func (m *Member) IsActive() bool {
	return m.Status == StatusActive
}

// IsArchived returns true if the member is archived.
// INVARIANT: Status field is not mutated
func (m *Member) IsArchived() bool {
	return m.Status == StatusArchived
}

// Archive sets the member status to archived.
// PRE: Member is not already archived
// POST: Status is set to archived
func (m *Member) Archive() error {
	if m.Status == StatusArchived {
		return ErrAlreadyArchived
	}
	m.Status = StatusArchived
	return nil
}

// Restore sets the member status back to active.
// PRE: Member is currently archived
// POST: Status is set to active
func (m *Member) Restore() error {
	if m.Status != StatusArchived {
		return ErrNotArchived
	}
	m.Status = StatusActive
	return nil
}

// Reactivate brings an inactive or archived member back through registration.
// The membership number is kept.
// PRE: Member is not active
// POST: Status is active
func (m *Member) Reactivate() error {
	if m.Status == StatusActive {
		return ErrAlreadyActive
	}
	m.Status = StatusActive
	return nil
}

// Guardian is the parent or guardian responsible for one or more minor members.
type Guardian struct {
	ID           string
	FirstName    string
	LastName     string
	IDType       string
	IDNumber     string
	Relationship string
	Email        string
	Phone        string
	Address      string
	CreatedAt    time.Time
}

// Name joins first and last name.
func (g *Guardian) Name() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}

// Validate checks the guardian record.
// PRE: Guardian struct is populated
// POST: Returns nil if valid, error otherwise
func (g *Guardian) Validate() error {
	if strings.TrimSpace(g.FirstName) == "" {
		return errors.New("guardian first name cannot be empty")
	}
	if g.IDNumber == "" {
		return errors.New("guardian identity number is required")
	}
	if !strings.Contains(g.Email, "@") {
		return errors.New("guardian email must be valid")
	}
	return nil
}
