package applicant

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AdultAge is the age from which an applicant registers without a guardian.
const AdultAge = 18

// MaxChildren caps how many dependents one guardian can add in a single registration.
const MaxChildren = 6

// Fitness levels for PhysicalReadiness.
const (
	FitnessLow      = "low"
	FitnessModerate = "moderate"
	FitnessHigh     = "high"
)

// Domain errors
var (
	ErrTooManyChildren  = errors.New("too many children for one registration")
	ErrChildIsAdult     = errors.New("additional children must be under 18")
	ErrNotReady         = errors.New("you must confirm that you are physically ready to train")
	ErrDuplicateChildID = errors.New("each child must have a different identity number")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names in errors so messages match the form fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError describes the first invalid field of a submission.
type ValidationError struct {
	Field string
	Rule  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	label := strings.ReplaceAll(e.Field, "_", " ")
	switch e.Rule {
	case "required", "required_if":
		return label + " is required"
	case "email":
		return label + " must be a valid email address"
	case "max":
		return label + " is too long"
	case "min":
		return label + " is too small"
	case "oneof":
		return label + " is not one of the allowed values"
	case "e164", "phone":
		return label + " must be a valid phone number"
	default:
		return label + " is invalid"
	}
}

// checkStruct runs tag validation and converts the first failure to a ValidationError.
func checkStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Field: verrs[0].Field(), Rule: verrs[0].Tag()}
	}
	return err
}

// Person holds identity fields shared by students, guardians and children.
type Person struct {
	FirstName   string    `json:"first_name" validate:"required,max=100"`
	LastName    string    `json:"last_name" validate:"required,max=100"`
	IDType      string    `json:"id_type" validate:"required,oneof=sa_id passport"`
	IDNumber    string    `json:"id_number" validate:"required,max=20"`
	DateOfBirth time.Time `json:"date_of_birth" validate:"required"`
}

// FullName joins first and last name.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Normalize trims whitespace and strips spaces from the identity number.
func (p *Person) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.IDNumber = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p.IDNumber), " ", ""))
}

// checkIdentity validates the identity number against the date of birth.
func (p *Person) checkIdentity(now time.Time) error {
	if p.DateOfBirth.After(now) {
		return errors.New("date of birth cannot be in the future")
	}
	if p.IDType != IDTypeSAID {
		return nil
	}
	dob, err := ParseSAID(p.IDNumber, now)
	if err != nil {
		return err
	}
	if !sameDate(dob, p.DateOfBirth) {
		return ErrIDNumberMismatch
	}
	return nil
}

// Contact holds the reachable details of a student or guardian.
type Contact struct {
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"required,max=20"`
	Address string `json:"address" validate:"max=300"`
}

// Student holds the StudentDetails captured at Registration.
type Student struct {
	Person
	Contact
	PhotoDocumentID string `json:"photo_document_id,omitempty"`
}

// Validate checks the student's details.
// PRE: Normalize has been called
// POST: Returns nil if valid, the first failure otherwise
func (s *Student) Validate(now time.Time) error {
	if err := checkStruct(s); err != nil {
		return err
	}
	return s.checkIdentity(now)
}

// Age returns the student's age on the given day.
func (s *Student) Age(now time.Time) int {
	return AgeOn(s.DateOfBirth, now)
}

// IsMinor reports whether the student needs a guardian.
// INVARIANT: Student fields are not mutated
func (s *Student) IsMinor(now time.Time) bool {
	return s.Age(now) < AdultAge
}

// Parent holds the ParentDetails for a minor's guardian.
type Parent struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	LastName     string `json:"last_name" validate:"required,max=100"`
	IDType       string `json:"id_type" validate:"required,oneof=sa_id passport"`
	IDNumber     string `json:"id_number" validate:"required,max=20"`
	Relationship string `json:"relationship" validate:"required,oneof=mother father guardian other"`
	Contact
	IDFrontDocumentID string `json:"id_front_document_id,omitempty"`
	IDBackDocumentID  string `json:"id_back_document_id,omitempty"`
}

// FullName joins first and last name.
func (p Parent) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Validate checks the guardian's details. Guardians must be adults when
// their identity number encodes a birth date.
func (p *Parent) Validate(now time.Time) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.IDNumber = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p.IDNumber), " ", ""))
	if err := checkStruct(p); err != nil {
		return err
	}
	if p.IDType == IDTypeSAID {
		dob, err := ParseSAID(p.IDNumber, now)
		if err != nil {
			return err
		}
		if AgeOn(dob, now) < AdultAge {
			return errors.New("parent or guardian must be 18 or older")
		}
	}
	return nil
}

// Child holds one entry of ChildDetails[].
type Child struct {
	Person
	PhotoDocumentID string `json:"photo_document_id,omitempty"`
}

// Validate checks one additional child.
func (c *Child) Validate(now time.Time) error {
	if err := checkStruct(c); err != nil {
		return err
	}
	if err := c.checkIdentity(now); err != nil {
		return err
	}
	if AgeOn(c.DateOfBirth, now) >= AdultAge {
		return ErrChildIsAdult
	}
	return nil
}

// ValidateChildren checks the list of additional children as a whole.
// The registering student's identity number may not be repeated.
func ValidateChildren(children []Child, studentIDNumber string, now time.Time) error {
	if len(children) > MaxChildren {
		return ErrTooManyChildren
	}
	seen := map[string]bool{studentIDNumber: true}
	for i := range children {
		children[i].Normalize()
		if err := children[i].Validate(now); err != nil {
			return fmt.Errorf("child %d: %w", i+1, err)
		}
		if seen[children[i].IDNumber] {
			return ErrDuplicateChildID
		}
		seen[children[i].IDNumber] = true
	}
	return nil
}

// PreviousTraining records prior martial-arts experience.
type PreviousTraining struct {
	HasTrained bool   `json:"has_trained"`
	Style      string `json:"style" validate:"required_if=HasTrained true,max=100"`
	Years      int    `json:"years" validate:"min=0,max=80"`
	Grade      string `json:"grade" validate:"max=100"`
	School     string `json:"school" validate:"max=200"`
}

// Validate checks the training history.
func (t *PreviousTraining) Validate() error {
	if !t.HasTrained {
		*t = PreviousTraining{}
		return nil
	}
	return checkStruct(t)
}

// MedicalCondition records conditions the instructors must know about.
type MedicalCondition struct {
	HasCondition          bool   `json:"has_condition"`
	Conditions            string `json:"conditions" validate:"required_if=HasCondition true,max=1000"`
	Medication            string `json:"medication" validate:"max=500"`
	Allergies             string `json:"allergies" validate:"max=500"`
	EmergencyContactName  string `json:"emergency_contact_name" validate:"required,max=100"`
	EmergencyContactPhone string `json:"emergency_contact_phone" validate:"required,max=20"`
}

// Validate checks the medical record.
func (m *MedicalCondition) Validate() error {
	if !m.HasCondition {
		m.Conditions = ""
	}
	return checkStruct(m)
}

// PhysicalReadiness records the applicant's self-declared readiness.
type PhysicalReadiness struct {
	FitnessLevel string `json:"fitness_level" validate:"required,oneof=low moderate high"`
	Confirmed    bool   `json:"confirmed"`
	Goals        string `json:"goals" validate:"max=500"`
}

// Validate checks readiness. Confirmation is mandatory.
func (p *PhysicalReadiness) Validate() error {
	if err := checkStruct(p); err != nil {
		return err
	}
	if !p.Confirmed {
		return ErrNotReady
	}
	return nil
}
