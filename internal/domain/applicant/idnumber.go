package applicant

import (
	"errors"
	"time"
)

// ID document types accepted on the registration form.
const (
	IDTypeSAID     = "sa_id"
	IDTypePassport = "passport"
)

const saIDLength = 13

// Identity number errors
var (
	ErrIDNumberFormat   = errors.New("identity number must be 13 digits")
	ErrIDNumberDate     = errors.New("identity number does not contain a valid date of birth")
	ErrIDNumberChecksum = errors.New("identity number check digit is invalid")
	ErrIDNumberMismatch = errors.New("identity number does not match the date of birth")
)

// ParseSAID validates a South African identity number and returns the
// date of birth it encodes. The century is resolved against now: a
// two-digit year in the future belongs to the previous century.
// PRE: id is the raw number without spaces
// POST: Returns the birth date or the first validation error
func ParseSAID(id string, now time.Time) (time.Time, error) {
	if len(id) != saIDLength {
		return time.Time{}, ErrIDNumberFormat
	}
	digits := make([]int, saIDLength)
	for i, c := range id {
		if c < '0' || c > '9' {
			return time.Time{}, ErrIDNumberFormat
		}
		digits[i] = int(c - '0')
	}

	yy := digits[0]*10 + digits[1]
	mm := digits[2]*10 + digits[3]
	dd := digits[4]*10 + digits[5]
	year := 2000 + yy
	if year > now.Year() {
		year -= 100
	}
	dob := time.Date(year, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	if mm < 1 || mm > 12 || dob.Day() != dd || dob.Month() != time.Month(mm) {
		return time.Time{}, ErrIDNumberDate
	}

	if !luhnValid(digits) {
		return time.Time{}, ErrIDNumberChecksum
	}
	return dob, nil
}

// luhnValid runs the Luhn check over all digits, the last being the check digit.
func luhnValid(digits []int) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// AgeOn returns the age in whole years on the given day.
func AgeOn(dob, day time.Time) int {
	age := day.Year() - dob.Year()
	if day.Month() < dob.Month() || (day.Month() == dob.Month() && day.Day() < dob.Day()) {
		age--
	}
	return age
}

// sameDate compares calendar dates ignoring time and location.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
