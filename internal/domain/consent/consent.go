package consent

import (
	"time"

	"github.com/google/uuid"
)

// Type represents the document a consent was given for.
type Type string

const (
	TypeParQ      Type = "parq"
	TypeIndemnity Type = "indemnity"
	TypePopia     Type = "popia"
)

// Versions are the current revisions of each consent document.
// Bump a version whenever the document text changes.
var Versions = map[Type]string{
	TypeParQ:      "2024-01",
	TypeIndemnity: "2024-03",
	TypePopia:     "2021-07",
}

// SourceRegistration marks consents captured by the registration wizard.
const SourceRegistration = "registration"

// Consent represents a member's consent record.
type Consent struct {
	ID        string     `json:"id"`
	MemberID  string     `json:"member_id"`
	Type      Type       `json:"type"`
	Granted   bool       `json:"granted"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	Source    string     `json:"source"`
	IPAddress string     `json:"ip_address"`
	UserAgent string     `json:"user_agent"`
	Version   string     `json:"version"`
}

// NewConsent creates a granted consent for the current version of the document.
// PRE: memberID is non-empty and consentType is a known Type
// POST: Returns a Consent with granted=true and GrantedAt=now
func NewConsent(memberID string, consentType Type, source, ipAddress, userAgent string, now time.Time) Consent {
	return Consent{
		ID:        uuid.New().String(),
		MemberID:  memberID,
		Type:      consentType,
		Granted:   true,
		GrantedAt: now,
		Source:    source,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Version:   Versions[consentType],
	}
}

// Revoke marks the consent as revoked.
// PRE: Consent was previously granted and not already revoked
// POST: RevokedAt is set to now, Granted is false
func (c *Consent) Revoke(now time.Time) error {
	if !c.Granted {
		return ErrConsentNotGranted
	}
	if c.RevokedAt != nil {
		return ErrConsentAlreadyRevoked
	}
	c.RevokedAt = &now
	c.Granted = false
	return nil
}

// IsValid returns true if consent is currently granted and not revoked.
// INVARIANT: Granted=true and RevokedAt=nil
func (c Consent) IsValid() bool {
	return c.Granted && c.RevokedAt == nil
}

// IsCurrent reports whether the consent covers the latest document version.
func (c Consent) IsCurrent() bool {
	return c.IsValid() && c.Version == Versions[c.Type]
}

// ErrConsentNotGranted is returned when trying to revoke consent that was never granted.
var ErrConsentNotGranted = &ConsentError{Message: "consent was never granted"}

// ErrConsentAlreadyRevoked is returned when trying to revoke already revoked consent.
var ErrConsentAlreadyRevoked = &ConsentError{Message: "consent already revoked"}

// ConsentError represents a consent-related error.
type ConsentError struct {
	Message string
}

// Error implements the error interface.
func (e *ConsentError) Error() string {
	return e.Message
}
