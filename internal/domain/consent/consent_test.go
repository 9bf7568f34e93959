package consent_test

import (
	"testing"
	"time"

	"dojo/internal/domain/consent"
)

func TestConsentLifecycle(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	c := consent.NewConsent("m1", consent.TypeIndemnity, consent.SourceRegistration, "10.0.0.1", "test-agent", now)

	if c.ID == "" || !c.IsValid() || !c.IsCurrent() {
		t.Fatalf("new consent = %+v", c)
	}
	if c.Version != consent.Versions[consent.TypeIndemnity] {
		t.Errorf("Version = %s", c.Version)
	}

	c.Version = "1999-01"
	if c.IsCurrent() {
		t.Error("stale version should not be current")
	}

	if err := c.Revoke(now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if c.IsValid() || c.RevokedAt == nil {
		t.Error("revoked consent should not be valid")
	}
	if err := c.Revoke(now); err != consent.ErrConsentNotGranted {
		t.Errorf("second Revoke() = %v", err)
	}
}
