package registration_test

import (
	"testing"
	"time"

	"dojo/internal/domain/registration"
)

func TestRegistrationValidate(t *testing.T) {
	valid := registration.Registration{
		ID: "r1", MemberID: "m1", Kind: registration.KindNew,
		ParQJSON: `{"answers":[false,false,false,false,false,false,false]}`, SubmittedAt: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		modify func(*registration.Registration)
	}{
		{"no member", func(r *registration.Registration) { r.MemberID = "" }},
		{"bad kind", func(r *registration.Registration) { r.Kind = "transfer" }},
		{"no parq", func(r *registration.Registration) { r.ParQJSON = "" }},
		{"no time", func(r *registration.Registration) { r.SubmittedAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.modify(&r)
			if err := r.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
