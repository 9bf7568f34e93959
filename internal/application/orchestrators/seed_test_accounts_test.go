package orchestrators

import (
	"context"
	"regexp"
	"testing"

	"dojo/internal/domain/account"
)

// TestSeedTestAccounts_CreatesAllAccounts verifies one account per portal is created with the right role.
func TestSeedTestAccounts_CreatesAllAccounts(t *testing.T) {
	acctStore := newMockAccountStore()
	memberStore := newMockMemberStore()
	deps := TestAccountSeedDeps{AccountStore: acctStore, MemberStore: memberStore}

	if err := ExecuteSeedTestAccounts(context.Background(), deps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]string{
		"dev+admin@dojo.test":      account.RoleAdmin,
		"dev+instructor@dojo.test": account.RoleInstructor,
		"dev+student@dojo.test":    account.RoleStudent,
	}
	if len(acctStore.byID) != len(expected) {
		t.Errorf("expected %d accounts, got %d", len(expected), len(acctStore.byID))
	}
	for email, role := range expected {
		acct, err := acctStore.GetByEmail(context.Background(), email)
		if err != nil {
			t.Errorf("account %s not found", email)
			continue
		}
		if acct.Role != role {
			t.Errorf("account %s: expected role %s, got %s", email, role, acct.Role)
		}
	}

	if len(memberStore.members) != 1 {
		t.Fatalf("expected 1 member record, got %d", len(memberStore.members))
	}
	student, _ := acctStore.GetByEmail(context.Background(), "dev+student@dojo.test")
	m := memberStore.members[student.MemberID]
	if m.AccountID != student.ID || !regexp.MustCompile(`^ZF\d{4}$`).MatchString(m.MembershipNumber) {
		t.Errorf("student member = %+v", m)
	}
}

// TestSeedTestAccounts_Idempotent verifies running the seed twice doesn't create duplicates.
func TestSeedTestAccounts_Idempotent(t *testing.T) {
	acctStore := newMockAccountStore()
	memberStore := newMockMemberStore()
	deps := TestAccountSeedDeps{AccountStore: acctStore, MemberStore: memberStore}

	for i := 0; i < 2; i++ {
		if err := ExecuteSeedTestAccounts(context.Background(), deps); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
	if len(acctStore.byID) != 3 || len(memberStore.members) != 1 {
		t.Errorf("got %d accounts and %d members after two runs", len(acctStore.byID), len(memberStore.members))
	}
}
