package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dojo/internal/domain/account"
	"dojo/internal/domain/member"
	"dojo/internal/domain/membership"

	"github.com/google/uuid"
)

// TestAccountSeedDeps holds stores needed for test account seeding.
type TestAccountSeedDeps struct {
	AccountStore testAcctAccountStore
	MemberStore  testAcctMemberStore
	Numbers      *membership.Generator
	Now          func() time.Time
}

type testAcctAccountStore interface {
	Save(ctx context.Context, a account.Account) error
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

type testAcctMemberStore interface {
	Save(ctx context.Context, m member.Member) error
	NumberTaken(ctx context.Context, number string) (bool, error)
}

// testAccountDef defines a single test account to seed.
type testAccountDef struct {
	Email     string
	Password  string
	Role      string
	FirstName string // empty when the account has no member record
	LastName  string
	IDNumber  string
	Born      time.Time
}

// testAccounts returns the list of development accounts, one per portal.
func testAccounts() []testAccountDef {
	return []testAccountDef{
		{
			Email:    "dev+admin@dojo.test",
			Password: "Dojo+admin-2024",
			Role:     account.RoleAdmin,
		},
		{
			Email:    "dev+instructor@dojo.test",
			Password: "Dojo+sensei-2024",
			Role:     account.RoleInstructor,
		},
		{
			Email:     "dev+student@dojo.test",
			Password:  "Dojo+student-24",
			Role:      account.RoleStudent,
			FirstName: "Test",
			LastName:  "Student",
			IDNumber:  "9001015009086",
			Born:      time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

// ExecuteSeedTestAccounts creates development accounts for each portal if they don't already exist.
// It is idempotent and skips accounts that already exist (checked by email).
// PRE: Database is migrated; only called outside production
// POST: one account per role exists; the student account has an active member record
func ExecuteSeedTestAccounts(ctx context.Context, deps TestAccountSeedDeps) error {
	if deps.Numbers == nil {
		deps.Numbers = membership.NewGenerator(nil)
	}
	now := clock(deps.Now)
	created := 0
	for _, def := range testAccounts() {
		if _, err := deps.AccountStore.GetByEmail(ctx, def.Email); err == nil {
			continue
		}

		acct := account.Account{
			ID:        uuid.New().String(),
			Email:     def.Email,
			Role:      def.Role,
			CreatedAt: now,
		}
		if def.FirstName != "" {
			m, err := seedMember(ctx, deps, def, acct.ID, now)
			if err != nil {
				return err
			}
			acct.MemberID = m.ID
		}
		if err := acct.SetPassword(def.Password); err != nil {
			return fmt.Errorf("seed test account %s: set password: %w", def.Email, err)
		}
		if err := deps.AccountStore.Save(ctx, acct); err != nil {
			return fmt.Errorf("seed test account %s: save: %w", def.Email, err)
		}

		created++
		slog.Info("seed_event", "event", "test_account_created", "email", def.Email, "role", def.Role)
	}

	if created > 0 {
		slog.Info("seed_event", "event", "test_accounts_seeded", "created", created)
	}
	return nil
}

func seedMember(ctx context.Context, deps TestAccountSeedDeps, def testAccountDef, accountID string, now time.Time) (member.Member, error) {
	number, err := deps.Numbers.UniqueNumber(numberAttempts, func(n string) (bool, error) {
		return deps.MemberStore.NumberTaken(ctx, n)
	})
	if err != nil {
		return member.Member{}, err
	}
	m := member.Member{
		ID:               uuid.New().String(),
		MembershipNumber: number,
		FirstName:        def.FirstName,
		LastName:         def.LastName,
		IDType:           "sa_id",
		IDNumber:         def.IDNumber,
		DateOfBirth:      def.Born,
		Email:            def.Email,
		Program:          member.ProgramAdults,
		Status:           member.StatusActive,
		AccountID:        accountID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.Validate(); err != nil {
		return member.Member{}, err
	}
	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return member.Member{}, fmt.Errorf("seed test member %s: save: %w", m.Name(), err)
	}
	return m, nil
}
