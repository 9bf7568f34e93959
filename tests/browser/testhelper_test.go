package browser_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"dojo/internal/adapters/blob"
	"dojo/internal/adapters/email"
	"dojo/internal/adapters/gateway"
	web "dojo/internal/adapters/http"
	accountStore "dojo/internal/adapters/storage/account"
	consentStore "dojo/internal/adapters/storage/consent"
	documentStore "dojo/internal/adapters/storage/document"
	eventStore "dojo/internal/adapters/storage/event"
	memberStore "dojo/internal/adapters/storage/member"
	outboxStore "dojo/internal/adapters/storage/outbox"
	paymentStore "dojo/internal/adapters/storage/payment"
	registrationStore "dojo/internal/adapters/storage/registration"
	"dojo/internal/adapters/storage/storagetest"
	"dojo/internal/adapters/wizardstore"
	"dojo/internal/application/orchestrators"
	"dojo/internal/config"
	"dojo/internal/domain/account"
	"dojo/internal/domain/outbox"
	"dojo/internal/domain/payment"
)

const (
	adminEmail    = "admin@test.com"
	adminPassword = "TestPass123!"
)

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	Browser playwright.Browser
	Stores  *web.Stores
}

// newTestApp wires the site against a temp SQLite DB, starts it and launches Chromium.
// The test is skipped when Playwright's driver or browsers are not installed.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	db := storagetest.Open(t)
	stores := &web.Stores{
		AccountStore:      accountStore.NewSQLiteStore(db),
		MemberStore:       memberStore.NewSQLiteStore(db),
		RegistrationStore: registrationStore.NewSQLiteStore(db),
		ConsentStore:      consentStore.NewSQLiteStore(db),
		DocumentStore:     documentStore.NewSQLiteStore(db),
		PaymentStore:      paymentStore.NewSQLiteStore(db),
		EventStore:        eventStore.NewSQLiteStore(db),
		OutboxStore:       outboxStore.NewSQLiteStore(db),
	}

	// Seed admin without a forced change so login lands on the dashboard
	if _, err := orchestrators.ExecuteCreateAccount(context.Background(), orchestrators.CreateAccountInput{
		Email:    adminEmail,
		Password: adminPassword,
		Role:     account.RoleAdmin,
	}, orchestrators.CreateAccountDeps{AccountStore: stores.AccountStore, Now: time.Now}); err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}

	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open upload dir: %v", err)
	}
	signer, err := gateway.NewReturnSigner([]byte(strings.Repeat("s", 32)), time.Now)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	executors := map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: email.NewNoopSender(), From: "Test Dojo <noreply@example.com>"},
	}

	h, stop := web.NewMux(stores, web.Services{
		Wizards: wizardstore.NewMemoryStore(time.Hour),
		Blobs:   blobs,
		Outbox:  orchestrators.NewOutboxProcessor(stores.OutboxStore, executors),
		Gateway: gateway.DevGateway{},
		Signer:  signer,
	}, web.Options{
		CSRFKey: []byte(strings.Repeat("c", 32)),
		School:  config.School{Name: "Test Dojo", Email: "dojo@example.com", Phone: "021 555 0100"},
		Payments: config.Payments{Amounts: payment.Amounts{
			payment.TypeRegistrationFee: 35000,
			payment.TypeMonthlyFee:      45000,
		}},
		Uploads:        config.Uploads{MaxBytes: 1 << 20},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	srv := httptest.NewServer(h)

	pw, err := playwright.Run()
	if err != nil {
		srv.Close()
		stop()
		t.Skipf("playwright driver unavailable: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		srv.Close()
		stop()
		t.Skipf("chromium unavailable: %v", err)
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		stop()
	})
	return &testApp{BaseURL: srv.URL, Browser: browser, Stores: stores}
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// waitFor blocks until the page reaches path on the test server.
func (a *testApp) waitFor(t *testing.T, page playwright.Page, path string) {
	t.Helper()
	if err := page.WaitForURL(a.BaseURL+path, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("page did not reach %s (at %s): %v", path, page.URL(), err)
	}
}

// login signs in as the seeded admin.
func (a *testApp) login(t *testing.T, page playwright.Page) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/login"); err != nil {
		t.Fatalf("failed to navigate to login: %v", err)
	}
	if err := page.Locator("input[name=email]").Fill(adminEmail); err != nil {
		t.Fatalf("failed to fill email: %v", err)
	}
	if err := page.Locator("input[name=password]").Fill(adminPassword); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("form[action='/login'] button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click sign in: %v", err)
	}
	a.waitFor(t, page, "/admin")
}
