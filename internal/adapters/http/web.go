// Package web serves the registration wizard, the portals and the public events pages.
package web

import (
	"net/http"
	"time"

	"dojo/internal/adapters/blob"
	"dojo/internal/adapters/gateway"
	"dojo/internal/adapters/http/middleware"
	"dojo/internal/adapters/http/perf"
	accountStore "dojo/internal/adapters/storage/account"
	consentStore "dojo/internal/adapters/storage/consent"
	documentStore "dojo/internal/adapters/storage/document"
	eventStore "dojo/internal/adapters/storage/event"
	memberStore "dojo/internal/adapters/storage/member"
	outboxStore "dojo/internal/adapters/storage/outbox"
	paymentStore "dojo/internal/adapters/storage/payment"
	registrationStore "dojo/internal/adapters/storage/registration"
	"dojo/internal/adapters/wizardstore"
	"dojo/internal/application/orchestrators"
	"dojo/internal/config"
	accountDomain "dojo/internal/domain/account"
	"dojo/internal/domain/membership"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore      accountStore.Store
	MemberStore       memberStore.Store
	RegistrationStore registrationStore.Store
	ConsentStore      consentStore.Store
	DocumentStore     documentStore.Store
	PaymentStore      paymentStore.Store
	EventStore        eventStore.Store
	OutboxStore       outboxStore.Store
}

// Services holds the non-database collaborators.
type Services struct {
	Wizards wizardstore.Store
	Blobs   blob.Store
	Outbox  *orchestrators.OutboxProcessor
	Gateway gateway.Gateway
	Signer  *gateway.ReturnSigner
	Numbers *membership.Generator
	Perf    *perf.Collector // may be nil
}

// Options carries the settings handlers need.
type Options struct {
	Production       bool
	CSRFKey          []byte // 32 bytes
	TrustedOrigins   []string
	BaseURL          string
	School           config.School
	Payments         config.Payments
	Uploads          config.Uploads
	InstructorEmails []string
	RateLimitRPS     float64
	RateLimitBurst   int
	SlowRequest      time.Duration
}

// Global dependencies (set by NewMux)
var (
	stores   *Stores
	services Services
	options  Options
	sessions *middleware.SessionStore
)

// timeNow is a variable for testability.
var timeNow = time.Now

// NewMux wires HTTP handlers for the app. The returned stop function ends background sweeps.
// PRE: s, svc.Wizards, svc.Blobs, svc.Outbox, svc.Gateway and svc.Signer are non-nil
func NewMux(s *Stores, svc Services, opts Options) (http.Handler, func()) {
	stores = s
	services = svc
	options = opts
	if services.Numbers == nil {
		services.Numbers = membership.NewGenerator(nil)
	}
	sessions = middleware.NewSessionStore()
	middleware.SecureCookies = opts.Production

	mux := http.NewServeMux()
	registerRoutes(mux)

	stop := make(chan struct{})
	limiter := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	limiter.StartSweeper(stop)

	// Timing -> RateLimit -> SecurityHeaders -> MaxBody -> Auth -> CSRF -> Mux
	h := middleware.Chain(mux,
		middleware.CSRF(opts.CSRFKey, opts.Production, opts.TrustedOrigins),
		middleware.Auth(sessions),
		middleware.MaxBody(requestLimit(opts.Uploads.MaxBytes)),
		middleware.SecurityHeaders,
		middleware.RateLimit(limiter),
		middleware.Timing(svc.Perf, opts.SlowRequest),
	)
	return h, func() { close(stop) }
}

func registerRoutes(mux *http.ServeMux) {
	mux.Handle("GET /static/", staticHandler())
	mux.HandleFunc("GET /healthz", handleHealth)

	registerWizardRoutes(mux)

	mux.HandleFunc("GET /login", handleLoginPage)
	mux.HandleFunc("POST /login", handleLogin)
	mux.HandleFunc("POST /logout", handleLogout)
	mux.HandleFunc("GET /change-password", handleChangePasswordPage)
	mux.HandleFunc("POST /change-password", handleChangePassword)

	mux.HandleFunc("GET /events", handleEvents)
	mux.HandleFunc("GET /api/events", handleEventsAPI)

	admin := middleware.RequireRole(accountDomain.RoleAdmin)
	mux.Handle("GET /admin", admin(http.HandlerFunc(handleAdminDashboard)))
	mux.Handle("GET /admin/members", admin(http.HandlerFunc(handleAdminMembers)))
	mux.Handle("GET /admin/members/export", admin(http.HandlerFunc(handleAdminMembersExport)))
	mux.Handle("GET /admin/members/{id}", admin(http.HandlerFunc(handleAdminMember)))
	mux.Handle("POST /admin/members/{id}/archive", admin(http.HandlerFunc(handleAdminArchiveMember)))
	mux.Handle("POST /admin/members/{id}/restore", admin(http.HandlerFunc(handleAdminRestoreMember)))
	mux.Handle("GET /admin/events", admin(http.HandlerFunc(handleAdminEvents)))
	mux.Handle("POST /admin/events", admin(http.HandlerFunc(handleAdminSaveEvent)))
	mux.Handle("POST /admin/events/{id}/delete", admin(http.HandlerFunc(handleAdminDeleteEvent)))
	mux.Handle("GET /admin/instructors", admin(http.HandlerFunc(handleAdminInstructors)))
	mux.Handle("POST /admin/instructors", admin(http.HandlerFunc(handleAdminCreateInstructor)))
	mux.Handle("GET /admin/outbox", admin(http.HandlerFunc(handleAdminOutbox)))
	mux.Handle("POST /admin/outbox/{id}/retry", admin(http.HandlerFunc(handleAdminOutboxRetry)))
	mux.Handle("POST /admin/outbox/{id}/abandon", admin(http.HandlerFunc(handleAdminOutboxAbandon)))

	staff := middleware.RequireRole(accountDomain.RoleAdmin, accountDomain.RoleInstructor)
	mux.Handle("GET /instructor", staff(http.HandlerFunc(handleInstructorRoster)))
	mux.Handle("GET /instructor/members/{id}", staff(http.HandlerFunc(handleInstructorMember)))
	mux.Handle("GET /instructor/events", staff(http.HandlerFunc(handleInstructorEvents)))
	mux.Handle("GET /documents/{id}", staff(http.HandlerFunc(handleDocument)))

	student := middleware.RequireRole(accountDomain.RoleStudent)
	mux.Handle("GET /student", student(http.HandlerFunc(handleStudentHome)))
	mux.Handle("POST /student/pay", student(http.HandlerFunc(handleStudentPay)))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
