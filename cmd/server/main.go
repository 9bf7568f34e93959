package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"dojo/internal/adapters/blob"
	"dojo/internal/adapters/email"
	"dojo/internal/adapters/errreport"
	"dojo/internal/adapters/gateway"
	web "dojo/internal/adapters/http"
	"dojo/internal/adapters/http/perf"
	"dojo/internal/adapters/storage"
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
	"dojo/internal/domain/membership"
	"dojo/internal/domain/outbox"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading DOJO_* variables")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// JSON logs in production, text locally; errors also go to Rollbar when a token is set.
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	flush := func() {}
	if cfg.RollbarToken != "" {
		host, _ := os.Hostname()
		reporter := errreport.NewRollbarReporter(cfg.RollbarToken, cfg.Env, version, host)
		flush = func() { reporter.Close() }
		handler = errreport.NewHandler(handler, reporter)
	}
	slog.SetDefault(slog.New(handler))

	err = run(cfg)
	if err != nil {
		slog.Error("server_failed", "error", err)
	}
	flush()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx := context.Background()

	// WAL mode, foreign keys and a busy timeout on every connection
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.Ping(); err != nil {
		return err
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		return err
	}
	timedDB := storage.NewTimedDB(db, 0)

	stores := &web.Stores{
		AccountStore:      accountStore.NewSQLiteStore(timedDB),
		MemberStore:       memberStore.NewSQLiteStore(timedDB),
		RegistrationStore: registrationStore.NewSQLiteStore(timedDB),
		ConsentStore:      consentStore.NewSQLiteStore(timedDB),
		DocumentStore:     documentStore.NewSQLiteStore(timedDB),
		PaymentStore:      paymentStore.NewSQLiteStore(timedDB),
		EventStore:        eventStore.NewSQLiteStore(timedDB),
		OutboxStore:       outboxStore.NewSQLiteStore(timedDB),
	}
	numbers := membership.NewGenerator(nil)

	seedDeps := orchestrators.CreateAccountDeps{AccountStore: stores.AccountStore, Now: time.Now}
	if err := orchestrators.ExecuteSeedAdmin(ctx, seedDeps, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}
	if !cfg.IsProduction() {
		if err := orchestrators.ExecuteSeedTestAccounts(ctx, orchestrators.TestAccountSeedDeps{
			AccountStore: stores.AccountStore,
			MemberStore:  stores.MemberStore,
			Numbers:      numbers,
			Now:          time.Now,
		}); err != nil {
			return err
		}
	}

	wizards, err := newWizardStore(cfg.Wizard)
	if err != nil {
		return err
	}
	blobs, err := newBlobStore(ctx, cfg.Uploads)
	if err != nil {
		return err
	}
	pay, err := newGateway(cfg.Payments)
	if err != nil {
		return err
	}
	secret := cfg.PaymentSecret
	if secret == "" {
		slog.Warn("payment_secret_missing", "detail", "using a development secret; set DOJO_PAYMENT_SECRET")
		secret = "development-only-payment-secret-000000"
	}
	signer, err := gateway.NewReturnSigner([]byte(secret), time.Now)
	if err != nil {
		return err
	}

	sender, err := email.New(cfg.Email.Provider, cfg.Email.APIKey, cfg.Email.From)
	if err != nil {
		return err
	}
	if cfg.Email.Provider == "noop" && cfg.IsProduction() {
		slog.Warn("email_disabled", "detail", "DOJO_EMAIL_PROVIDER is noop in production")
	}
	processor := orchestrators.NewOutboxProcessor(stores.OutboxStore, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: sender, From: cfg.Email.From, ReplyTo: cfg.Email.ReplyTo},
	})
	outboxStop := make(chan struct{})
	orchestrators.StartBackgroundWorker(processor, cfg.OutboxInterval, outboxStop)
	defer close(outboxStop)

	csrfKey := []byte(cfg.CSRFKey)
	if len(csrfKey) < 32 {
		slog.Warn("csrf_key_missing", "detail", "using a development key; set DOJO_CSRF_KEY")
		csrfKey = []byte("development-only-csrf-key-0000000")
	}

	collector := perf.NewCollector(perf.DefaultWindow)
	h, stopMux := web.NewMux(stores, web.Services{
		Wizards: wizards,
		Blobs:   blobs,
		Outbox:  processor,
		Gateway: pay,
		Signer:  signer,
		Numbers: numbers,
		Perf:    collector,
	}, web.Options{
		Production:       cfg.IsProduction(),
		CSRFKey:          csrfKey[:32],
		TrustedOrigins:   cfg.TrustedOrigins,
		BaseURL:          cfg.BaseURL,
		School:           cfg.School,
		Payments:         cfg.Payments,
		Uploads:          cfg.Uploads,
		InstructorEmails: cfg.Email.InstructorEmails,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		SlowRequest:      cfg.SlowRequest,
	})
	defer stopMux()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", "version", version, "addr", cfg.Addr, "env", cfg.Env, "schema", storage.LatestSchemaVersion())
		errCh <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case s := <-sig:
		slog.Info("server_stopping", "signal", s.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newWizardStore(cfg config.Wizard) (wizardstore.Store, error) {
	if cfg.Store == "redis" {
		client, err := wizardstore.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		slog.Info("wizard_store", "kind", "redis")
		return wizardstore.NewRedisStore(client, cfg.TTL), nil
	}
	slog.Info("wizard_store", "kind", "memory")
	return wizardstore.NewMemoryStore(cfg.TTL), nil
}

func newBlobStore(ctx context.Context, cfg config.Uploads) (blob.Store, error) {
	if cfg.Store == "s3" {
		slog.Info("upload_store", "kind", "s3", "bucket", cfg.Bucket)
		return blob.NewS3Store(ctx, blob.S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		})
	}
	slog.Info("upload_store", "kind", "disk", "dir", cfg.Dir)
	return blob.NewDiskStore(cfg.Dir)
}

func newGateway(cfg config.Payments) (gateway.Gateway, error) {
	switch cfg.Gateway {
	case "rest":
		return gateway.NewRestGateway(cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case "dev":
		slog.Warn("payment_gateway_dev", "detail", "payments complete without a provider")
		return gateway.DevGateway{}, nil
	}
	return nil, errors.New("unknown payment gateway " + cfg.Gateway)
}
