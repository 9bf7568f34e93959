// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dojo/internal/domain/document"
	"dojo/internal/domain/payment"
)

// EnvPrefix is prepended to every environment variable, e.g. DOJO_ADDR.
const EnvPrefix = "DOJO"

// Config is the full server configuration.
type Config struct {
	Env     string
	Addr    string
	DBPath  string
	BaseURL string

	School School

	CSRFKey       string
	PaymentSecret string

	AdminEmail    string
	AdminPassword string

	Email    Email
	Wizard   Wizard
	Uploads  Uploads
	Payments Payments

	RollbarToken   string
	OutboxInterval time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	SlowRequest    time.Duration
	// TrustedOrigins are extra hosts allowed to post forms, e.g. behind a proxy.
	TrustedOrigins []string
}

// School holds the contact details shown on rejection pages and in emails.
type School struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Email configures the transactional email provider.
type Email struct {
	Provider         string // resend, sendgrid or noop
	APIKey           string
	From             string
	ReplyTo          string
	InstructorEmails []string
}

// Wizard configures registration session storage.
type Wizard struct {
	Store    string // memory or redis
	RedisURL string
	TTL      time.Duration
}

// Uploads configures document storage.
type Uploads struct {
	Store    string // disk or s3
	Dir      string
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
	MaxBytes int64
}

// Payments configures the payment gateway and fee amounts.
type Payments struct {
	Gateway string // dev or rest
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Amounts payment.Amounts
}

// IsProduction reports whether the server runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "dojo.db")
	v.SetDefault("base_url", "http://localhost:8080")

	v.SetDefault("school.name", "Zanshin Dojo")
	v.SetDefault("school.email", "info@zanshin.co.za")
	v.SetDefault("school.phone", "+27 21 555 0100")
	v.SetDefault("school.address", "12 Kloof Street, Cape Town")

	v.SetDefault("csrf_key", "")
	v.SetDefault("payment_secret", "")
	v.SetDefault("admin_email", "admin@zanshin.co.za")
	v.SetDefault("admin_password", "change-me-now-please")

	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.from", "Zanshin Dojo <noreply@zanshin.co.za>")
	v.SetDefault("email.reply_to", "info@zanshin.co.za")
	v.SetDefault("email.instructors", "")

	v.SetDefault("wizard.store", "memory")
	v.SetDefault("wizard.redis_url", "redis://localhost:6379/0")
	v.SetDefault("wizard.ttl", 24*time.Hour)

	v.SetDefault("uploads.store", "disk")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.bucket", "")
	v.SetDefault("uploads.region", "af-south-1")
	v.SetDefault("uploads.endpoint", "")
	v.SetDefault("uploads.prefix", "")
	v.SetDefault("uploads.max_bytes", document.DefaultMaxBytes)

	v.SetDefault("payments.gateway", "dev")
	v.SetDefault("payments.base_url", "")
	v.SetDefault("payments.api_key", "")
	v.SetDefault("payments.timeout", 15*time.Second)
	v.SetDefault("payments.registration_fee", 35000)
	v.SetDefault("payments.monthly_fee", 65000)
	v.SetDefault("payments.grading_fee", 25000)
	v.SetDefault("payments.event_fee", 20000)

	v.SetDefault("rollbar_token", "")
	v.SetDefault("outbox_interval", time.Minute)
	v.SetDefault("rate_limit_rps", 10.0)
	v.SetDefault("rate_limit_burst", 30)
	v.SetDefault("slow_request", 500*time.Millisecond)
	v.SetDefault("trusted_origins", "")
}

// Load reads an optional dotenv file, then the DOJO_* environment.
// A missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("stat %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		Env:     v.GetString("env"),
		Addr:    v.GetString("addr"),
		DBPath:  v.GetString("db_path"),
		BaseURL: strings.TrimSuffix(v.GetString("base_url"), "/"),
		School: School{
			Name:    v.GetString("school.name"),
			Email:   v.GetString("school.email"),
			Phone:   v.GetString("school.phone"),
			Address: v.GetString("school.address"),
		},
		CSRFKey:       v.GetString("csrf_key"),
		PaymentSecret: v.GetString("payment_secret"),
		AdminEmail:    v.GetString("admin_email"),
		AdminPassword: v.GetString("admin_password"),
		Email: Email{
			Provider:         v.GetString("email.provider"),
			APIKey:           v.GetString("email.api_key"),
			From:             v.GetString("email.from"),
			ReplyTo:          v.GetString("email.reply_to"),
			InstructorEmails: splitList(v.GetString("email.instructors")),
		},
		Wizard: Wizard{
			Store:    v.GetString("wizard.store"),
			RedisURL: v.GetString("wizard.redis_url"),
			TTL:      v.GetDuration("wizard.ttl"),
		},
		Uploads: Uploads{
			Store:    v.GetString("uploads.store"),
			Dir:      v.GetString("uploads.dir"),
			Bucket:   v.GetString("uploads.bucket"),
			Region:   v.GetString("uploads.region"),
			Endpoint: v.GetString("uploads.endpoint"),
			Prefix:   v.GetString("uploads.prefix"),
			MaxBytes: v.GetInt64("uploads.max_bytes"),
		},
		Payments: Payments{
			Gateway: v.GetString("payments.gateway"),
			BaseURL: v.GetString("payments.base_url"),
			APIKey:  v.GetString("payments.api_key"),
			Timeout: v.GetDuration("payments.timeout"),
			Amounts: payment.Amounts{
				payment.TypeRegistrationFee: v.GetInt64("payments.registration_fee"),
				payment.TypeMonthlyFee:      v.GetInt64("payments.monthly_fee"),
				payment.TypeGradingFee:      v.GetInt64("payments.grading_fee"),
				payment.TypeEventFee:        v.GetInt64("payments.event_fee"),
			},
		},
		RollbarToken:   v.GetString("rollbar_token"),
		OutboxInterval: v.GetDuration("outbox_interval"),
		RateLimitRPS:   v.GetFloat64("rate_limit_rps"),
		RateLimitBurst: v.GetInt("rate_limit_burst"),
		SlowRequest:    v.GetDuration("slow_request"),
		TrustedOrigins: splitList(v.GetString("trusted_origins")),
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that would otherwise fail at first use.
func (c Config) Validate() error {
	if c.IsProduction() {
		if len(c.CSRFKey) < 32 {
			return errors.New("DOJO_CSRF_KEY must be at least 32 bytes in production")
		}
		if len(c.PaymentSecret) < 32 {
			return errors.New("DOJO_PAYMENT_SECRET must be at least 32 bytes in production")
		}
	}
	switch c.Email.Provider {
	case "resend", "sendgrid":
		if c.Email.APIKey == "" {
			return fmt.Errorf("DOJO_EMAIL_API_KEY is required for provider %s", c.Email.Provider)
		}
	case "noop":
	default:
		return fmt.Errorf("unknown email provider %q", c.Email.Provider)
	}
	if c.Wizard.Store != "memory" && c.Wizard.Store != "redis" {
		return fmt.Errorf("unknown wizard store %q", c.Wizard.Store)
	}
	switch c.Uploads.Store {
	case "disk":
	case "s3":
		if c.Uploads.Bucket == "" {
			return errors.New("DOJO_UPLOADS_BUCKET is required for s3 uploads")
		}
	default:
		return fmt.Errorf("unknown uploads store %q", c.Uploads.Store)
	}
	switch c.Payments.Gateway {
	case "dev":
	case "rest":
		if c.Payments.BaseURL == "" {
			return errors.New("DOJO_PAYMENTS_BASE_URL is required for the rest gateway")
		}
	default:
		return fmt.Errorf("unknown payment gateway %q", c.Payments.Gateway)
	}
	for _, t := range payment.Types {
		if _, err := c.Payments.Amounts.For(t); err != nil {
			return fmt.Errorf("payment amount: %w", err)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
