package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	LogLevel    string
	CORSOrigins []string

	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string

	JWTSecret string
	AdminKey  string

	PaymentGateway     string
	RazorpayKeyID      string
	RazorpayKeySecret  string
	WebhookSecret      string
	PaymentCurrency    string
	PaymentCallbackURL string
	PaymentBypass      bool

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailFromName string

	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration
	PaymentLinkTTL    time.Duration
	OTPResendCooldown time.Duration
	HTTPClientTimeout time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return d
	}
	boolean := func(key string) bool {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return false
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return b
	}

	cfg := &Config{
		HTTPAddr:    get("HTTP_ADDR", ":8080"),
		LogLevel:    get("LOG_LEVEL", "info"),
		CORSOrigins: list("CORS_ORIGINS"),

		DatabaseURL:   get("DATABASE_URL", blueprintDSN()),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: get("MONGO_DATABASE", "storefront"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		AdminKey:  os.Getenv("ADMIN_KEY"),

		PaymentGateway:     strings.ToLower(get("PAYMENT_GATEWAY", "razorpay")),
		RazorpayKeyID:      os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:  os.Getenv("RAZORPAY_KEY_SECRET"),
		WebhookSecret:      os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		PaymentCurrency:    strings.ToUpper(get("PAYMENT_CURRENCY", "INR")),
		PaymentCallbackURL: os.Getenv("PAYMENT_CALLBACK_URL"),
		PaymentBypass:      boolean("PAYMENT_BYPASS"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     get("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),
		MailFromName: get("MAIL_FROM_NAME", "Storefront"),

		ReconcileInterval: duration("RECONCILE_INTERVAL", time.Minute),
		ReconcileGrace:    duration("RECONCILE_GRACE", 30*time.Minute),
		PaymentLinkTTL:    duration("PAYMENT_LINK_TTL", 24*time.Hour),
		OTPResendCooldown: duration("OTP_RESEND_COOLDOWN", 30*time.Second),
		HTTPClientTimeout: duration("HTTP_CLIENT_TIMEOUT", 5*time.Second),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	var errs []error
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	require("DATABASE_URL", c.DatabaseURL)
	require("MONGO_URI", c.MongoURI)
	require("JWT_SECRET", c.JWTSecret)
	require("ADMIN_KEY", c.AdminKey)
	require("RAZORPAY_WEBHOOK_SECRET", c.WebhookSecret)

	switch c.PaymentGateway {
	case "razorpay":
		if !c.PaymentBypass {
			require("RAZORPAY_KEY_ID", c.RazorpayKeyID)
			require("RAZORPAY_KEY_SECRET", c.RazorpayKeySecret)
			require("PAYMENT_CALLBACK_URL", c.PaymentCallbackURL)
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_GATEWAY %q is not supported (razorpay, mock)", c.PaymentGateway))
	}
	if c.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be positive"))
	}
	if c.PaymentGateway == "razorpay" && c.PaymentLinkTTL < 15*time.Minute {
		errs = append(errs, errors.New("PAYMENT_LINK_TTL must be at least 15m for razorpay"))
	}
	return errors.Join(errs...)
}

// SMTPEnabled reports whether enough mail settings are present to deliver email.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUsername != "" && c.MailFrom != ""
}

func get(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// blueprintDSN assembles a DSN from the BLUEPRINT_DB_* variables when
// DATABASE_URL is not set.
func blueprintDSN() string {
	host := os.Getenv("BLUEPRINT_DB_HOST")
	if host == "" {
		return ""
	}
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("BLUEPRINT_DB_USERNAME"),
		os.Getenv("BLUEPRINT_DB_PASSWORD"),
		host,
		get("BLUEPRINT_DB_PORT", "5432"),
		os.Getenv("BLUEPRINT_DB_DATABASE"),
	)
	if schema := os.Getenv("BLUEPRINT_DB_SCHEMA"); schema != "" {
		dsn += "&search_path=" + schema
	}
	return dsn
}
