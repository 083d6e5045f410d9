package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/shop?sslmode=disable")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_KEY", "admin")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "whsec")
	t.Setenv("PAYMENT_GATEWAY", "mock")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "INR", cfg.PaymentCurrency)
	assert.Equal(t, "storefront", cfg.MongoDatabase)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 30*time.Minute, cfg.ReconcileGrace)
	assert.Equal(t, 24*time.Hour, cfg.PaymentLinkTTL)
	assert.False(t, cfg.PaymentBypass)
	assert.False(t, cfg.SMTPEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvParsesValues(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_BYPASS", "true")
	t.Setenv("RECONCILE_INTERVAL", "15s")
	t.Setenv("CORS_ORIGINS", "https://shop.test, https://admin.shop.test ,")
	t.Setenv("PAYMENT_CURRENCY", "usd")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.PaymentBypass)
	assert.Equal(t, 15*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, []string{"https://shop.test", "https://admin.shop.test"}, cfg.CORSOrigins)
	assert.Equal(t, "USD", cfg.PaymentCurrency)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("PAYMENT_BYPASS", "maybe")
	t.Setenv("RECONCILE_GRACE", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_BYPASS")
	assert.Contains(t, err.Error(), "RECONCILE_GRACE")
}

func TestValidateRazorpayNeedsKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_GATEWAY", "razorpay")

	cfg, err := FromEnv()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAZORPAY_KEY_ID")
	assert.Contains(t, err.Error(), "PAYMENT_CALLBACK_URL")

	cfg.PaymentBypass = true
	assert.NoError(t, cfg.Validate())
}

func TestValidateMissingSecrets(t *testing.T) {
	cfg := &Config{PaymentGateway: "mock", ReconcileInterval: time.Minute}
	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{"DATABASE_URL", "MONGO_URI", "JWT_SECRET", "ADMIN_KEY", "RAZORPAY_WEBHOOK_SECRET"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestBlueprintDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BLUEPRINT_DB_HOST", "db")
	t.Setenv("BLUEPRINT_DB_USERNAME", "shop")
	t.Setenv("BLUEPRINT_DB_PASSWORD", "pw")
	t.Setenv("BLUEPRINT_DB_DATABASE", "storefront")
	t.Setenv("BLUEPRINT_DB_SCHEMA", "public")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://shop:pw@db:5432/storefront?sslmode=disable&search_path=public", cfg.DatabaseURL)
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ADMIN_KEY=from-file\n"), 0o600))
	t.Setenv("ADMIN_KEY", "")
	require.NoError(t, os.Unsetenv("ADMIN_KEY"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AdminKey)
	t.Cleanup(func() { _ = os.Unsetenv("ADMIN_KEY") })

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidateRejectsShortRazorpayLinkTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_GATEWAY", "razorpay")
	t.Setenv("RAZORPAY_KEY_ID", "key")
	t.Setenv("RAZORPAY_KEY_SECRET", "secret")
	t.Setenv("PAYMENT_CALLBACK_URL", "https://shop.test/success")
	t.Setenv("PAYMENT_LINK_TTL", "5m")

	cfg, err := FromEnv()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_LINK_TTL")
}
