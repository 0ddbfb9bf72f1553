package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storefrontEnv = []string{
	"STOREFRONT_APP_ENV",
	"STOREFRONT_APP_PORT",
	"STOREFRONT_API_BASE_URL",
	"STOREFRONT_API_TIMEOUT",
	"STOREFRONT_STORAGE_BACKEND",
	"STOREFRONT_PAYMENT_KEY_ID",
	"STOREFRONT_PAYMENT_CURRENCY",
	"STOREFRONT_PAYMENT_SANDBOX_SECRET",
	"STOREFRONT_CHECKOUT_JOURNAL_DRIVER",
	"STOREFRONT_CHECKOUT_JOURNAL_DSN",
	"STOREFRONT_TELEMETRY_SAMPLING_RATIO",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range storefrontEnv {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "storefront", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "http://localhost:8080", cfg.API.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.Equal(t, StorageFile, cfg.Storage.Backend)
		assert.Equal(t, "./.storefront/localstorage.json", cfg.Storage.Path)
		assert.Equal(t, "INR", cfg.Payment.Currency)
		assert.Equal(t, JournalSQLite, cfg.Checkout.JournalDriver)
		assert.NotEmpty(t, cfg.Checkout.JournalDSN)
		assert.Equal(t, 3*time.Second, cfg.Guard.PendingTimeout)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	})

	t.Run("loads values from environment variables with STOREFRONT prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_APP_PORT", "9000")
		t.Setenv("STOREFRONT_API_BASE_URL", "https://api.shop.test")
		t.Setenv("STOREFRONT_API_TIMEOUT", "5s")
		t.Setenv("STOREFRONT_STORAGE_BACKEND", "memory")
		t.Setenv("STOREFRONT_PAYMENT_CURRENCY", "USD")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "https://api.shop.test", cfg.API.BaseURL)
		assert.Equal(t, 5*time.Second, cfg.API.Timeout)
		assert.Equal(t, StorageMemory, cfg.Storage.Backend)
		assert.Equal(t, "USD", cfg.Payment.Currency)
	})

	t.Run("rejects unknown storage backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_STORAGE_BACKEND", "indexeddb")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.backend")
	})

	t.Run("rejects relative base url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_API_BASE_URL", "/api")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api.base_url")
	})

	t.Run("postgres journal needs a dsn", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_CHECKOUT_JOURNAL_DRIVER", "postgres")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "journal_dsn")
	})

	t.Run("production requires a payment key and no sandbox", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "payment.key_id")

		t.Setenv("STOREFRONT_PAYMENT_KEY_ID", "rzp_live_x")
		t.Setenv("STOREFRONT_PAYMENT_SANDBOX_SECRET", "secret")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox_secret")
	})

	t.Run("sampling ratio out of range", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
