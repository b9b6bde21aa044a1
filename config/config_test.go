package config_test

import (
	"testing"
	"time"

	"github.com/yashrajoria/restaurant-storefront/config"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noEnvFile = "testdata/does-not-exist.env"

func setRequired(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com//")
	t.Setenv("STRIPE_KEY", "pk_test_123")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load(noEnvFile)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, "pk_test_123", cfg.StripeKey)
	assert.Empty(t, cfg.StripeLookupKey)
	assert.Equal(t, 10*time.Second, cfg.HomeRedirectDelay)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.CartTTL)
	assert.Equal(t, "127.0.0.1:5173", cfg.ReturnAddr)
	assert.False(t, cfg.RequirePaidStatus)
}

func TestLoad_MissingAPIURL(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("STRIPE_KEY", "pk_test_123")

	_, err := config.Load(noEnvFile)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.ErrorContains(t, err, "API_URL")
}

func TestLoad_BadAPIURL(t *testing.T) {
	t.Setenv("API_URL", "api.example.com")
	t.Setenv("STRIPE_KEY", "pk_test_123")

	_, err := config.Load(noEnvFile)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestLoad_MissingStripeKey(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com")
	t.Setenv("STRIPE_KEY", "")
	t.Setenv("STRIPE_KEY_SECRET_ID", "")

	_, err := config.Load(noEnvFile)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.ErrorContains(t, err, "STRIPE_KEY")
}

func TestLoad_SecretKeyAsStripeKey(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com")
	t.Setenv("STRIPE_KEY", "rk_test_123")

	_, err := config.Load(noEnvFile)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.ErrorContains(t, err, "STRIPE_RESTRICTED_KEY")
}

func TestLoad_LookupKey(t *testing.T) {
	setRequired(t)
	t.Setenv("STRIPE_RESTRICTED_KEY", "rk_test_456")
	t.Setenv("STRIPE_KEY_SECRET_ID", "storefront/stripe")

	cfg, err := config.Load(noEnvFile)
	require.NoError(t, err)
	assert.Equal(t, "pk_test_123", cfg.StripeKey)
	assert.Equal(t, "rk_test_456", cfg.StripeLookupKey)
	assert.Equal(t, "storefront/stripe", cfg.StripeKeySecretID)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HOME_REDIRECT_DELAY", "3s")
	t.Setenv("REQUIRE_PAID_STATUS", "true")

	cfg, err := config.Load(noEnvFile)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.HomeRedirectDelay)
	assert.True(t, cfg.RequirePaidStatus)
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := config.Load(noEnvFile)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.ErrorContains(t, err, "REQUEST_TIMEOUT")
}
