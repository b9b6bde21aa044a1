package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/yashrajoria/restaurant-storefront/errors"

	"github.com/joho/godotenv"
)

type Config struct {
	Env               string
	APIURL            string
	StripeKey         string // publishable key
	StripeLookupKey   string // optional restricted key for session lookups
	StripeKeySecretID string // AWS Secrets Manager secret holding the lookup key
	AccessToken       string
	UserID            string
	RedisURL          string
	CartTTL           time.Duration
	ReturnAddr        string
	HomeRedirectDelay time.Duration
	RequestTimeout    time.Duration
	RequirePaidStatus bool
	LogFile           string
}

// Load reads an optional .env file and then the environment. It fails fast
// when a required setting is missing instead of letting the first network
// call fail with a less useful error.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env is fine, the environment may carry everything
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		APIURL:            strings.TrimRight(strings.TrimSpace(os.Getenv("API_URL")), "/"),
		StripeKey:         strings.TrimSpace(os.Getenv("STRIPE_KEY")),
		StripeLookupKey:   strings.TrimSpace(os.Getenv("STRIPE_RESTRICTED_KEY")),
		StripeKeySecretID: os.Getenv("STRIPE_KEY_SECRET_ID"),
		AccessToken:       strings.TrimSpace(os.Getenv("ACCESS_TOKEN")),
		UserID:            getEnv("USER_ID", "local"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ReturnAddr:        getEnv("RETURN_ADDR", "127.0.0.1:5173"),
		LogFile:           getEnv("LOG_FILE", "storefront.log"),
	}

	var err error
	if cfg.CartTTL, err = getDuration("CART_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.HomeRedirectDelay, err = getDuration("HOME_REDIRECT_DELAY", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequirePaidStatus, err = getBool("REQUIRE_PAID_STATUS", false); err != nil {
		return nil, err
	}

	if cfg.APIURL == "" {
		return nil, apperrors.Configuration("API_URL is not set")
	}
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return nil, apperrors.Configuration("API_URL must start with http:// or https://, got %q", cfg.APIURL)
	}
	if cfg.StripeKey == "" {
		return nil, apperrors.Configuration("STRIPE_KEY is not set")
	}
	if !strings.HasPrefix(cfg.StripeKey, "pk_") {
		return nil, apperrors.Configuration("STRIPE_KEY must be a publishable key (pk_...); put a restricted key in STRIPE_RESTRICTED_KEY")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return 0, apperrors.Configuration("%s must be a non-negative duration, got %q", key, val)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, apperrors.Configuration("%s must be true or false, got %q", key, val)
	}
	return b, nil
}
