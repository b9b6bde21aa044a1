package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/metrics"
	"github.com/yashrajoria/restaurant-storefront/models"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"go.uber.org/zap"
)

// Redirector hands a checkout session over to the payment gateway.
type Redirector interface {
	Redirect(ctx context.Context, session models.CheckoutSession) error
}

type checkoutSessionGetter interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeRedirector opens the hosted checkout page of a session in the
// user's browser, which then belongs to Stripe until it comes back on the
// return URL.
//
// The page URL normally arrives with the create-session response. Stripe
// only hands out the URL of an existing session to a secret or restricted
// key, so the lookup is used when such a key was configured and the
// backend left the URL out.
type StripeRedirector struct {
	sessions checkoutSessionGetter // nil without a lookup key
	opener   BrowserOpener
	metrics  *metrics.CheckoutMetrics
	logger   *zap.Logger
}

// NewStripeRedirector validates the publishable key and, when lookupKey is
// set, builds the session lookup client with it. Malformed keys fail with
// GatewayInitFailed.
func NewStripeRedirector(publishableKey, lookupKey string, opener BrowserOpener, m *metrics.CheckoutMetrics, logger *zap.Logger) (*StripeRedirector, error) {
	mode, err := keyMode(publishableKey, "pk_")
	if err != nil {
		return nil, apperrors.GatewayInitFailed(fmt.Errorf("publishable key: %w", err))
	}
	if lookupKey == "" {
		return newStripeRedirector(nil, opener, m, logger), nil
	}

	lookupMode, err := keyMode(lookupKey, "rk_", "sk_")
	if err != nil {
		return nil, apperrors.GatewayInitFailed(fmt.Errorf("lookup key: %w", err))
	}
	if lookupMode != mode {
		return nil, apperrors.GatewayInitFailed(fmt.Errorf("publishable key is %s mode but lookup key is %s mode", mode, lookupMode))
	}
	return newStripeRedirector(client.New(lookupKey, nil).CheckoutSessions, opener, m, logger), nil
}

func newStripeRedirector(sessions checkoutSessionGetter, opener BrowserOpener, m *metrics.CheckoutMetrics, logger *zap.Logger) *StripeRedirector {
	return &StripeRedirector{sessions: sessions, opener: opener, metrics: m, logger: logger}
}

// keyMode returns "test" or "live" for a key that carries one of prefixes.
func keyMode(key string, prefixes ...string) (string, error) {
	if key == "" {
		return "", errors.New("key is empty")
	}
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(key, p)
		if !ok {
			continue
		}
		for _, mode := range []string{"test", "live"} {
			if tail, ok := strings.CutPrefix(rest, mode+"_"); ok && tail != "" {
				return mode, nil
			}
		}
		return "", fmt.Errorf("key %s... has no test or live mode", p)
	}
	return "", fmt.Errorf("key must start with one of %s", strings.Join(prefixes, ", "))
}

func (r *StripeRedirector) Redirect(ctx context.Context, session models.CheckoutSession) error {
	if session.ID == "" {
		return r.fail(apperrors.RedirectFailed("Checkout session id is empty.", nil))
	}

	pageURL := session.URL
	if pageURL == "" {
		if r.sessions == nil {
			return r.fail(apperrors.RedirectFailed("Checkout session has no payment page.",
				fmt.Errorf("session %s came without a url and no lookup key is configured", session.ID)))
		}
		var err error
		if pageURL, err = r.lookup(ctx, session.ID); err != nil {
			return r.fail(err)
		}
	}
	if err := checkPageURL(pageURL); err != nil {
		return r.fail(apperrors.RedirectFailed("", fmt.Errorf("session %s: %w", session.ID, err)))
	}

	if err := r.opener.Open(pageURL); err != nil {
		r.logger.Warn("Failed to open browser", zap.String("session_id", session.ID), zap.Error(err))
		return r.fail(apperrors.RedirectFailed("Could not open the payment page. Visit: "+pageURL, err))
	}

	r.logger.Info("Redirected to Stripe checkout", zap.String("session_id", session.ID))
	r.metrics.Redirects.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return nil
}

func (r *StripeRedirector) lookup(ctx context.Context, sessionID string) (string, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := r.sessions.Get(sessionID, params)
	if err != nil {
		r.logger.Warn("Stripe checkout session lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		return "", apperrors.RedirectFailed(stripeMessage(err), err)
	}
	if sess.URL == "" {
		return "", apperrors.RedirectFailed("Checkout session is no longer open.", fmt.Errorf("session %s status %q has no url", sessionID, sess.Status))
	}
	return sess.URL, nil
}

func (r *StripeRedirector) fail(err error) error {
	r.metrics.Redirects.WithLabelValues(metrics.OutcomeFailure).Inc()
	return err
}

func checkPageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid payment page url: %w", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("payment page url %q is not an https url", raw)
	}
	return nil
}

func stripeMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return ""
}
