package services

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/yashrajoria/restaurant-storefront/clients"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/metrics"
	"github.com/yashrajoria/restaurant-storefront/models"

	"go.uber.org/zap"
)

const createSessionPath = "/api/checkout/create-session/"

// SessionCreator asks the restaurant API for a payment session.
type SessionCreator interface {
	CreateSession(ctx context.Context, items []models.CartLineItem, credential string) (models.CheckoutSession, error)
}

type CheckoutService struct {
	api     *clients.APIClient
	metrics *metrics.CheckoutMetrics
	logger  *zap.Logger
}

func NewCheckoutService(api *clients.APIClient, m *metrics.CheckoutMetrics, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{api: api, metrics: m, logger: logger}
}

// CreateSession creates a checkout session for the authenticated user's
// server-side cart. items are only checked for emptiness: the server
// computes the amount actually charged.
func (s *CheckoutService) CreateSession(ctx context.Context, items []models.CartLineItem, credential string) (models.CheckoutSession, error) {
	if credential == "" {
		s.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeFailure).Inc()
		return models.CheckoutSession{}, apperrors.Unauthenticated()
	}
	if len(items) == 0 {
		s.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeFailure).Inc()
		return models.CheckoutSession{}, apperrors.EmptyCart()
	}

	start := time.Now()
	resp, err := s.api.Do(ctx, http.MethodPost, createSessionPath, credential, []byte("{}"))
	s.metrics.RequestLatency.WithLabelValues("create_session").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		if ctx.Err() != nil {
			s.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeCanceled).Inc()
			return models.CheckoutSession{}, ctx.Err()
		}
		s.logger.Warn("Create checkout session request failed", zap.Error(err))
		s.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeFailure).Inc()
		return models.CheckoutSession{}, apperrors.SessionCreationFailed("", err)
	}

	body, err := clients.ReadBody(resp)
	if err != nil {
		s.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeFailure).Inc()
		return models.CheckoutSession{}, apperrors.SessionCreationFailed("", err)
	}

	if !clients.IsSuccess(resp) {
		var apiErr models.APIError
		_ = json.Unmarshal(body, &apiErr)
		s.logger.Warn("Create checkout session rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("error", apiErr.Error),
		)
		s.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeFailure).Inc()
		return models.CheckoutSession{}, apperrors.SessionCreationFailed(apiErr.Error, &statusError{code: resp.StatusCode})
	}

	var session models.CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil || session.ID == "" {
		s.logger.Warn("Create checkout session returned no id", zap.Int("status", resp.StatusCode), zap.Error(err))
		s.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeFailure).Inc()
		return models.CheckoutSession{}, apperrors.SessionCreationFailed("", err)
	}

	s.logger.Info("Checkout session created", zap.String("session_id", session.ID), zap.Int("items", len(items)))
	s.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return session, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status " + http.StatusText(e.code)
}
