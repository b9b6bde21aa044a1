package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yashrajoria/restaurant-storefront/clients"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/metrics"
	"github.com/yashrajoria/restaurant-storefront/models"

	"go.uber.org/zap"
)

const sessionPath = "/api/checkout/session/"

// paid statuses reported by Stripe checkout sessions
var settledStatuses = map[string]bool{
	"paid":                true,
	"no_payment_required": true,
}

// PaymentFetcher resolves a session id into the confirmed payment record.
// A cancelled ctx yields an error for which errors.Is(err, context.Canceled) holds.
type PaymentFetcher interface {
	FetchPayment(ctx context.Context, sessionID, credential string) (models.ConfirmedPayment, error)
}

type SessionFetcher struct {
	api         *clients.APIClient
	requirePaid bool
	metrics     *metrics.CheckoutMetrics
	logger      *zap.Logger
}

// NewSessionFetcher builds the fetcher. With requirePaid, a record whose
// payment_status is present and not settled fails with PaymentIncomplete.
func NewSessionFetcher(api *clients.APIClient, requirePaid bool, m *metrics.CheckoutMetrics, logger *zap.Logger) *SessionFetcher {
	return &SessionFetcher{api: api, requirePaid: requirePaid, metrics: m, logger: logger}
}

func (f *SessionFetcher) FetchPayment(ctx context.Context, sessionID, credential string) (models.ConfirmedPayment, error) {
	if sessionID == "" {
		return models.ConfirmedPayment{}, apperrors.MissingSession()
	}
	if credential == "" {
		return models.ConfirmedPayment{}, apperrors.Unauthenticated()
	}

	start := time.Now()
	resp, err := f.api.Do(ctx, http.MethodGet, sessionPath+url.PathEscape(sessionID), credential, nil)
	f.metrics.RequestLatency.WithLabelValues("get_session").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return models.ConfirmedPayment{}, f.transportError(ctx, err)
	}

	body, err := clients.ReadBody(resp)
	if err != nil {
		return models.ConfirmedPayment{}, f.transportError(ctx, err)
	}

	if !clients.IsSuccess(resp) {
		f.logger.Warn("Checkout session fetch rejected",
			zap.String("session_id", sessionID),
			zap.Int("status", resp.StatusCode),
		)
		return models.ConfirmedPayment{}, apperrors.FetchFailed(strings.TrimSpace(string(body)), &statusError{code: resp.StatusCode})
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return models.ConfirmedPayment{}, apperrors.MalformedResponse(truncate(string(body)), nil)
	}

	payment, err := decodePayment(body)
	if err != nil {
		f.logger.Warn("Checkout session payload malformed", zap.String("session_id", sessionID), zap.Error(err))
		return models.ConfirmedPayment{}, apperrors.MalformedResponse(truncate(string(body)), err)
	}

	if f.requirePaid && payment.PaymentStatus != "" && !settledStatuses[payment.PaymentStatus] {
		return models.ConfirmedPayment{}, apperrors.PaymentIncomplete(payment.PaymentStatus)
	}

	return payment, nil
}

func (f *SessionFetcher) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	f.logger.Warn("Checkout session fetch failed", zap.Error(err))
	return apperrors.FetchFailed("", err)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// decodePayment accepts only a JSON object carrying an id.
func decodePayment(body []byte) (models.ConfirmedPayment, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return models.ConfirmedPayment{}, errors.New("payload is not a JSON object")
	}
	var payment models.ConfirmedPayment
	if err := json.Unmarshal(trimmed, &payment); err != nil {
		return models.ConfirmedPayment{}, err
	}
	if payment.ID == "" {
		return models.ConfirmedPayment{}, errors.New("payload has no id")
	}
	return payment, nil
}

// truncate shortens s to at most 200 bytes without splitting a rune.
func truncate(s string) string {
	const limit = 200
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
