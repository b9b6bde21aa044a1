package services_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yashrajoria/restaurant-storefront/clients"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/metrics"
	"github.com/yashrajoria/restaurant-storefront/models"
	"github.com/yashrajoria/restaurant-storefront/services"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- helpers ----

type fakeAPI struct {
	server *httptest.Server
	hits   atomic.Int32
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) client() *clients.APIClient {
	return clients.NewAPIClient(f.server.URL, 5*time.Second)
}

func someItems() []models.CartLineItem {
	return []models.CartLineItem{
		{MenuItemID: 3, Title: "Lemon Dessert", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 2},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ---- tests ----

func TestCreateSession_Success(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/checkout/create-session/", r.URL.Path)
		assert.Equal(t, "Bearer tok_1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{}`, string(body))
		writeJSON(w, http.StatusOK, map[string]string{"id": "cs_test_123"})
	})
	m := metrics.NewNop()
	svc := services.NewCheckoutService(api.client(), m, zap.NewNop())

	session, err := svc.CreateSession(context.Background(), someItems(), "tok_1")

	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", session.ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsCreated.WithLabelValues(metrics.OutcomeSuccess)))
}

func TestCreateSession_CarriesPaymentPageURL(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "cs_test_123", "url": "https://checkout.stripe.com/c/pay/cs_test_123"})
	})
	svc := services.NewCheckoutService(api.client(), metrics.NewNop(), zap.NewNop())

	session, err := svc.CreateSession(context.Background(), someItems(), "tok_1")

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", session.URL)
}

func TestCreateSession_NoCredential_NoNetwork(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	svc := services.NewCheckoutService(api.client(), metrics.NewNop(), zap.NewNop())

	for _, items := range [][]models.CartLineItem{nil, someItems()} {
		_, err := svc.CreateSession(context.Background(), items, "")
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	}
	assert.Equal(t, int32(0), api.hits.Load())
}

func TestCreateSession_EmptyCart_NoNetwork(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	svc := services.NewCheckoutService(api.client(), metrics.NewNop(), zap.NewNop())

	_, err := svc.CreateSession(context.Background(), []models.CartLineItem{}, "tok_1")

	assert.ErrorIs(t, err, apperrors.ErrEmptyCart)
	assert.Equal(t, apperrors.MsgEmptyCart, apperrors.UserMessage(err))
	assert.Equal(t, int32(0), api.hits.Load())
}

func TestCreateSession_ServerErrorMessage(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "card declined"})
	})
	svc := services.NewCheckoutService(api.client(), metrics.NewNop(), zap.NewNop())

	_, err := svc.CreateSession(context.Background(), someItems(), "tok_1")

	assert.ErrorIs(t, err, apperrors.ErrSessionCreationFailed)
	assert.Equal(t, "card declined", apperrors.UserMessage(err))
}

func TestCreateSession_FallbackMessage(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "error status without json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			},
		},
		{
			name: "error status with empty error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "nope"})
			},
		},
		{
			name: "success without id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{})
			},
		},
		{
			name: "success with garbage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t, tt.handler)
			svc := services.NewCheckoutService(api.client(), metrics.NewNop(), zap.NewNop())

			_, err := svc.CreateSession(context.Background(), someItems(), "tok_1")

			assert.ErrorIs(t, err, apperrors.ErrSessionCreationFailed)
			assert.Equal(t, apperrors.MsgSessionCreationFailed, apperrors.UserMessage(err))
		})
	}
}

func TestCreateSession_NetworkFailure(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {})
	client := api.client()
	api.server.Close()
	svc := services.NewCheckoutService(client, metrics.NewNop(), zap.NewNop())

	_, err := svc.CreateSession(context.Background(), someItems(), "tok_1")

	assert.ErrorIs(t, err, apperrors.ErrSessionCreationFailed)
	assert.Equal(t, apperrors.MsgSessionCreationFailed, apperrors.UserMessage(err))
}

func TestCreateSession_DoesNotMutateItems(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "cs_1"})
	})
	svc := services.NewCheckoutService(api.client(), metrics.NewNop(), zap.NewNop())
	items := someItems()
	before := items[0]

	_, err := svc.CreateSession(context.Background(), items, "tok_1")

	require.NoError(t, err)
	assert.Equal(t, before, items[0])
}
