package services_test

import (
	"context"
	"testing"

	"github.com/yashrajoria/restaurant-storefront/auth"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/models"
	"github.com/yashrajoria/restaurant-storefront/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- mocks ----

type mockCreator struct {
	session    models.CheckoutSession
	err        error
	credential string
	calls      int
}

func (m *mockCreator) CreateSession(_ context.Context, _ []models.CartLineItem, credential string) (models.CheckoutSession, error) {
	m.calls++
	m.credential = credential
	return m.session, m.err
}

type mockRedirector struct {
	err     error
	session models.CheckoutSession
	calls   int
}

func (m *mockRedirector) Redirect(_ context.Context, session models.CheckoutSession) error {
	m.calls++
	m.session = session
	return m.err
}

func TestCheckoutFlow_HandsSessionToGateway(t *testing.T) {
	creator := &mockCreator{session: models.CheckoutSession{ID: "cs_9", URL: "https://checkout.stripe.com/c/pay/cs_9"}}
	redirector := &mockRedirector{}
	flow := services.NewCheckoutFlow(creator, redirector, auth.NewTokenStore("tok"))

	session, err := flow.Start(context.Background(), someItems())

	require.NoError(t, err)
	assert.Equal(t, "cs_9", session.ID)
	assert.Equal(t, "tok", creator.credential)
	assert.Equal(t, creator.session, redirector.session)
}

func TestCheckoutFlow_CreationFailureSkipsRedirect(t *testing.T) {
	creator := &mockCreator{err: apperrors.Unauthenticated()}
	redirector := &mockRedirector{}
	flow := services.NewCheckoutFlow(creator, redirector, auth.NewTokenStore(""))

	_, err := flow.Start(context.Background(), someItems())

	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.Equal(t, "", creator.credential)
	assert.Equal(t, 0, redirector.calls)
}

func TestCheckoutFlow_RedirectFailure(t *testing.T) {
	creator := &mockCreator{session: models.CheckoutSession{ID: "cs_9"}}
	redirector := &mockRedirector{err: apperrors.RedirectFailed("boom", nil)}
	flow := services.NewCheckoutFlow(creator, redirector, auth.NewTokenStore("tok"))

	session, err := flow.Start(context.Background(), someItems())

	assert.ErrorIs(t, err, apperrors.ErrRedirectFailed)
	assert.Equal(t, "cs_9", session.ID)
}
