package services

import (
	"context"

	"github.com/yashrajoria/restaurant-storefront/auth"
	"github.com/yashrajoria/restaurant-storefront/models"
)

// CheckoutFlow creates a session and hands it to the gateway. It never
// touches the cart: the cart is only reset once the payment is confirmed.
type CheckoutFlow struct {
	creator    SessionCreator
	redirector Redirector
	creds      auth.CredentialProvider
}

func NewCheckoutFlow(creator SessionCreator, redirector Redirector, creds auth.CredentialProvider) *CheckoutFlow {
	return &CheckoutFlow{creator: creator, redirector: redirector, creds: creds}
}

func (f *CheckoutFlow) Start(ctx context.Context, items []models.CartLineItem) (models.CheckoutSession, error) {
	token, _ := f.creds.Credential()

	session, err := f.creator.CreateSession(ctx, items, token)
	if err != nil {
		return models.CheckoutSession{}, err
	}
	if err := f.redirector.Redirect(ctx, session); err != nil {
		return session, err
	}
	return session, nil
}
