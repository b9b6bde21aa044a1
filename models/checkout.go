package models

// CheckoutSession is the handle returned by the create-session endpoint.
// URL is the hosted payment page when the backend includes it.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

type CustomerDetails struct {
	Email string `json:"email"`
}

// ConfirmedPayment is the session record shown on the confirmation screen.
type ConfirmedPayment struct {
	ID              string          `json:"id"`
	AmountTotal     int64           `json:"amount_total"` // minor currency unit
	Currency        string          `json:"currency"`
	CustomerDetails CustomerDetails `json:"customer_details"`
	PaymentStatus   string          `json:"payment_status,omitempty"`
}

func (p ConfirmedPayment) CustomerEmail() string {
	return p.CustomerDetails.Email
}

// APIError is the error body the restaurant API returns on failures.
type APIError struct {
	Error string `json:"error"`
}
