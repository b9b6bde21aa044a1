package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Kind classifies a checkout failure so the UI can pick a message and the
// confirmation flow can pick a terminal reason.
type Kind string

const (
	KindUnauthenticated       Kind = "unauthenticated"
	KindEmptyCart             Kind = "empty_cart"
	KindSessionCreationFailed Kind = "session_creation_failed"
	KindGatewayInitFailed     Kind = "gateway_init_failed"
	KindRedirectFailed        Kind = "redirect_failed"
	KindMissingSession        Kind = "missing_session"
	KindFetchFailed           Kind = "fetch_failed"
	KindMalformedResponse     Kind = "malformed_response"
	KindPaymentIncomplete     Kind = "payment_incomplete"
	KindConfiguration         Kind = "configuration"
	KindInvalidItem           Kind = "invalid_item"
)

// User facing fallbacks. Raw transport errors never reach the screen.
const (
	MsgUnauthenticated       = "You are not authenticated."
	MsgEmptyCart             = "Your cart is currently empty."
	MsgSessionCreationFailed = "Failed to create checkout session."
	MsgGatewayInitFailed     = "Failed to initialize Stripe."
	MsgRedirectFailed        = "Unexpected error."
	MsgMissingSession        = "No payment session found."
	MsgFetchFailed           = "Failed to load payment details."
	MsgPaymentIncomplete     = "Payment has not been completed."
)

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, ErrEmptyCart) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Sentinels for errors.Is comparisons. Never mutate them.
var (
	ErrUnauthenticated       = New(KindUnauthenticated, MsgUnauthenticated, nil)
	ErrEmptyCart             = New(KindEmptyCart, MsgEmptyCart, nil)
	ErrSessionCreationFailed = New(KindSessionCreationFailed, MsgSessionCreationFailed, nil)
	ErrGatewayInitFailed     = New(KindGatewayInitFailed, MsgGatewayInitFailed, nil)
	ErrRedirectFailed        = New(KindRedirectFailed, MsgRedirectFailed, nil)
	ErrMissingSession        = New(KindMissingSession, MsgMissingSession, nil)
	ErrFetchFailed           = New(KindFetchFailed, MsgFetchFailed, nil)
	ErrMalformedResponse     = New(KindMalformedResponse, "Unexpected response.", nil)
	ErrPaymentIncomplete     = New(KindPaymentIncomplete, MsgPaymentIncomplete, nil)
	ErrConfiguration         = New(KindConfiguration, "Invalid configuration.", nil)
	ErrInvalidItem           = New(KindInvalidItem, "Invalid cart item.", nil)
)

func Unauthenticated() *Error { return New(KindUnauthenticated, MsgUnauthenticated, nil) }

func EmptyCart() *Error { return New(KindEmptyCart, MsgEmptyCart, nil) }

// SessionCreationFailed uses the server-provided message when there is one.
func SessionCreationFailed(message string, cause error) *Error {
	if message == "" {
		message = MsgSessionCreationFailed
	}
	return New(KindSessionCreationFailed, message, cause)
}

func GatewayInitFailed(cause error) *Error {
	return New(KindGatewayInitFailed, MsgGatewayInitFailed, cause)
}

func RedirectFailed(message string, cause error) *Error {
	if message == "" {
		message = MsgRedirectFailed
	}
	return New(KindRedirectFailed, message, cause)
}

func MissingSession() *Error { return New(KindMissingSession, MsgMissingSession, nil) }

// FetchFailed carries the response body of a non-success confirmation fetch.
func FetchFailed(detail string, cause error) *Error {
	if detail == "" {
		return New(KindFetchFailed, MsgFetchFailed, cause)
	}
	return New(KindFetchFailed, "Error: "+detail, cause)
}

func MalformedResponse(payload string, cause error) *Error {
	return New(KindMalformedResponse, "Unexpected response: "+payload, cause)
}

func PaymentIncomplete(status string) *Error {
	return New(KindPaymentIncomplete, fmt.Sprintf("%s (status: %s)", MsgPaymentIncomplete, status), nil)
}

// Configuration names the missing or invalid setting.
func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, fmt.Sprintf(format, args...), nil)
}

func InvalidItem(cause error) *Error {
	return New(KindInvalidItem, "Invalid cart item.", cause)
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// UserMessage is what the screen shows for err. Anything that is not an
// *Error collapses to a generic message.
func UserMessage(err error) string {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return "Unexpected error."
}
