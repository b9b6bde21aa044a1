package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yashrajoria/restaurant-storefront/auth"

	"github.com/google/uuid"
)

const (
	maxErrorBody   = 64 << 10
	maxSuccessBody = 4 << 20
)

// ErrBodyTooLarge is returned when a successful response exceeds
// maxSuccessBody. Truncating it would only turn a valid record into a
// malformed one.
var ErrBodyTooLarge = errors.New("response body too large")

// APIClient is a thin client for the restaurant API. It only builds and
// sends requests; interpreting responses is up to the callers.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewAPIClientWithHTTP lets callers supply their own transport.
func NewAPIClientWithHTTP(baseURL string, client *http.Client) *APIClient {
	return &APIClient{baseURL: baseURL, client: client}
}

func (a *APIClient) BaseURL() string {
	return a.baseURL
}

// Do sends an authenticated JSON request. ctx cancellation aborts the
// request, including a response body still being read.
func (a *APIClient) Do(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, BodyFromBytes(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", auth.BearerHeader(token))
	}

	return a.client.Do(req)
}

// ReadBody drains and closes resp.Body. Error payloads are cut at
// maxErrorBody; successful ones are read whole up to maxSuccessBody.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	if !IsSuccess(resp) {
		return io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSuccessBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxSuccessBody {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxSuccessBody)
	}
	return body, nil
}

func BodyFromBytes(b []byte) io.Reader {
	if len(b) == 0 {
		return nil
	}
	return bytes.NewReader(b)
}

// IsSuccess reports a 2xx status.
func IsSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
