package confirmation_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yashrajoria/restaurant-storefront/auth"
	"github.com/yashrajoria/restaurant-storefront/cart"
	"github.com/yashrajoria/restaurant-storefront/confirmation"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/metrics"
	"github.com/yashrajoria/restaurant-storefront/models"
	"github.com/yashrajoria/restaurant-storefront/money"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---- fakes ----

type fetchResult struct {
	payment models.ConfirmedPayment
	err     error
}

// mockFetcher blocks every call until the test releases it or ctx ends.
type mockFetcher struct {
	calls   atomic.Int32
	started chan string
	results chan fetchResult
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		started: make(chan string, 8),
		results: make(chan fetchResult, 8),
	}
}

func (m *mockFetcher) FetchPayment(ctx context.Context, sessionID, credential string) (models.ConfirmedPayment, error) {
	m.calls.Add(1)
	m.started <- sessionID
	select {
	case r := <-m.results:
		return r.payment, r.err
	case <-ctx.Done():
		return models.ConfirmedPayment{}, ctx.Err()
	}
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool { return !t.stopped.Swap(true) }

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) confirmation.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fireAll runs every timer that has not been stopped, as if time passed.
func (c *fakeClock) fireAll() {
	c.mu.Lock()
	timers := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped.Load() {
			t.f()
		}
	}
}

func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped.Load() {
			out = append(out, t)
		}
	}
	return out
}

type harness struct {
	view    *confirmation.View
	fetcher *mockFetcher
	clock   *fakeClock
	store   *cart.Store
	creds   *auth.TokenStore
	metrics *metrics.CheckoutMetrics
	navs    atomic.Int32
	resets  atomic.Int32
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	h := &harness{
		fetcher: newMockFetcher(),
		clock:   &fakeClock{},
		store:   cart.NewStore(),
		creds:   auth.NewTokenStore(token),
		metrics: metrics.NewNop(),
	}
	_, err := h.store.Add(models.CartLineItem{MenuItemID: 1, Title: "Pasta", UnitPrice: decimal.RequireFromString("12.50"), Quantity: 2})
	require.NoError(t, err)
	h.store.Subscribe(func(s cart.Snapshot) {
		if s.Empty() {
			h.resets.Add(1)
		}
	})

	h.view = confirmation.NewView(h.fetcher, h.creds, h.store, confirmation.NavigatorFunc(func() {
		h.navs.Add(1)
	}), confirmation.Options{
		AfterFunc: h.clock.AfterFunc,
		Metrics:   h.metrics,
	})
	t.Cleanup(func() {
		h.view.Teardown()
		h.view.Wait()
	})
	return h
}

func (h *harness) awaitFetch(t *testing.T) string {
	t.Helper()
	select {
	case id := <-h.fetcher.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("fetch was not started")
		return ""
	}
}

func (h *harness) awaitPhase(t *testing.T, phase confirmation.Phase) confirmation.State {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.view.State().Phase == phase
	}, 2*time.Second, 5*time.Millisecond)
	return h.view.State()
}

var confirmed = models.ConfirmedPayment{
	ID:              "sess_123",
	AmountTotal:     4599,
	Currency:        "usd",
	CustomerDetails: models.CustomerDetails{Email: "a@b.com"},
}

// ---- tests ----

func TestView_ConfirmsResetsCartAndGoesHome(t *testing.T) {
	h := newHarness(t, "tok_1")

	h.view.Mount("sess_123")
	assert.Equal(t, "sess_123", h.awaitFetch(t))
	h.fetcher.results <- fetchResult{payment: confirmed}

	s := h.awaitPhase(t, confirmation.PhaseConfirmed)
	assert.Equal(t, "a@b.com", s.Payment.CustomerEmail())
	assert.Equal(t, "$45.99", money.FormatMinor(s.Payment.AmountTotal, s.Payment.Currency))
	assert.True(t, h.store.Snapshot().Empty())
	assert.Equal(t, int32(1), h.resets.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.CartResets))

	timers := h.clock.pending()
	require.Len(t, timers, 1)
	assert.Equal(t, 10*time.Second, timers[0].d)
	assert.Equal(t, int32(0), h.navs.Load())

	h.clock.fireAll()
	assert.Equal(t, int32(1), h.navs.Load())
}

func TestView_RemountWhileConfirmedDoesNotResetAgain(t *testing.T) {
	h := newHarness(t, "tok_1")

	h.view.Mount("sess_123")
	h.awaitFetch(t)
	h.fetcher.results <- fetchResult{payment: confirmed}
	h.awaitPhase(t, confirmation.PhaseConfirmed)

	h.view.Mount("sess_123")
	h.view.Mount("sess_123")

	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.Equal(t, int32(1), h.resets.Load())
	assert.Equal(t, confirmation.PhaseConfirmed, h.view.State().Phase)
}

func TestView_TeardownBeforeResolveDropsResult(t *testing.T) {
	h := newHarness(t, "tok_1")
	_, err := h.store.Add(models.CartLineItem{MenuItemID: 2, Title: "Soup", UnitPrice: decimal.RequireFromString("4"), Quantity: 1})
	require.NoError(t, err)

	h.view.Mount("sess_123")
	h.awaitFetch(t)
	h.view.Teardown()
	h.view.Wait()

	s := h.view.State()
	assert.Equal(t, confirmation.PhaseLoading, s.Phase)
	assert.False(t, s.Active)
	assert.Len(t, h.store.Items(), 2)
	assert.Equal(t, int32(0), h.resets.Load())
	assert.Empty(t, h.clock.pending())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Confirmations.WithLabelValues(metrics.OutcomeCanceled, "")))
}

func TestView_MissingSessionFailsWithoutNetwork(t *testing.T) {
	h := newHarness(t, "tok_1")

	h.view.Mount("")

	s := h.view.State()
	assert.Equal(t, confirmation.PhaseFailed, s.Phase)
	assert.Equal(t, apperrors.KindMissingSession, s.Reason())
	assert.Equal(t, "No payment session found.", s.Err.Message)
	assert.Equal(t, int32(0), h.fetcher.calls.Load())
	assert.False(t, h.store.Snapshot().Empty())
}

func TestView_UnauthenticatedThenLogin(t *testing.T) {
	h := newHarness(t, "")

	h.view.Mount("sess_123")
	assert.Equal(t, apperrors.KindUnauthenticated, h.view.State().Reason())
	assert.Equal(t, int32(0), h.fetcher.calls.Load())

	h.creds.Set("tok_1")
	h.view.Mount("sess_123")
	h.awaitFetch(t)
	h.fetcher.results <- fetchResult{payment: confirmed}

	h.awaitPhase(t, confirmation.PhaseConfirmed)
}

func TestView_FetchFailureKeepsCart(t *testing.T) {
	h := newHarness(t, "tok_1")

	h.view.Mount("sess_404")
	h.awaitFetch(t)
	h.fetcher.results <- fetchResult{err: apperrors.FetchFailed("Session not found", nil)}

	s := h.awaitPhase(t, confirmation.PhaseFailed)
	assert.Equal(t, "Error: Session not found", s.Err.Message)
	assert.False(t, h.store.Snapshot().Empty())
	assert.Empty(t, h.clock.pending())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Confirmations.WithLabelValues(metrics.OutcomeFailure, string(apperrors.KindFetchFailed))))
}

func TestView_ManualReturnHomeCancelsTimer(t *testing.T) {
	h := newHarness(t, "tok_1")

	h.view.Mount("sess_123")
	h.awaitFetch(t)
	h.fetcher.results <- fetchResult{payment: confirmed}
	h.awaitPhase(t, confirmation.PhaseConfirmed)

	h.view.RequestHome()
	assert.Equal(t, int32(1), h.navs.Load())
	assert.Empty(t, h.clock.pending())

	h.clock.fireAll()
	assert.Equal(t, int32(1), h.navs.Load())
}

func TestView_ListenersSeeOrderedUpdates(t *testing.T) {
	h := newHarness(t, "tok_1")
	var mu sync.Mutex
	var phases []confirmation.Phase
	var last uint64
	h.view.OnChange(func(u confirmation.Update) {
		mu.Lock()
		defer mu.Unlock()
		assert.Greater(t, u.Seq, last)
		last = u.Seq
		phases = append(phases, u.State.Phase)
	})

	h.view.Mount("sess_123")
	h.awaitFetch(t)
	h.fetcher.results <- fetchResult{payment: confirmed}
	h.awaitPhase(t, confirmation.PhaseConfirmed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []confirmation.Phase{confirmation.PhaseLoading, confirmation.PhaseConfirmed}, phases)
}

func TestView_RemountAfterHomeNavigatesAgain(t *testing.T) {
	h := newHarness(t, "tok_1")

	h.view.Mount("sess_123")
	h.awaitFetch(t)
	h.fetcher.results <- fetchResult{payment: confirmed}
	h.awaitPhase(t, confirmation.PhaseConfirmed)
	h.clock.fireAll()
	require.Equal(t, int32(1), h.navs.Load())
	h.view.Teardown()

	// the browser reloads the return URL
	h.view.Mount("sess_123")
	assert.Len(t, h.clock.pending(), 1)
	h.view.RequestHome()

	assert.Equal(t, int32(2), h.navs.Load())
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.Equal(t, int32(1), h.resets.Load())
}

func TestView_FailedRemountAfterHomeNavigatesAgain(t *testing.T) {
	h := newHarness(t, "")

	h.view.Mount("sess_123")
	h.view.RequestHome()
	require.Equal(t, int32(1), h.navs.Load())
	h.view.Teardown()

	h.view.Mount("sess_123")
	h.view.RequestHome()

	assert.Equal(t, int32(2), h.navs.Load())
	assert.Equal(t, int32(0), h.fetcher.calls.Load())
}
