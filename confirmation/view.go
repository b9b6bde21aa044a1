package confirmation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yashrajoria/restaurant-storefront/auth"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/metrics"
	"github.com/yashrajoria/restaurant-storefront/services"

	"go.uber.org/zap"
)

const DefaultHomeDelay = 10 * time.Second

type CartResetter interface {
	Reset()
}

type Navigator interface {
	NavigateHome()
}

type NavigatorFunc func()

func (f NavigatorFunc) NavigateHome() { f() }

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Update is delivered to listeners after every transition. Seq grows
// monotonically so asynchronous consumers can drop stale updates.
type Update struct {
	State State
	Seq   uint64
}

type Options struct {
	HomeDelay time.Duration
	AfterFunc AfterFunc
	Metrics   *metrics.CheckoutMetrics
	Logger    *zap.Logger
}

// View runs the confirmation state machine for one screen instance.
//
// Cart reset, navigation and listeners are invoked while the view's lock
// is held: they must return promptly and must not call back into the View.
type View struct {
	fetcher services.PaymentFetcher
	creds   auth.CredentialProvider
	cart    CartResetter
	nav     Navigator

	homeDelay time.Duration
	afterFunc AfterFunc
	metrics   *metrics.CheckoutMetrics
	logger    *zap.Logger

	mu        sync.Mutex
	state     State
	seq       uint64
	cancel    context.CancelFunc
	timer     Timer
	homeToken *struct{}
	listeners []func(Update)
	wg        sync.WaitGroup
}

func NewView(fetcher services.PaymentFetcher, creds auth.CredentialProvider, cart CartResetter, nav Navigator, opts Options) *View {
	if opts.HomeDelay <= 0 {
		opts.HomeDelay = DefaultHomeDelay
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &View{
		fetcher:   fetcher,
		creds:     creds,
		cart:      cart,
		nav:       nav,
		homeDelay: opts.HomeDelay,
		afterFunc: opts.AfterFunc,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		state:     Initial(),
	}
}

// OnChange registers a listener for state updates.
func (v *View) OnChange(l func(Update)) {
	v.mu.Lock()
	v.listeners = append(v.listeners, l)
	v.mu.Unlock()
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Mount activates the view for sessionID with the current credential.
// Calling it again re-runs the activation; see Transition for what that does.
func (v *View) Mount(sessionID string) {
	_, ok := v.creds.Credential()
	v.dispatch(Mounted{SessionID: sessionID, HasCredential: ok})
}

// Teardown cancels whatever is in flight. Late results are discarded.
func (v *View) Teardown() {
	v.dispatch(TornDown{})
}

// RequestHome is the manual "return home" action.
func (v *View) RequestHome() {
	v.dispatch(HomeRequested{})
}

// Wait blocks until every fetch goroutine started by this view has returned.
func (v *View) Wait() {
	v.wg.Wait()
}

func (v *View) dispatch(ev Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dispatchLocked(ev)
}

func (v *View) dispatchLocked(ev Event) {
	prev := v.state
	next, eff := Transition(prev, ev)
	v.state = next

	if eff.CancelFetch {
		v.cancelFetchLocked()
	}
	if eff.CancelHome {
		v.stopHomeLocked()
	}
	if eff.StartFetch {
		v.cancelFetchLocked()
		v.startFetchLocked(next)
	}
	if eff.ResetCart {
		v.cart.Reset()
		v.metrics.CartResets.Inc()
		v.logger.Info("Cart reset after confirmed payment", zap.String("session_id", next.SessionID))
	}
	if eff.ScheduleHome {
		v.scheduleHomeLocked()
	}
	if eff.NavigateHome {
		v.stopHomeLocked()
		v.nav.NavigateHome()
	}

	if next.Phase != prev.Phase {
		v.recordLocked(prev, next)
	}
	if next != prev || !eff.None() {
		v.seq++
		update := Update{State: next, Seq: v.seq}
		for _, l := range v.listeners {
			l(update)
		}
	}
}

func (v *View) startFetchLocked(s State) {
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel

	token, _ := v.creds.Credential()
	generation := s.Generation
	sessionID := s.SessionID

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer cancel()

		payment, err := v.fetcher.FetchPayment(ctx, sessionID, token)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			v.metrics.Confirmations.WithLabelValues(metrics.OutcomeCanceled, "").Inc()
			v.logger.Debug("Confirmation fetch cancelled", zap.String("session_id", sessionID))
			return
		}
		if err != nil {
			v.dispatch(FetchFailed{Generation: generation, Err: toAppError(err)})
			return
		}
		v.dispatch(FetchSucceeded{Generation: generation, Payment: payment})
	}()
}

func (v *View) cancelFetchLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

func (v *View) scheduleHomeLocked() {
	v.stopHomeLocked()
	token := &struct{}{}
	v.homeToken = token
	v.timer = v.afterFunc(v.homeDelay, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.homeToken != token {
			return
		}
		v.homeToken = nil
		v.timer = nil
		v.dispatchLocked(HomeTimerFired{})
	})
}

func (v *View) stopHomeLocked() {
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.homeToken = nil
}

func (v *View) recordLocked(prev, next State) {
	switch next.Phase {
	case PhaseConfirmed:
		v.metrics.Confirmations.WithLabelValues(metrics.OutcomeSuccess, "").Inc()
		v.logger.Info("Payment confirmed",
			zap.String("session_id", next.SessionID),
			zap.Int64("amount_total", next.Payment.AmountTotal),
			zap.String("currency", next.Payment.Currency),
		)
	case PhaseFailed:
		v.metrics.Confirmations.WithLabelValues(metrics.OutcomeFailure, string(next.Reason())).Inc()
		v.logger.Warn("Payment confirmation failed",
			zap.String("session_id", next.SessionID),
			zap.String("reason", string(next.Reason())),
			zap.String("from", prev.Phase.String()),
		)
	}
}

func toAppError(err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.FetchFailed("", err)
}
