// Package confirmation drives the screen shown when the payment gateway
// sends the user back with a session id.
//
// Transition is a pure function over State and Event; View runs it,
// performing the returned Effects (fetch, cart reset, home timer).
package confirmation

import (
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/models"
)

type Phase string

const (
	PhaseAwaitingParams Phase = "awaiting_params"
	PhaseLoading        Phase = "loading"
	PhaseConfirmed      Phase = "confirmed"
	PhaseFailed         Phase = "failed"
)

// IsTerminal reports whether no further fetch will happen. Confirmed is
// only soft-terminal: the home timer still fires from it.
func (p Phase) IsTerminal() bool {
	return p == PhaseConfirmed || p == PhaseFailed
}

func (p Phase) String() string {
	return string(p)
}

type State struct {
	Phase     Phase
	SessionID string
	Payment   models.ConfirmedPayment
	Err       *apperrors.Error
	// Active is false once the view is torn down; late results are dropped.
	Active bool
	// ResetSessionID is the session this view already cleared the cart for.
	ResetSessionID string
	// Navigated records that the home navigation already happened.
	Navigated bool
	// Generation identifies the fetch in flight; results of older fetches are stale.
	Generation uint64
}

// Reason is the failure kind, empty unless Phase is PhaseFailed.
func (s State) Reason() apperrors.Kind {
	if s.Err == nil {
		return ""
	}
	return s.Err.Kind
}

// Initial is the state of a view that has not been mounted yet.
func Initial() State {
	return State{Phase: PhaseAwaitingParams}
}

type Event interface {
	isEvent()
}

// Mounted activates the view with the return URL's session id and the
// current credential. It is also sent when either input changes.
type Mounted struct {
	SessionID     string
	HasCredential bool
}

type FetchSucceeded struct {
	Generation uint64
	Payment    models.ConfirmedPayment
}

type FetchFailed struct {
	Generation uint64
	Err        *apperrors.Error
}

type TornDown struct{}

type HomeTimerFired struct{}

// HomeRequested is the user's manual "return home".
type HomeRequested struct{}

func (Mounted) isEvent()        {}
func (FetchSucceeded) isEvent() {}
func (FetchFailed) isEvent()    {}
func (TornDown) isEvent()       {}
func (HomeTimerFired) isEvent() {}
func (HomeRequested) isEvent()  {}

// Effects lists the side effects a transition asks the runtime to perform.
type Effects struct {
	StartFetch   bool
	CancelFetch  bool
	ResetCart    bool
	ScheduleHome bool
	CancelHome   bool
	NavigateHome bool
}

func (e Effects) None() bool {
	return e == Effects{}
}

// Transition applies ev to s.
func Transition(s State, ev Event) (State, Effects) {
	switch ev := ev.(type) {
	case Mounted:
		return mounted(s, ev)

	case FetchSucceeded:
		if !s.Active || s.Phase != PhaseLoading || ev.Generation != s.Generation {
			return s, Effects{}
		}
		s.Phase = PhaseConfirmed
		s.Payment = ev.Payment
		s.Err = nil
		eff := Effects{ScheduleHome: true}
		if s.ResetSessionID != s.SessionID {
			s.ResetSessionID = s.SessionID
			eff.ResetCart = true
		}
		return s, eff

	case FetchFailed:
		if !s.Active || s.Phase != PhaseLoading || ev.Generation != s.Generation {
			return s, Effects{}
		}
		s.Phase = PhaseFailed
		s.Err = ev.Err
		return s, Effects{}

	case TornDown:
		if !s.Active {
			return s, Effects{}
		}
		s.Active = false
		var eff Effects
		switch s.Phase {
		case PhaseLoading:
			eff.CancelFetch = true
		case PhaseConfirmed:
			eff.CancelHome = true
		}
		return s, eff

	case HomeTimerFired:
		if !s.Active || s.Phase != PhaseConfirmed || s.Navigated {
			return s, Effects{}
		}
		s.Navigated = true
		return s, Effects{NavigateHome: true}

	case HomeRequested:
		if !s.Active || s.Navigated {
			return s, Effects{}
		}
		s.Navigated = true
		eff := Effects{NavigateHome: true}
		switch s.Phase {
		case PhaseLoading:
			eff.CancelFetch = true
		case PhaseConfirmed:
			eff.CancelHome = true
		}
		return s, eff
	}

	return s, Effects{}
}

func mounted(s State, ev Mounted) (State, Effects) {
	// Re-running the activation for a session this view already confirmed
	// must not fetch again or reset the cart a second time. Coming back after
	// a teardown is a fresh visit, so the home timer and manual navigation
	// are armed again.
	if s.Phase == PhaseConfirmed && s.SessionID == ev.SessionID && ev.SessionID != "" {
		var eff Effects
		if !s.Active {
			s.Navigated = false
			eff.ScheduleHome = true
		}
		s.Active = true
		return s, eff
	}

	// Failed is terminal for a session: only a credential that showed up
	// after an Unauthenticated failure earns another attempt.
	if s.Phase == PhaseFailed && s.SessionID == ev.SessionID && ev.SessionID != "" &&
		!(s.Reason() == apperrors.KindUnauthenticated && ev.HasCredential) {
		if !s.Active {
			s.Navigated = false
		}
		s.Active = true
		return s, Effects{}
	}

	var eff Effects
	if s.Active {
		switch s.Phase {
		case PhaseLoading:
			eff.CancelFetch = true
		case PhaseConfirmed:
			eff.CancelHome = true
		}
	}

	s.Active = true
	s.SessionID = ev.SessionID
	s.Payment = models.ConfirmedPayment{}
	s.Err = nil
	s.Navigated = false

	switch {
	case ev.SessionID == "":
		s.Phase = PhaseFailed
		s.Err = apperrors.MissingSession()
	case !ev.HasCredential:
		s.Phase = PhaseFailed
		s.Err = apperrors.Unauthenticated()
	default:
		s.Phase = PhaseLoading
		s.Generation++
		eff.StartFetch = true
	}
	return s, eff
}
