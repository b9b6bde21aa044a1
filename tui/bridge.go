package tui

import (
	"sync"

	"github.com/yashrajoria/restaurant-storefront/cart"
	"github.com/yashrajoria/restaurant-storefront/confirmation"

	tea "github.com/charmbracelet/bubbletea"
)

// Bridge turns callbacks from the cart store, the confirmation view and the
// return listener into program messages. Sends never block the caller.
type Bridge struct {
	mu sync.RWMutex
	p  *tea.Program
}

func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	p := b.p
	b.mu.RUnlock()
	if p == nil {
		return
	}
	go p.Send(msg)
}

func (b *Bridge) PaymentReturned(sessionID string) { b.send(ReturnedMsg{SessionID: sessionID}) }

func (b *Bridge) PaymentCanceled() { b.send(CanceledMsg{}) }

func (b *Bridge) NavigateHome() { b.send(HomeMsg{}) }

func (b *Bridge) ConfirmationChanged(u confirmation.Update) { b.send(ConfirmationMsg{Update: u}) }

func (b *Bridge) CartChanged(s cart.Snapshot) { b.send(CartChangedMsg{Snapshot: s}) }
