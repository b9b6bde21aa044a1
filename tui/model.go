// Package tui is the terminal storefront: the order summary with checkout
// and the payment confirmation screen the gateway returns to.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yashrajoria/restaurant-storefront/cart"
	"github.com/yashrajoria/restaurant-storefront/confirmation"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/models"
	"github.com/yashrajoria/restaurant-storefront/money"

	tea "github.com/charmbracelet/bubbletea"
)

// Checkout starts a hosted checkout for items.
type Checkout interface {
	Start(ctx context.Context, items []models.CartLineItem) (models.CheckoutSession, error)
}

// ConfirmationView is the part of *confirmation.View the screen drives.
type ConfirmationView interface {
	Mount(sessionID string)
	Teardown()
	RequestHome()
}

type screen int

const (
	screenCart screen = iota
	screenConfirm
)

// Messages delivered from outside the program through a Bridge.
type (
	CartChangedMsg  struct{ Snapshot cart.Snapshot }
	ReturnedMsg     struct{ SessionID string }
	CanceledMsg     struct{}
	ConfirmationMsg struct{ Update confirmation.Update }
	HomeMsg         struct{}
)

type checkoutResult struct {
	session models.CheckoutSession
	err     error
}

type Model struct {
	store    *cart.Store
	checkout Checkout
	view     ConfirmationView
	timeout  time.Duration
	delay    time.Duration

	snapshot cart.Snapshot
	cursor   int
	busy     bool
	status   string
	screen   screen
	conf     confirmation.State
	confSeq  uint64
}

func NewModel(store *cart.Store, checkout Checkout, view ConfirmationView, timeout, homeDelay time.Duration) Model {
	return Model{
		store:    store,
		checkout: checkout,
		view:     view,
		timeout:  timeout,
		delay:    homeDelay,
		snapshot: store.Snapshot(),
		conf:     confirmation.Initial(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			if m.screen == screenConfirm {
				m.view.Teardown()
			}
			return m, tea.Quit
		}
		if m.screen == screenConfirm {
			return m.updateConfirm(msg)
		}
		return m.updateCart(msg)

	case CartChangedMsg:
		if msg.Snapshot.Version >= m.snapshot.Version {
			m.snapshot = msg.Snapshot
			m.clampCursor()
		}

	case checkoutResult:
		m.busy = false
		if msg.err != nil {
			m.status = apperrors.UserMessage(msg.err)
		} else {
			m.status = "Complete your payment in the browser window that just opened."
		}

	case ReturnedMsg:
		m.busy = false
		m.status = ""
		m.screen = screenConfirm
		m.view.Mount(msg.SessionID)

	case CanceledMsg:
		if m.screen == screenConfirm {
			m.view.Teardown()
		}
		m.screen = screenCart
		m.busy = false
		m.status = "Checkout canceled. Your cart has not been charged."

	case ConfirmationMsg:
		if msg.Update.Seq > m.confSeq {
			m.confSeq = msg.Update.Seq
			m.conf = msg.Update.State
		}

	case HomeMsg:
		if m.screen == screenConfirm {
			m.view.Teardown()
			m.screen = screenCart
			m.status = ""
			m.snapshot = m.store.Snapshot()
			m.clampCursor()
		}
	}
	return m, nil
}

func (m Model) updateCart(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snapshot.Items)-1 {
			m.cursor++
		}
	case "+", "=":
		m.changeQuantity(1)
	case "-":
		m.changeQuantity(-1)
	case "d", "x":
		if item, ok := m.selected(); ok {
			m.store.Remove(item.ID)
			m.refresh()
		}
	case "enter", "c":
		if m.busy || m.snapshot.Empty() {
			return m, nil
		}
		m.busy = true
		m.status = ""
		return m, m.checkoutCmd(m.snapshot.Items)
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "h", "enter", "esc":
		m.view.RequestHome()
	}
	return m, nil
}

func (m *Model) changeQuantity(delta int) {
	item, ok := m.selected()
	if !ok {
		return
	}
	if err := m.store.UpdateQuantity(item.ID, item.Quantity+delta); err != nil {
		m.status = apperrors.UserMessage(err)
		return
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.snapshot = m.store.Snapshot()
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.snapshot.Items) {
		m.cursor = len(m.snapshot.Items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (models.CartLineItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snapshot.Items) {
		return models.CartLineItem{}, false
	}
	return m.snapshot.Items[m.cursor], true
}

func (m Model) checkoutCmd(items []models.CartLineItem) tea.Cmd {
	checkout, timeout := m.checkout, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		session, err := checkout.Start(ctx, items)
		return checkoutResult{session: session, err: err}
	}
}

func (m Model) View() string {
	if m.screen == screenConfirm {
		return m.confirmView()
	}
	return m.cartView()
}

func (m Model) cartView() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "Restaurant Storefront")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Order Summary")

	if m.snapshot.Empty() {
		fmt.Fprintln(b, "")
		fmt.Fprintln(b, apperrors.MsgEmptyCart)
	} else {
		fmt.Fprintf(b, "  %-24s %8s %12s %12s\n", "Product", "Quantity", "Unit Price", "Subtotal")
		for i, item := range m.snapshot.Items {
			marker := " "
			if i == m.cursor {
				marker = ">"
			}
			fmt.Fprintf(b, "%s %-24s %8d %12s %12s\n",
				marker,
				item.DisplayTitle(),
				item.Quantity,
				money.FormatPrice(item.UnitPrice),
				money.FormatPrice(item.Subtotal()),
			)
		}
		fmt.Fprintln(b, "")
		fmt.Fprintf(b, "Total: %s\n", money.FormatPrice(m.snapshot.Total()))
	}

	fmt.Fprintln(b, "")
	switch {
	case m.busy:
		fmt.Fprintln(b, "[ Processing... ]")
	case m.snapshot.Empty():
		fmt.Fprintln(b, "[ Checkout unavailable ]")
	default:
		fmt.Fprintln(b, "[ Proceed to Payment ]")
	}
	if m.status != "" {
		fmt.Fprintf(b, "\n%s\n", m.status)
	}
	fmt.Fprintln(b, "\nControls: up/down select, +/- quantity, d remove, enter checkout, q quit")
	return b.String()
}

func (m Model) confirmView() string {
	b := &strings.Builder{}
	switch m.conf.Phase {
	case confirmation.PhaseConfirmed:
		p := m.conf.Payment
		fmt.Fprintln(b, "Payment Successful")
		fmt.Fprintln(b, "")
		fmt.Fprintf(b, "Thank you for your purchase, %s\n", p.CustomerEmail())
		fmt.Fprintf(b, "Total Amount: %s\n", money.FormatMinor(p.AmountTotal, p.Currency))
		fmt.Fprintf(b, "Session ID: %s\n", p.ID)
		fmt.Fprintln(b, "")
		fmt.Fprintf(b, "You will be redirected in %s. Press h to return home now.\n", m.delay)
	case confirmation.PhaseFailed:
		fmt.Fprintln(b, "Payment could not be confirmed")
		fmt.Fprintln(b, "")
		fmt.Fprintln(b, m.conf.Err.Message)
		fmt.Fprintln(b, "\nPress h to return home.")
	default:
		fmt.Fprintln(b, "Loading payment details...")
	}
	fmt.Fprintln(b, "\nControls: h return home, q quit")
	return b.String()
}
