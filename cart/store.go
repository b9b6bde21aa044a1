package cart

import (
	"fmt"
	"sync"

	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is a complete, immutable view of the cart after one mutation.
type Snapshot struct {
	Items   []models.CartLineItem
	Version uint64
}

func (s Snapshot) Total() decimal.Decimal {
	return Total(s.Items)
}

func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

// Total sums unit_price * quantity over items with exact decimal arithmetic.
func Total(items []models.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Listener receives a snapshot after every mutation. Listeners must not
// mutate the store they are subscribed to.
type Listener func(Snapshot)

// Store holds the client-local cart. All mutations go through mu, and
// notifications are delivered under notifyMu in mutation order, so a
// listener never sees a partially applied change.
type Store struct {
	mu       sync.Mutex
	items    []models.CartLineItem
	version  uint64
	validate *validator.Validate

	notifyMu  sync.Mutex
	listeners map[int]Listener
	nextID    int
}

func NewStore() *Store {
	return &Store{
		validate:  validator.New(),
		listeners: make(map[int]Listener),
	}
}

func (s *Store) Items() []models.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Items: cloneItems(s.items), Version: s.version}
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.notifyMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.notifyMu.Unlock()

	return func() {
		s.notifyMu.Lock()
		delete(s.listeners, id)
		s.notifyMu.Unlock()
	}
}

// Add appends item, or increases the quantity of the line with the same
// menu item and unit price. A zero ID is replaced with a fresh one.
func (s *Store) Add(item models.CartLineItem) (models.CartLineItem, error) {
	if err := s.check(item); err != nil {
		return models.CartLineItem{}, err
	}

	s.mu.Lock()
	for i, existing := range s.items {
		if existing.MenuItemID == item.MenuItemID && existing.UnitPrice.Equal(item.UnitPrice) && existing.Title == item.Title {
			s.items[i].Quantity += item.Quantity
			merged := s.items[i]
			s.commitLocked()
			return merged, nil
		}
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.items = append(s.items, item)
	s.commitLocked()
	return item, nil
}

// UpdateQuantity sets the quantity of a line. Zero removes the line.
func (s *Store) UpdateQuantity(id uuid.UUID, quantity int) error {
	if quantity < 0 {
		return apperrors.InvalidItem(fmt.Errorf("quantity %d is negative", quantity))
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return apperrors.InvalidItem(fmt.Errorf("line item %s not found", id))
	}
	if quantity == 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	} else {
		s.items[idx].Quantity = quantity
	}
	s.commitLocked()
	return nil
}

// Remove deletes a line. It reports whether the line existed.
func (s *Store) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.commitLocked()
	return true
}

// Replace swaps the whole cart, used when hydrating from persistence.
func (s *Store) Replace(items []models.CartLineItem) error {
	for _, item := range items {
		if err := s.check(item); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.items = cloneItems(items)
	for i := range s.items {
		if s.items[i].ID == uuid.Nil {
			s.items[i].ID = uuid.New()
		}
	}
	s.commitLocked()
	return nil
}

// Reset clears every line. Calling it on an empty cart is harmless.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = nil
	s.commitLocked()
}

func (s *Store) check(item models.CartLineItem) error {
	if err := s.validate.Struct(item); err != nil {
		return apperrors.InvalidItem(err)
	}
	if item.UnitPrice.IsNegative() {
		return apperrors.InvalidItem(fmt.Errorf("unit price %s is negative", item.UnitPrice))
	}
	return nil
}

func (s *Store) indexLocked(id uuid.UUID) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// commitLocked must be called with mu held; it releases mu.
func (s *Store) commitLocked() {
	s.version++
	snap := Snapshot{Items: cloneItems(s.items), Version: s.version}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, l := range s.listeners {
		l(snap)
	}
}

func cloneItems(items []models.CartLineItem) []models.CartLineItem {
	out := make([]models.CartLineItem, len(items))
	copy(out, items)
	return out
}
