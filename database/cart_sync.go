package database

import (
	"context"
	"time"

	"github.com/yashrajoria/restaurant-storefront/cart"
	"github.com/yashrajoria/restaurant-storefront/models"

	"go.uber.org/zap"
)

// CartSync mirrors the in-memory cart into a CartRepository. It subscribes
// to the store, so the store itself never touches the network.
type CartSync struct {
	repo    CartRepository
	userID  string
	logger  *zap.Logger
	timeout time.Duration
	pending chan cart.Snapshot
}

func NewCartSync(repo CartRepository, userID string, logger *zap.Logger) *CartSync {
	return &CartSync{
		repo:    repo,
		userID:  userID,
		logger:  logger,
		timeout: 3 * time.Second,
		pending: make(chan cart.Snapshot, 1),
	}
}

// Hydrate loads the stored cart into store. Call it before Subscribe.
func (s *CartSync) Hydrate(ctx context.Context, store *cart.Store) error {
	stored, err := s.repo.GetCart(ctx, s.userID)
	if err != nil {
		return err
	}
	if stored == nil || len(stored.Items) == 0 {
		return nil
	}
	return store.Replace(stored.Items)
}

// Listener enqueues snapshots for Run. Only the latest pending one is kept.
func (s *CartSync) Listener() cart.Listener {
	return func(snap cart.Snapshot) {
		for {
			select {
			case s.pending <- snap:
				return
			default:
			}
			select {
			case <-s.pending:
			default:
			}
		}
	}
}

// Run writes queued snapshots until ctx is cancelled, then flushes the last one.
func (s *CartSync) Run(ctx context.Context) {
	for {
		select {
		case snap := <-s.pending:
			s.write(context.Background(), snap)
		case <-ctx.Done():
			select {
			case snap := <-s.pending:
				s.write(context.Background(), snap)
			default:
			}
			return
		}
	}
}

// Persist writes snap synchronously. An empty cart deletes the stored one.
func (s *CartSync) Persist(ctx context.Context, snap cart.Snapshot) error {
	if snap.Empty() {
		return s.repo.DeleteCart(ctx, s.userID)
	}
	return s.repo.SaveCart(ctx, &models.Cart{UserID: s.userID, Items: snap.Items})
}

func (s *CartSync) write(parent context.Context, snap cart.Snapshot) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	if err := s.Persist(ctx, snap); err != nil {
		s.logger.Warn("Failed to persist cart",
			zap.String("user_id", s.userID),
			zap.Uint64("version", snap.Version),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Cart persisted",
		zap.String("user_id", s.userID),
		zap.Int("items", len(snap.Items)),
		zap.Uint64("version", snap.Version),
	)
}
