package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
	"github.com/bikedataproject/fitbit-integration/internal/fitbit"
)

type subscriptionStore interface {
	UsersWithoutSubscription(ctx context.Context, limit int) ([]domain.User, error)
	SaveUser(ctx context.Context, user *domain.User) error
}

// SubscriptionManager provisions webhook subscriptions for users that have
// completed their history backfill. An existing subscription on the
// activities collection is adopted rather than duplicated.
type SubscriptionManager struct {
	store     subscriptionStore
	clients   ClientFactory
	batchSize int
	newID     func() string
	logger    *log.Logger
}

// NewSubscriptionManager constructs a SubscriptionManager handling at most
// batchSize users per tick.
func NewSubscriptionManager(store subscriptionStore, clients ClientFactory, batchSize int, logger *log.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		store:     store,
		clients:   clients,
		batchSize: batchSize,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// Name implements task.
func (s *SubscriptionManager) Name() string { return "subscriptions" }

// Tick provisions subscriptions for up to batchSize users. A failure for
// one user is logged and the remaining users are still handled; rate-limit
// errors abort the tick.
func (s *SubscriptionManager) Tick(ctx context.Context) error {
	users, err := s.store.UsersWithoutSubscription(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("select users without subscription: %w", err)
	}

	for i := range users {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.provision(ctx, &users[i]); err != nil {
			var rateLimit *fitbit.RateLimitError
			if errors.As(err, &rateLimit) || errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Printf("failed to create subscription for user %s: %v", users[i].FitbitUserID, err)
		}
	}
	return nil
}

func (s *SubscriptionManager) provision(ctx context.Context, user *domain.User) error {
	client, refreshed, err := s.clients.ClientFor(ctx, user)
	if err != nil {
		return err
	}
	if refreshed {
		if err := s.store.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("persist refreshed token: %w", err)
		}
	}

	existing, err := client.Subscriptions(ctx)
	if err != nil {
		return err
	}

	var subscriptionID string
	if len(existing) == 0 {
		created, err := client.AddSubscription(ctx, s.newID())
		if err != nil {
			return err
		}
		subscriptionID = created.SubscriptionID
	} else {
		subscriptionID = existing[0].SubscriptionID
	}

	user.SubscriptionID = &subscriptionID
	if err := s.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("persist subscription id: %w", err)
	}

	s.logger.Printf("subscription %s stored for user %s", subscriptionID, user.FitbitUserID)
	return nil
}
