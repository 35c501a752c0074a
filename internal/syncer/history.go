package syncer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bikedataproject/fitbit-integration/internal/contributions"
	"github.com/bikedataproject/fitbit-integration/internal/domain"
	"github.com/bikedataproject/fitbit-integration/internal/fitbit"
)

// historyEpoch is the lower bound for users that never synced anything.
var historyEpoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

type historyStore interface {
	NextUnsyncedUser(ctx context.Context) (*domain.User, error)
	SaveUser(ctx context.Context, user *domain.User) error
}

// HistorySyncer backfills the full activity history of one user per tick.
// Only the first page of the activity log is fetched; the user is marked
// fully synced once that page is processed without cancellation.
type HistorySyncer struct {
	store   historyStore
	writer  *contributions.Writer
	clients ClientFactory
	types   *fitbit.TypeCache
	pace    time.Duration
	logger  *log.Logger
}

// NewHistorySyncer constructs a HistorySyncer. pace is the delay inserted
// between trajectory downloads.
func NewHistorySyncer(store historyStore, writer *contributions.Writer, clients ClientFactory, pace time.Duration, logger *log.Logger) *HistorySyncer {
	return &HistorySyncer{
		store:   store,
		writer:  writer,
		clients: clients,
		types:   fitbit.NewTypeCache(),
		pace:    pace,
		logger:  logger,
	}
}

// Name implements task.
func (s *HistorySyncer) Name() string { return "history-sync" }

// Tick selects one user with unsynced history and imports their cycling
// activities.
func (s *HistorySyncer) Tick(ctx context.Context) error {
	user, err := s.store.NextUnsyncedUser(ctx)
	if err != nil {
		return fmt.Errorf("select unsynced user: %w", err)
	}
	if user == nil {
		return nil
	}

	client, refreshed, err := s.clients.ClientFor(ctx, user)
	if err != nil {
		return err
	}
	if refreshed {
		if err := s.store.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("persist refreshed token: %w", err)
		}
	}

	types, err := s.types.CyclingTypes(ctx, client)
	if err != nil {
		return err
	}

	after := historyEpoch
	if user.LatestSyncedStamp != nil {
		after = *user.LatestSyncedStamp
	}

	logs, err := client.ActivityLogsAfter(ctx, after)
	if err != nil {
		return fmt.Errorf("list activities for user %s: %w", user.FitbitUserID, err)
	}

	if err := importActivities(ctx, client, s.writer, user, types, logs, s.pace, s.Name(), s.logger); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	user.AllSynced = true
	if err := s.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("mark user %s synced: %w", user.FitbitUserID, err)
	}
	return nil
}
