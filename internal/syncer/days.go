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

// fullDayCutoff is how far in the past a day must lie before it is synced
// in full-day mode. 26 hours covers every time zone's midnight.
const fullDayCutoff = 26 * time.Hour

type dayStore interface {
	NextDayToSync(ctx context.Context, notAfter *time.Time) (*domain.DayToSync, *domain.User, error)
	MarkDaySynced(ctx context.Context, dayID int64) error
	SaveUser(ctx context.Context, user *domain.User) error
}

// DaySyncer processes one webhook-reported day per tick, importing the
// cycling activities recorded on that day.
type DaySyncer struct {
	store        dayStore
	writer       *contributions.Writer
	clients      ClientFactory
	types        *fitbit.TypeCache
	fullDaysOnly bool
	pace         time.Duration
	logger       *log.Logger
	now          func() time.Time
}

// NewDaySyncer constructs a DaySyncer. With fullDaysOnly set, days younger
// than the cutoff are left for a later tick so each day is synced at most
// once, after it has fully passed.
func NewDaySyncer(store dayStore, writer *contributions.Writer, clients ClientFactory, fullDaysOnly bool, pace time.Duration, logger *log.Logger) *DaySyncer {
	return &DaySyncer{
		store:        store,
		writer:       writer,
		clients:      clients,
		types:        fitbit.NewTypeCache(),
		fullDaysOnly: fullDaysOnly,
		pace:         pace,
		logger:       logger,
		now:          time.Now,
	}
}

// Name implements task.
func (s *DaySyncer) Name() string { return "day-sync" }

// Tick selects the oldest unsynced day and imports its activities.
func (s *DaySyncer) Tick(ctx context.Context) error {
	var notAfter *time.Time
	if s.fullDaysOnly {
		cutoff := s.now().UTC().Add(-fullDayCutoff)
		day := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
		notAfter = &day
	}

	day, user, err := s.store.NextDayToSync(ctx, notAfter)
	if err != nil {
		return fmt.Errorf("select day to sync: %w", err)
	}
	if day == nil {
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

	logs, err := client.ActivityLogsOn(ctx, day.Day)
	if err != nil {
		return fmt.Errorf("list activities on %s for user %s: %w", day.Day.Format("2006-01-02"), user.FitbitUserID, err)
	}

	if err := importActivities(ctx, client, s.writer, user, types, logs, s.pace, s.Name(), s.logger); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.MarkDaySynced(ctx, day.ID); err != nil {
		return fmt.Errorf("mark day %d synced: %w", day.ID, err)
	}
	return nil
}
