// Package syncer runs the periodic loops that pull activity data from the
// provider and turn it into contributions: full-history backfill, per-day
// resync from webhook triggers, and webhook subscription provisioning.
package syncer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
	"github.com/bikedataproject/fitbit-integration/internal/fitbit"
	"github.com/bikedataproject/fitbit-integration/internal/observability"
)

// ActivityAPI is the provider surface the sync loops consume.
type ActivityAPI interface {
	ActivityLogsAfter(ctx context.Context, after time.Time) ([]fitbit.ActivityLog, error)
	ActivityLogsOn(ctx context.Context, day time.Time) ([]fitbit.ActivityLog, error)
	ActivityCategories(ctx context.Context) ([]fitbit.Category, error)
	TCX(ctx context.Context, link string) ([]byte, error)
	Subscriptions(ctx context.Context) ([]fitbit.Subscription, error)
	AddSubscription(ctx context.Context, subscriptionID string) (fitbit.Subscription, error)
}

// ClientFactory yields an authenticated client for a user. The second
// return value signals that the user's credentials were refreshed and the
// record must be persisted.
type ClientFactory interface {
	ClientFor(ctx context.Context, user *domain.User) (ActivityAPI, bool, error)
}

// ClientFactoryFunc adapts a function to the ClientFactory interface.
type ClientFactoryFunc func(ctx context.Context, user *domain.User) (ActivityAPI, bool, error)

// ClientFor implements ClientFactory.
func (f ClientFactoryFunc) ClientFor(ctx context.Context, user *domain.User) (ActivityAPI, bool, error) {
	return f(ctx, user)
}

// task is one sync loop body: a single tick of work.
type task interface {
	Name() string
	Tick(ctx context.Context) error
}

// Loop drives a task on a fixed delay. Every iteration consults the shared
// rate-limit gate before running the tick; rate-limit errors arm the gate,
// any other error is logged and the tick abandoned. A Loop never stops on
// tick errors, only on context cancellation.
type Loop struct {
	task             task
	gate             *fitbit.Gate
	interval         time.Duration
	enabled          bool
	logger           *log.Logger
	shutdownComplete chan struct{}
}

// LoopOption configures optional behaviour for a Loop.
type LoopOption func(*Loop)

// WithLogger overrides the logger used to report tick errors.
func WithLogger(logger *log.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop constructs a Loop around a task. A disabled loop keeps ticking
// but performs no work.
func NewLoop(t task, gate *fitbit.Gate, interval time.Duration, enabled bool, opts ...LoopOption) *Loop {
	l := &Loop{
		task:             t,
		gate:             gate,
		interval:         interval,
		enabled:          enabled,
		logger:           log.New(log.Writer(), "["+t.Name()+"] ", log.LstdFlags),
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the polling loop. It should be called in a goroutine.
func (l *Loop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer func() {
		ticker.Stop()
		close(l.shutdownComplete)
	}()

	for {
		l.runTick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the loop has stopped.
func (l *Loop) Wait() {
	<-l.shutdownComplete
}

func (l *Loop) runTick(ctx context.Context) {
	if !l.enabled {
		l.logger.Printf("%s is not enabled", l.task.Name())
		return
	}
	if !l.gate.IsReady() {
		return
	}

	err := l.task.Tick(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	var rateLimit *fitbit.RateLimitError
	if errors.As(err, &rateLimit) {
		l.gate.HandleRateLimit(rateLimit.RetryAfter)
		observability.RecordRateLimitHit()
		l.logger.Printf("rate limit hit, retrying at %s", rateLimit.RetryAfter.Format(time.RFC3339))
		return
	}

	observability.RecordTickError(l.task.Name())
	l.logger.Printf("sync tick failed: %v", err)
}
