package syncer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bikedataproject/fitbit-integration/internal/contributions"
	"github.com/bikedataproject/fitbit-integration/internal/domain"
	"github.com/bikedataproject/fitbit-integration/internal/fitbit"
	"github.com/bikedataproject/fitbit-integration/internal/observability"
	"github.com/bikedataproject/fitbit-integration/internal/tcx"
)

// importActivities runs the per-activity pipeline for one page of activity
// logs: filter to cycling types, skip already-imported log ids, fetch and
// parse the trajectory, and persist the resulting contributions. Returns on
// the first store or provider error; parse failures only skip the activity.
func importActivities(ctx context.Context, api ActivityAPI, writer *contributions.Writer,
	user *domain.User, types map[int]struct{}, logs []fitbit.ActivityLog,
	pace time.Duration, loop string, logger *log.Logger) error {

	session := writer.NewSession(user)
	for _, activity := range logs {
		if _, ok := types[activity.ActivityTypeID]; !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		imported, err := writer.HasContribution(ctx, user, activity.LogID)
		if err != nil {
			return fmt.Errorf("dedup check for log %d: %w", activity.LogID, err)
		}
		if imported {
			continue
		}

		// Space out trajectory downloads to stay clear of the quota.
		if err := sleepCtx(ctx, pace); err != nil {
			return err
		}

		raw, err := api.TCX(ctx, activity.TCXLink)
		if err != nil {
			return fmt.Errorf("fetch tcx for log %d: %w", activity.LogID, err)
		}

		parsed := parseContributions(logger, activity.LogID, raw)
		if len(parsed) == 0 {
			continue
		}

		for i := range parsed {
			if err := session.Save(ctx, &parsed[i], activity.LogID); err != nil {
				return err
			}
		}

		logger.Printf("activity %d for user %s synchronized", activity.LogID, user.FitbitUserID)
		observability.RecordActivitySynced(loop, len(parsed))
	}
	return nil
}

// parseContributions converts a raw trajectory document into contributions.
// A missing or malformed document yields no contributions, never an error.
func parseContributions(logger *log.Logger, logID int64, raw []byte) []domain.Contribution {
	if len(raw) == 0 {
		return nil
	}

	doc, err := tcx.Parse(raw)
	if err != nil {
		logger.Printf("skipping log %d: %v", logID, err)
		return nil
	}
	return doc.Contributions()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
