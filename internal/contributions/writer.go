// Package contributions deduplicates and persists normalized contributions
// across the integration store and the shared contributions store.
package contributions

import (
	"context"
	"fmt"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
)

type integrationStore interface {
	HasContribution(ctx context.Context, userID, logID int64) (bool, error)
	AddContributionRef(ctx context.Context, ref domain.ContributionRef) error
}

type contributionsStore interface {
	ResolveContributor(ctx context.Context, provider, providerUserID string) (int64, error)
	AddContribution(ctx context.Context, contribution *domain.Contribution, contributorID int64) (int64, error)
}

// Writer saves contributions for synced activities. The contribution is
// written to the shared store first and the local cross-reference second;
// there is no transaction spanning the two stores, so a crash in between
// leaves an orphaned contribution that a retry imports again. The
// cross-reference is what makes a (user, log id) pair count as synced.
type Writer struct {
	local  integrationStore
	shared contributionsStore
}

// NewWriter constructs a Writer over the two stores.
func NewWriter(local integrationStore, shared contributionsStore) *Writer {
	return &Writer{local: local, shared: shared}
}

// HasContribution reports whether the activity log id was already imported
// for the user. Loops consult this before fetching a trajectory.
func (w *Writer) HasContribution(ctx context.Context, user *domain.User, logID int64) (bool, error) {
	return w.local.HasContribution(ctx, user.ID, logID)
}

// NewSession opens a save session for one user. The session memoizes the
// contributor id so one tick resolves it at most once.
func (w *Writer) NewSession(user *domain.User) *Session {
	return &Session{writer: w, user: user}
}

// Session saves contributions for a single user within one sync tick.
type Session struct {
	writer        *Writer
	user          *domain.User
	contributorID int64
	resolved      bool
}

// Save persists the contribution to the shared store and records the
// cross-reference for the activity log id.
func (s *Session) Save(ctx context.Context, contribution *domain.Contribution, logID int64) error {
	contributorID, err := s.contributor(ctx)
	if err != nil {
		return err
	}

	bikeDataID, err := s.writer.shared.AddContribution(ctx, contribution, contributorID)
	if err != nil {
		return fmt.Errorf("save contribution for log %d: %w", logID, err)
	}

	ref := domain.ContributionRef{
		UserID:      s.user.ID,
		BikeDataID:  bikeDataID,
		FitbitLogID: logID,
	}
	if err := s.writer.local.AddContributionRef(ctx, ref); err != nil {
		return fmt.Errorf("save contribution reference for log %d: %w", logID, err)
	}
	return nil
}

func (s *Session) contributor(ctx context.Context) (int64, error) {
	if s.resolved {
		return s.contributorID, nil
	}

	id, err := s.writer.shared.ResolveContributor(ctx, domain.Provider, s.user.FitbitUserID)
	if err != nil {
		return 0, fmt.Errorf("resolve contributor for user %s: %w", s.user.FitbitUserID, err)
	}
	s.contributorID = id
	s.resolved = true
	return id, nil
}
