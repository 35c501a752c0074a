package contributions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
)

type stubIntegrationStore struct {
	refs    []domain.ContributionRef
	has     map[int64]bool
	hasErr  error
	saveErr error
}

func (s *stubIntegrationStore) HasContribution(ctx context.Context, userID, logID int64) (bool, error) {
	return s.has[logID], s.hasErr
}

func (s *stubIntegrationStore) AddContributionRef(ctx context.Context, ref domain.ContributionRef) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.refs = append(s.refs, ref)
	return nil
}

type stubContributionsStore struct {
	contributorID int64
	resolveCalls  int
	resolveErr    error
	saved         []*domain.Contribution
	nextID        int64
	addErr        error
}

func (s *stubContributionsStore) ResolveContributor(ctx context.Context, provider, providerUserID string) (int64, error) {
	s.resolveCalls++
	if s.resolveErr != nil {
		return 0, s.resolveErr
	}
	return s.contributorID, nil
}

func (s *stubContributionsStore) AddContribution(ctx context.Context, contribution *domain.Contribution, contributorID int64) (int64, error) {
	if s.addErr != nil {
		return 0, s.addErr
	}
	s.saved = append(s.saved, contribution)
	s.nextID++
	return s.nextID, nil
}

func testContribution() *domain.Contribution {
	start := time.Date(2020, time.December, 30, 10, 0, 0, 0, time.UTC)
	return &domain.Contribution{
		UserAgent:      domain.UserAgent,
		Distance:       181,
		Duration:       42,
		TimeStampStart: start,
		TimeStampStop:  start.Add(42 * time.Second),
		PointsGeom:     []byte{0x01},
		PointsTime:     []time.Time{start},
	}
}

func TestSessionResolvesContributorOnce(t *testing.T) {
	local := &stubIntegrationStore{}
	shared := &stubContributionsStore{contributorID: 77}
	writer := NewWriter(local, shared)

	user := &domain.User{ID: 5, FitbitUserID: "8VMRJS"}
	session := writer.NewSession(user)

	require.NoError(t, session.Save(context.Background(), testContribution(), 100))
	require.NoError(t, session.Save(context.Background(), testContribution(), 101))

	require.Equal(t, 1, shared.resolveCalls)
	require.Len(t, shared.saved, 2)
}

func TestSessionRecordsCrossReference(t *testing.T) {
	local := &stubIntegrationStore{}
	shared := &stubContributionsStore{contributorID: 77, nextID: 200}
	writer := NewWriter(local, shared)

	user := &domain.User{ID: 5, FitbitUserID: "8VMRJS"}
	session := writer.NewSession(user)

	require.NoError(t, session.Save(context.Background(), testContribution(), 100))

	require.Len(t, local.refs, 1)
	require.Equal(t, domain.ContributionRef{
		UserID:      5,
		BikeDataID:  201,
		FitbitLogID: 100,
	}, local.refs[0])
}

func TestSessionResolveFailureRetriesNextSave(t *testing.T) {
	local := &stubIntegrationStore{}
	shared := &stubContributionsStore{resolveErr: errors.New("store down")}
	writer := NewWriter(local, shared)

	session := writer.NewSession(&domain.User{ID: 5, FitbitUserID: "8VMRJS"})
	require.Error(t, session.Save(context.Background(), testContribution(), 100))

	shared.resolveErr = nil
	shared.contributorID = 77
	require.NoError(t, session.Save(context.Background(), testContribution(), 100))
	require.Equal(t, 2, shared.resolveCalls)
}

func TestSessionSharedStoreFailureWritesNoCrossReference(t *testing.T) {
	local := &stubIntegrationStore{}
	shared := &stubContributionsStore{contributorID: 77, addErr: errors.New("insert failed")}
	writer := NewWriter(local, shared)

	session := writer.NewSession(&domain.User{ID: 5, FitbitUserID: "8VMRJS"})
	require.Error(t, session.Save(context.Background(), testContribution(), 100))
	require.Empty(t, local.refs)
}

func TestWriterHasContributionDelegates(t *testing.T) {
	local := &stubIntegrationStore{has: map[int64]bool{100: true}}
	writer := NewWriter(local, &stubContributionsStore{})
	user := &domain.User{ID: 5}

	seen, err := writer.HasContribution(context.Background(), user, 100)
	require.NoError(t, err)
	require.True(t, seen)

	seen, err = writer.HasContribution(context.Background(), user, 101)
	require.NoError(t, err)
	require.False(t, seen)
}
