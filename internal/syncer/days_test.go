package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bikedataproject/fitbit-integration/internal/contributions"
	"github.com/bikedataproject/fitbit-integration/internal/domain"
	"github.com/bikedataproject/fitbit-integration/internal/fitbit"
)

type stubDayStore struct {
	day        *domain.DayToSync
	user       *domain.User
	notAfter   *time.Time
	markedDays []int64
	saved      []domain.User
}

func (s *stubDayStore) NextDayToSync(ctx context.Context, notAfter *time.Time) (*domain.DayToSync, *domain.User, error) {
	s.notAfter = notAfter
	return s.day, s.user, nil
}

func (s *stubDayStore) MarkDaySynced(ctx context.Context, dayID int64) error {
	s.markedDays = append(s.markedDays, dayID)
	return nil
}

func (s *stubDayStore) SaveUser(ctx context.Context, user *domain.User) error {
	s.saved = append(s.saved, *user)
	return nil
}

func TestDayTickImportsAndMarksDay(t *testing.T) {
	api := newStubAPI()
	api.logs = []fitbit.ActivityLog{
		{LogID: 9, ActivityTypeID: cyclingTypeID, StartTime: time.Date(2020, time.December, 30, 10, 0, 0, 0, time.UTC), TCXLink: "https://example.com/9.tcx"},
	}
	api.tcxDocs["https://example.com/9.tcx"] = []byte(bikeRideDoc)

	day := time.Date(2020, time.December, 30, 0, 0, 0, 0, time.UTC)
	store := &stubDayStore{
		day:  &domain.DayToSync{ID: 12, UserID: 5, Day: day},
		user: &domain.User{ID: 5, FitbitUserID: "8VMRJS", ExpiresIn: 28800, TokenCreated: time.Now().UTC()},
	}
	refs := &stubRefStore{}
	writer := contributions.NewWriter(refs, &stubBikeDataStore{})

	s := NewDaySyncer(store, writer, &stubFactory{api: api}, false, 0, discardLogger())
	require.NoError(t, s.Tick(context.Background()))

	require.Nil(t, store.notAfter)
	require.Equal(t, day, api.onArg)
	require.Len(t, refs.refs, 1)
	require.Equal(t, []int64{12}, store.markedDays)
}

func TestDayTickFullDaysOnlyPassesCutoff(t *testing.T) {
	store := &stubDayStore{}
	writer := contributions.NewWriter(&stubRefStore{}, &stubBikeDataStore{})

	s := NewDaySyncer(store, writer, &stubFactory{api: newStubAPI()}, true, 0, discardLogger())
	s.now = func() time.Time {
		return time.Date(2020, time.December, 31, 10, 0, 0, 0, time.UTC)
	}

	require.NoError(t, s.Tick(context.Background()))

	// 26 hours before Dec 31 10:00 lands on Dec 30 08:00; the cutoff is
	// that day's midnight.
	require.NotNil(t, store.notAfter)
	require.Equal(t, time.Date(2020, time.December, 30, 0, 0, 0, 0, time.UTC), *store.notAfter)
}

func TestDayTickNoDayIsANoOp(t *testing.T) {
	store := &stubDayStore{}
	writer := contributions.NewWriter(&stubRefStore{}, &stubBikeDataStore{})

	s := NewDaySyncer(store, writer, &stubFactory{api: newStubAPI()}, false, 0, discardLogger())
	require.NoError(t, s.Tick(context.Background()))
	require.Empty(t, store.markedDays)
}

func TestDayTickRateLimitLeavesDayUnsynced(t *testing.T) {
	api := newStubAPI()
	api.logsErr = &fitbit.RateLimitError{RetryAfter: time.Now().UTC().Add(time.Hour)}

	store := &stubDayStore{
		day:  &domain.DayToSync{ID: 12, UserID: 5, Day: time.Date(2020, time.December, 30, 0, 0, 0, 0, time.UTC)},
		user: &domain.User{ID: 5, FitbitUserID: "8VMRJS", ExpiresIn: 28800, TokenCreated: time.Now().UTC()},
	}
	writer := contributions.NewWriter(&stubRefStore{}, &stubBikeDataStore{})

	s := NewDaySyncer(store, writer, &stubFactory{api: api}, false, 0, discardLogger())
	err := s.Tick(context.Background())

	var rateLimited *fitbit.RateLimitError
	require.ErrorAs(t, err, &rateLimited)
	require.Empty(t, store.markedDays, "a rate-limited tick must retry the day later")
}
