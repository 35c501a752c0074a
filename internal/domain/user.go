// Package domain defines the records shared between the sync loops, the
// webhook ingress and the persistence layer.
package domain

import "time"

// Provider is the provider tag stored with contributors in the
// contributions store.
const Provider = "Fitbit"

// UserAgent is the source tag attached to every contribution.
const UserAgent = "fitbit"

// User is one linked Fitbit account together with its OAuth credentials and
// sync state. There is exactly one row per Fitbit user id.
type User struct {
	ID                int64
	Token             string
	TokenType         string
	Scope             string
	ExpiresIn         int
	RefreshToken      string
	FitbitUserID      string
	TokenCreated      time.Time
	AllSynced         bool
	LatestSyncedStamp *time.Time
	SubscriptionID    *string
}

// DayToSync is a work item created when a webhook reports activity on a
// given day for a given user.
type DayToSync struct {
	ID     int64
	UserID int64
	Day    time.Time
	Synced bool
}

// ContributionRef maps a Fitbit activity log id to the contribution it
// produced in the contributions store. Its (user, log id) pair is the sole
// deduplication key preventing double-import of the same trip.
type ContributionRef struct {
	ID          int64
	UserID      int64
	BikeDataID  int64
	FitbitLogID int64
}
