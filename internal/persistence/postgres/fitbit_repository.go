// Package postgres provides pgx-backed persistence for the integration
// store and the shared contributions store.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
)

const userColumns = `id, token, token_type, scope, expires_in, refresh_token, fitbit_user_id, token_created, all_synced, latest_synced_stamp, subscription_id`

// FitbitRepository persists users, day work items and contribution
// cross-references in the integration-local store.
type FitbitRepository struct {
	pool *pgxpool.Pool
}

// NewFitbitRepository constructs a FitbitRepository.
func NewFitbitRepository(pool *pgxpool.Pool) *FitbitRepository {
	return &FitbitRepository{pool: pool}
}

// NextUnsyncedUser returns one user whose history backfill has not
// completed, or nil when there is none.
func (r *FitbitRepository) NextUnsyncedUser(ctx context.Context) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE all_synced = false ORDER BY id LIMIT 1`
	return r.queryUser(ctx, query)
}

// UserBySubscription returns the user owning the given webhook subscription
// id, or nil when the id is not recognized.
func (r *FitbitRepository) UserBySubscription(ctx context.Context, subscriptionID string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE subscription_id = $1`
	return r.queryUser(ctx, query, subscriptionID)
}

// UsersWithoutSubscription lists users that completed history backfill but
// have no webhook subscription yet.
func (r *FitbitRepository) UsersWithoutSubscription(ctx context.Context, limit int) ([]domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users
        WHERE all_synced = true AND subscription_id IS NULL
        ORDER BY id LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// SaveUser overwrites the user's mutable fields.
func (r *FitbitRepository) SaveUser(ctx context.Context, user *domain.User) error {
	const stmt = `UPDATE users SET
        token = $2, token_type = $3, scope = $4, expires_in = $5, refresh_token = $6,
        token_created = $7, all_synced = $8, latest_synced_stamp = $9, subscription_id = $10
        WHERE id = $1`

	_, err := r.pool.Exec(ctx, stmt,
		user.ID,
		user.Token,
		user.TokenType,
		user.Scope,
		user.ExpiresIn,
		user.RefreshToken,
		user.TokenCreated,
		user.AllSynced,
		user.LatestSyncedStamp,
		user.SubscriptionID,
	)
	return err
}

// UpsertUserByFitbitID inserts the user on first OAuth exchange, or
// overwrites the credential fields of the existing row for the same Fitbit
// user id. The user's ID field is populated either way.
func (r *FitbitRepository) UpsertUserByFitbitID(ctx context.Context, user *domain.User) error {
	const stmt = `INSERT INTO users (token, token_type, scope, expires_in, refresh_token, fitbit_user_id, token_created, all_synced)
        VALUES ($1, $2, $3, $4, $5, $6, $7, false)
        ON CONFLICT (fitbit_user_id) DO UPDATE SET
            token = EXCLUDED.token,
            token_type = EXCLUDED.token_type,
            scope = EXCLUDED.scope,
            expires_in = EXCLUDED.expires_in,
            refresh_token = EXCLUDED.refresh_token,
            token_created = EXCLUDED.token_created
        RETURNING id`

	return r.pool.QueryRow(ctx, stmt,
		user.Token,
		user.TokenType,
		user.Scope,
		user.ExpiresIn,
		user.RefreshToken,
		user.FitbitUserID,
		user.TokenCreated,
	).Scan(&user.ID)
}

// NextDayToSync returns the oldest unsynced day work item together with its
// user. A non-nil notAfter restricts the pick to days at or before it.
func (r *FitbitRepository) NextDayToSync(ctx context.Context, notAfter *time.Time) (*domain.DayToSync, *domain.User, error) {
	query := `SELECT d.id, d.user_id, d.day, d.synced, ` + prefixedUserColumns("u") + `
        FROM days_to_sync d JOIN users u ON u.id = d.user_id
        WHERE d.synced = false`
	args := []interface{}{}
	if notAfter != nil {
		query += ` AND d.day <= $1`
		args = append(args, *notAfter)
	}
	query += ` ORDER BY d.day, d.id LIMIT 1`

	row := r.pool.QueryRow(ctx, query, args...)

	var (
		day  domain.DayToSync
		user domain.User
	)
	err := row.Scan(
		&day.ID, &day.UserID, &day.Day, &day.Synced,
		&user.ID, &user.Token, &user.TokenType, &user.Scope, &user.ExpiresIn, &user.RefreshToken,
		&user.FitbitUserID, &user.TokenCreated, &user.AllSynced, &user.LatestSyncedStamp, &user.SubscriptionID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return &day, &user, nil
}

// MarkDaySynced flags a day work item as processed.
func (r *FitbitRepository) MarkDaySynced(ctx context.Context, dayID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE days_to_sync SET synced = true WHERE id = $1`, dayID)
	return err
}

// UpsertDayToSync records that a webhook reported activity on the given day
// for the given user. An existing row for the pair is re-opened instead of
// duplicated.
func (r *FitbitRepository) UpsertDayToSync(ctx context.Context, userID int64, day time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `UPDATE days_to_sync SET synced = false WHERE user_id = $1 AND day = $2`, userID, day)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err = tx.Exec(ctx, `INSERT INTO days_to_sync (user_id, day, synced) VALUES ($1, $2, false)`, userID, day); err != nil {
			return err
		}
	}

	err = tx.Commit(ctx)
	return err
}

// HasContribution reports whether a cross-reference exists for the
// (user, activity log id) pair.
func (r *FitbitRepository) HasContribution(ctx context.Context, userID, logID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM contributions WHERE user_id = $1 AND fitbit_log_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, logID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// AddContributionRef records the cross-reference from an activity log id to
// the contribution written to the contributions store.
func (r *FitbitRepository) AddContributionRef(ctx context.Context, ref domain.ContributionRef) error {
	const stmt = `INSERT INTO contributions (user_id, bike_data_id, fitbit_log_id) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, stmt, ref.UserID, ref.BikeDataID, ref.FitbitLogID)
	return err
}

func (r *FitbitRepository) queryUser(ctx context.Context, query string, args ...interface{}) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.Token, &user.TokenType, &user.Scope, &user.ExpiresIn, &user.RefreshToken,
		&user.FitbitUserID, &user.TokenCreated, &user.AllSynced, &user.LatestSyncedStamp, &user.SubscriptionID,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func prefixedUserColumns(alias string) string {
	return alias + `.id, ` + alias + `.token, ` + alias + `.token_type, ` + alias + `.scope, ` +
		alias + `.expires_in, ` + alias + `.refresh_token, ` + alias + `.fitbit_user_id, ` +
		alias + `.token_created, ` + alias + `.all_synced, ` + alias + `.latest_synced_stamp, ` +
		alias + `.subscription_id`
}
