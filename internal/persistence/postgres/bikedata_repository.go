package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
)

// BikeDataRepository writes normalized contributions to the shared
// contributions store.
type BikeDataRepository struct {
	pool *pgxpool.Pool
}

// NewBikeDataRepository constructs a BikeDataRepository.
func NewBikeDataRepository(pool *pgxpool.Pool) *BikeDataRepository {
	return &BikeDataRepository{pool: pool}
}

// ResolveContributor returns the id of the contributor identified by
// provider and provider user id, creating the record when absent. The
// operation is idempotent.
func (r *BikeDataRepository) ResolveContributor(ctx context.Context, provider, providerUserID string) (int64, error) {
	const query = `SELECT id FROM users WHERE provider = $1 AND provider_user = $2`

	var id int64
	err := r.pool.QueryRow(ctx, query, provider, providerUserID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	const insert = `INSERT INTO users (provider, provider_user) VALUES ($1, $2)
        ON CONFLICT (provider, provider_user) DO UPDATE SET provider = EXCLUDED.provider
        RETURNING id`
	if err := r.pool.QueryRow(ctx, insert, provider, providerUserID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// AddContribution persists a contribution and links it to the contributor,
// returning the new contribution id.
func (r *BikeDataRepository) AddContribution(ctx context.Context, contribution *domain.Contribution, contributorID int64) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insert = `INSERT INTO contributions (user_agent, distance, duration, time_stamp_start, time_stamp_stop, points_geom, points_time, added_on)
        VALUES ($1, $2, $3, $4, $5, ST_GeomFromEWKB($6), $7, NOW())
        RETURNING id`

	var id int64
	err = tx.QueryRow(ctx, insert,
		contribution.UserAgent,
		contribution.Distance,
		contribution.Duration,
		contribution.TimeStampStart,
		contribution.TimeStampStop,
		contribution.PointsGeom,
		contribution.PointsTime,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	if _, err = tx.Exec(ctx, `INSERT INTO user_contributions (user_id, contribution_id) VALUES ($1, $2)`, contributorID, id); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}
