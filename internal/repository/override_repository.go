package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lastcrumb/surplusbag/internal/model"
)

// OverrideRepo provides access to the daily_overrides table.  At most one
// override exists per (restaurant, date); deleting it resets the date to
// the config defaults.  Dates are plain YYYY-MM-DD strings, interpreted in
// the restaurant's local calendar.
type OverrideRepo struct {
	db *sql.DB
}

// NewOverrideRepo returns a new OverrideRepo bound to the given database.
func NewOverrideRepo(db *sql.DB) *OverrideRepo { return &OverrideRepo{db: db} }

const overrideCols = `id, restaurant_id, date, quantity, pickup_start, pickup_end,
	is_suspended, created_at, updated_at`

// Get returns the override for one (restaurant, date), or sql.ErrNoRows
// when the date has no override.
func (r *OverrideRepo) Get(ctx context.Context, restaurantID uint64, date string) (*model.DailyOverride, error) {
	q := `SELECT ` + overrideCols + ` FROM daily_overrides WHERE restaurant_id = ? AND date = ?`
	return scanOverride(r.db.QueryRowContext(ctx, q, restaurantID, date))
}

// GetTx is Get executed inside an existing transaction, used by the
// inventory reserve path so the override is read under the same snapshot
// as the config row lock.
func (r *OverrideRepo) GetTx(ctx context.Context, tx *sql.Tx, restaurantID uint64, date string) (*model.DailyOverride, error) {
	q := `SELECT ` + overrideCols + ` FROM daily_overrides WHERE restaurant_id = ? AND date = ?`
	return scanOverride(tx.QueryRowContext(ctx, q, restaurantID, date))
}

func scanOverride(row interface {
	Scan(dest ...interface{}) error
}) (*model.DailyOverride, error) {
	var ovr model.DailyOverride
	var qty sql.NullInt64
	var start, end sql.NullString
	err := row.Scan(&ovr.ID, &ovr.RestaurantID, &ovr.Date, &qty, &start, &end,
		&ovr.IsSuspended, &ovr.CreatedAt, &ovr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if qty.Valid {
		v := uint32(qty.Int64)
		ovr.Quantity = &v
	}
	if start.Valid {
		s := start.String
		ovr.PickupStart = &s
	}
	if end.Valid {
		e := end.String
		ovr.PickupEnd = &e
	}
	return &ovr, nil
}

// ListRange returns all overrides for a restaurant with date in
// [from, to], ordered by date ascending.  An empty slice is returned when
// no override falls in the range.
func (r *OverrideRepo) ListRange(ctx context.Context, restaurantID uint64, from, to string) ([]model.DailyOverride, error) {
	q := `SELECT ` + overrideCols + ` FROM daily_overrides
	      WHERE restaurant_id = ? AND date >= ? AND date <= ?
	      ORDER BY date ASC`
	rows, err := r.db.QueryContext(ctx, q, restaurantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.DailyOverride, 0)
	for rows.Next() {
		ovr, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ovr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert writes an override for one (restaurant, date).  The new quantity
// must not drop below the number of non-cancelled reservations already
// bound to the date.  The check locks the restaurant's bag_configs row
// first, the same lock the reserve path holds while admitting, so the
// count and the write are serialized against concurrent reservations and
// nothing can slip under a shrinking quantity.  ErrOverrideBelowReserved
// is returned when validation fails.
func (r *OverrideRepo) Upsert(ctx context.Context, ovr *model.DailyOverride) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if ovr.Quantity != nil && !ovr.IsSuspended {
		// Without a config row no reservation can be admitted, so there is
		// nothing to serialize against and the lock read may come up empty.
		const lockQ = `SELECT id FROM bag_configs WHERE restaurant_id = ? FOR UPDATE`
		var cfgID uint64
		if err := tx.QueryRowContext(ctx, lockQ, ovr.RestaurantID).Scan(&cfgID); err != nil &&
			!errors.Is(err, sql.ErrNoRows) {
			return err
		}
		const countQ = `SELECT COUNT(*) FROM reservations
		                WHERE restaurant_id = ? AND pickup_date = ?
		                  AND status NOT IN ('CANCELLED','EXPIRED')`
		var reserved uint32
		if err := tx.QueryRowContext(ctx, countQ, ovr.RestaurantID, ovr.Date).Scan(&reserved); err != nil {
			return err
		}
		if *ovr.Quantity < reserved {
			return ErrOverrideBelowReserved
		}
	}
	const q = `INSERT INTO daily_overrides
	             (restaurant_id, date, quantity, pickup_start, pickup_end, is_suspended)
	           VALUES (?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             quantity = VALUES(quantity),
	             pickup_start = VALUES(pickup_start),
	             pickup_end = VALUES(pickup_end),
	             is_suspended = VALUES(is_suspended)`
	if _, err := tx.ExecContext(ctx, q,
		ovr.RestaurantID, ovr.Date, ovr.Quantity, ovr.PickupStart, ovr.PickupEnd, ovr.IsSuspended,
	); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete removes the override for one (restaurant, date), resetting the
// date to config defaults.  Deleting a date with no override is a no-op.
func (r *OverrideRepo) Delete(ctx context.Context, restaurantID uint64, date string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM daily_overrides WHERE restaurant_id = ? AND date = ?`,
		restaurantID, date,
	)
	return err
}
