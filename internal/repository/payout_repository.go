package repository

import (
	"context"
	"database/sql"

	"github.com/lastcrumb/surplusbag/internal/model"
)

// PayoutRepo provides access to the payouts table.  One record exists per
// settled reservation (reservation_id is unique); the commission rate and
// both split amounts are immutable once written, so rate changes only
// affect records created afterwards.
type PayoutRepo struct {
	db *sql.DB
}

// NewPayoutRepo returns a new PayoutRepo bound to the given database.
func NewPayoutRepo(db *sql.DB) *PayoutRepo { return &PayoutRepo{db: db} }

const payoutCols = `id, reservation_id, restaurant_id, total_cents, commission_rate,
	platform_cents, restaurant_cents, status, transfer_ref, created_at, updated_at`

func scanPayout(row interface {
	Scan(dest ...interface{}) error
}) (*model.Payout, error) {
	var p model.Payout
	var status string
	var transferRef sql.NullString
	err := row.Scan(
		&p.ID, &p.ReservationID, &p.RestaurantID, &p.TotalCents, &p.CommissionRate,
		&p.PlatformCents, &p.RestaurantCents, &status, &transferRef,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.PayoutStatus(status)
	if transferRef.Valid {
		ref := transferRef.String
		p.TransferRef = &ref
	}
	return &p, nil
}

// Create inserts a payout record.  The reservation_id unique key makes a
// repeat insert for the same reservation fail, which is the backstop for
// the at-most-once capture invariant: a second capture attempt cannot
// produce a second record.  INSERT IGNORE turns that duplicate into a
// no-op so retrying callers do not surface an error.  Records for
// destination charges arrive already PAID with a transfer reference.
func (r *PayoutRepo) Create(ctx context.Context, p *model.Payout) error {
	const q = `INSERT IGNORE INTO payouts
	             (reservation_id, restaurant_id, total_cents, commission_rate,
	              platform_cents, restaurant_cents, status, transfer_ref)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		p.ReservationID, p.RestaurantID, p.TotalCents, p.CommissionRate,
		p.PlatformCents, p.RestaurantCents, p.Status.String(), p.TransferRef,
	)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		if id, err := result.LastInsertId(); err == nil {
			p.ID = uint64(id)
		}
	}
	return nil
}

// ListPendingByRestaurant returns all PENDING payout records for one
// restaurant, oldest first, for the transfer sweep.
func (r *PayoutRepo) ListPendingByRestaurant(ctx context.Context, restaurantID uint64) ([]model.Payout, error) {
	q := `SELECT ` + payoutCols + ` FROM payouts
	      WHERE restaurant_id = ? AND status = 'PENDING' ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payout, 0)
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPaidIf flips a record from PENDING to PAID and stores the external
// transfer reference.  The conditional WHERE keeps a concurrent sweep from
// marking the same record twice; when the record already left PENDING the
// call is a no-op and returns ErrInvalidTransition.
func (r *PayoutRepo) MarkPaidIf(ctx context.Context, payoutID uint64, transferRef string) error {
	const q = `UPDATE payouts SET status = 'PAID', transfer_ref = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, q, transferRef, payoutID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}
