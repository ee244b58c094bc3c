package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lastcrumb/surplusbag/internal/model"
)

// ReservationRepo provides CRUD operations for reservations.  One row
// exists per verified checkout session; the checkout_session_ref column
// carries a unique key so verification stays idempotent even under
// concurrent duplicate calls.  All timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationCols = `id, consumer_id, restaurant_id, pickup_date, pickup_code,
	payment_intent_ref, checkout_session_ref, amount_cents, funds_routed, status,
	created_at, updated_at`

func scanReservation(row interface {
	Scan(dest ...interface{}) error
}) (*model.Reservation, error) {
	var res model.Reservation
	var status string
	err := row.Scan(
		&res.ID, &res.ConsumerID, &res.RestaurantID, &res.PickupDate, &res.PickupCode,
		&res.PaymentIntentRef, &res.CheckoutSessionRef, &res.AmountCents, &res.FundsRouted,
		&status, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Status = model.Status(status)
	return &res, nil
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction.  It populates the generated ID and timestamps on the
// provided value and returns any error from the database.  The caller
// must commit or rollback the transaction.  A duplicate
// checkout_session_ref surfaces as a MySQL unique-key violation; callers
// handle that by re-reading the existing row.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
	             (consumer_id, restaurant_id, pickup_date, pickup_code,
	              payment_intent_ref, checkout_session_ref, amount_cents, funds_routed, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.ConsumerID, res.RestaurantID, res.PickupDate, res.PickupCode,
		res.PaymentIntentRef, res.CheckoutSessionRef, res.AmountCents, res.FundsRouted,
		res.Status.String(),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults
	sel := `SELECT ` + reservationCols + ` FROM reservations WHERE id = ?`
	got, err := scanReservation(tx.QueryRowContext(ctx, sel, res.ID))
	if err != nil {
		return err
	}
	*res = *got
	return nil
}

// GetByID loads one reservation.  sql.ErrNoRows is returned when the ID is
// unknown.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations WHERE id = ?`
	return scanReservation(r.db.QueryRowContext(ctx, q, id))
}

// GetByCheckoutSession loads the reservation produced by a checkout
// session, if any.  Used for the idempotent verification path.
func (r *ReservationRepo) GetByCheckoutSession(ctx context.Context, sessionRef string) (*model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations WHERE checkout_session_ref = ?`
	return scanReservation(r.db.QueryRowContext(ctx, q, sessionRef))
}

// UpdateStatusIf performs the compare-and-set transition that backs the
// state machine: the row is moved from `from` to `to` only when it still
// holds `from`.  When another actor won the race, zero rows are affected
// and ErrInvalidTransition is returned with no side effects.  Every
// transition in the system goes through this guard, so for a single
// reservation exactly one of two racing actors can succeed.
func (r *ReservationRepo) UpdateStatusIf(ctx context.Context, id uint64, from, to model.Status) error {
	const q = `UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q, to.String(), id, from.String())
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

// ListByConsumer returns all reservations created by one consumer, newest
// first.
func (r *ReservationRepo) ListByConsumer(ctx context.Context, consumerID uint64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations
	      WHERE consumer_id = ? ORDER BY created_at DESC`
	return r.list(ctx, q, consumerID)
}

// ListByRestaurant returns reservations for one restaurant, newest first,
// optionally filtered to a single status.  Pass an empty status to list
// all.
func (r *ReservationRepo) ListByRestaurant(ctx context.Context, restaurantID uint64, status model.Status) ([]model.Reservation, error) {
	if status == "" {
		q := `SELECT ` + reservationCols + ` FROM reservations
		      WHERE restaurant_id = ? ORDER BY created_at DESC`
		return r.list(ctx, q, restaurantID)
	}
	q := `SELECT ` + reservationCols + ` FROM reservations
	      WHERE restaurant_id = ? AND status = ? ORDER BY created_at DESC`
	return r.list(ctx, q, restaurantID, status.String())
}

// ListSettledWithoutPayout returns a restaurant's ACCEPTED and COMPLETED
// reservations that have no payout record yet.  Captured funds normally
// get their record at accept time; a row shows up here only when that
// write failed, and the settlement sweep uses this list to backfill the
// missing records before transferring.
func (r *ReservationRepo) ListSettledWithoutPayout(ctx context.Context, restaurantID uint64) ([]model.Reservation, error) {
	q := `SELECT r.id, r.consumer_id, r.restaurant_id, r.pickup_date, r.pickup_code,
	             r.payment_intent_ref, r.checkout_session_ref, r.amount_cents, r.funds_routed,
	             r.status, r.created_at, r.updated_at
	      FROM reservations r
	      LEFT JOIN payouts p ON p.reservation_id = r.id
	      WHERE r.restaurant_id = ? AND r.status IN ('ACCEPTED','COMPLETED') AND p.id IS NULL
	      ORDER BY r.created_at ASC`
	return r.list(ctx, q, restaurantID)
}

// ListPendingOlderThan returns reservations still PENDING whose creation
// time is at or before the given cutoff.  The sweeper uses this to find
// rows that missed their confirmation window; the subsequent per-row CAS
// makes the sweep safe to run concurrently with merchant decisions and
// with itself.
func (r *ReservationRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations
	      WHERE status = 'PENDING' AND created_at <= ? ORDER BY created_at ASC`
	return r.list(ctx, q, cutoff.UTC().Format("2006-01-02 15:04:05"))
}

func (r *ReservationRepo) list(ctx context.Context, query string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
