package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lastcrumb/surplusbag/internal/model"
)

// InventoryRepo answers "how many units remain for restaurant R on date D".
// Availability is derived, not stored: the effective quantity for a date
// (config default, possibly replaced or suspended by an override) minus the
// number of non-cancelled, non-expired reservations bound to that date.
// Releasing a unit is therefore the reservation status flip itself, which
// makes the release idempotent per reservation: a row can only leave
// PENDING once.
type InventoryRepo struct {
	db  *sql.DB
	cfg *BagConfigRepo
	ovr *OverrideRepo
}

// NewInventoryRepo returns a new InventoryRepo bound to the given database
// and the config/override repositories it resolves quantities through.
func NewInventoryRepo(db *sql.DB, cfg *BagConfigRepo, ovr *OverrideRepo) *InventoryRepo {
	return &InventoryRepo{db: db, cfg: cfg, ovr: ovr}
}

// EffectiveQuantity resolves the sellable quantity for one date from a
// config row and an optional override.  A suspended override or an
// inactive config yields zero.  The ledger trusts the stored override
// quantity; the override write path is responsible for rejecting values
// below the already-reserved count.
func EffectiveQuantity(cfg *model.BagConfig, ovr *model.DailyOverride) uint32 {
	if cfg == nil || !cfg.IsActive {
		return 0
	}
	if ovr != nil {
		if ovr.IsSuspended {
			return 0
		}
		if ovr.Quantity != nil {
			return *ovr.Quantity
		}
	}
	return cfg.DailyQuantity
}

// activeCountQ counts reservations still occupying a unit for the date.
const activeCountQ = `SELECT COUNT(*) FROM reservations
                      WHERE restaurant_id = ? AND pickup_date = ?
                        AND status NOT IN ('CANCELLED','EXPIRED')`

// CountActiveTx counts unit-holding reservations inside an existing
// transaction.  The reserve path calls this after taking the config row
// lock so that two concurrent requests for the last unit serialise on the
// lock and cannot both pass the count.
func (r *InventoryRepo) CountActiveTx(ctx context.Context, tx *sql.Tx, restaurantID uint64, date string) (uint32, error) {
	var n uint32
	if err := tx.QueryRowContext(ctx, activeCountQ, restaurantID, date).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// AvailableUnits returns the remaining unit count for a (restaurant, date)
// without locking.  The result is advisory, used by checkout initiation to
// fail fast before contacting the payment processor; the authoritative
// admission decision is always re-made under the row lock at verification
// time.
func (r *InventoryRepo) AvailableUnits(ctx context.Context, restaurantID uint64, date string) (uint32, error) {
	cfg, err := r.cfg.GetByRestaurant(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	ovr, err := r.ovr.Get(ctx, restaurantID, date)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if errors.Is(err, sql.ErrNoRows) {
		ovr = nil
	}
	quantity := EffectiveQuantity(cfg, ovr)
	if quantity == 0 {
		return 0, nil
	}
	var reserved uint32
	if err := r.db.QueryRowContext(ctx, activeCountQ, restaurantID, date).Scan(&reserved); err != nil {
		return 0, err
	}
	if reserved >= quantity {
		return 0, nil
	}
	return quantity - reserved, nil
}
