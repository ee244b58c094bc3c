package repository

import (
	"context"
	"database/sql"

	"github.com/lastcrumb/surplusbag/internal/model"
)

// BagConfigRepo provides access to the bag_configs and merchant_accounts
// tables.  Each restaurant owns exactly one config row; configs are never
// deleted, only deactivated.  All timestamp fields are stored in UTC.
type BagConfigRepo struct {
	db *sql.DB
}

// NewBagConfigRepo returns a new BagConfigRepo bound to the given database.
func NewBagConfigRepo(db *sql.DB) *BagConfigRepo { return &BagConfigRepo{db: db} }

const bagConfigCols = `id, restaurant_id, base_price_cents, price_cents, daily_quantity,
	pickup_start, pickup_end, is_active, image_ref, created_at, updated_at`

// GetByRestaurant loads the config for one restaurant.  When no config
// exists, sql.ErrNoRows is returned.
func (r *BagConfigRepo) GetByRestaurant(ctx context.Context, restaurantID uint64) (*model.BagConfig, error) {
	q := `SELECT ` + bagConfigCols + ` FROM bag_configs WHERE restaurant_id = ?`
	return scanBagConfig(r.db.QueryRowContext(ctx, q, restaurantID))
}

// GetByRestaurantForUpdateTx loads the config row with a FOR UPDATE lock
// inside the given transaction.  The inventory reserve path locks this row
// to serialise concurrent reservations for the same restaurant; callers
// must commit or roll back promptly and must not call out to external
// services while holding the lock.
func (r *BagConfigRepo) GetByRestaurantForUpdateTx(ctx context.Context, tx *sql.Tx, restaurantID uint64) (*model.BagConfig, error) {
	q := `SELECT ` + bagConfigCols + ` FROM bag_configs WHERE restaurant_id = ? FOR UPDATE`
	return scanBagConfig(tx.QueryRowContext(ctx, q, restaurantID))
}

func scanBagConfig(row *sql.Row) (*model.BagConfig, error) {
	var cfg model.BagConfig
	var imageRef sql.NullString
	err := row.Scan(
		&cfg.ID, &cfg.RestaurantID, &cfg.BasePriceCents, &cfg.PriceCents, &cfg.DailyQuantity,
		&cfg.PickupStart, &cfg.PickupEnd, &cfg.IsActive, &imageRef,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if imageRef.Valid {
		ref := imageRef.String
		cfg.ImageRef = &ref
	}
	return &cfg, nil
}

// Upsert creates or updates the config for a restaurant.  The restaurant_id
// column carries a unique key, so a second write for the same restaurant
// updates the existing row in place.
func (r *BagConfigRepo) Upsert(ctx context.Context, cfg *model.BagConfig) error {
	const q = `INSERT INTO bag_configs
	             (restaurant_id, base_price_cents, price_cents, daily_quantity,
	              pickup_start, pickup_end, is_active, image_ref)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             base_price_cents = VALUES(base_price_cents),
	             price_cents = VALUES(price_cents),
	             daily_quantity = VALUES(daily_quantity),
	             pickup_start = VALUES(pickup_start),
	             pickup_end = VALUES(pickup_end),
	             is_active = VALUES(is_active),
	             image_ref = VALUES(image_ref)`
	_, err := r.db.ExecContext(ctx, q,
		cfg.RestaurantID, cfg.BasePriceCents, cfg.PriceCents, cfg.DailyQuantity,
		cfg.PickupStart, cfg.PickupEnd, cfg.IsActive, cfg.ImageRef,
	)
	return err
}

// OwnerOf returns the owner user ID for a restaurant, used by handlers to
// enforce that merchant actions touch only restaurants the caller owns.
// sql.ErrNoRows is returned when the restaurant is unknown.
func (r *BagConfigRepo) OwnerOf(ctx context.Context, restaurantID uint64) (uint64, error) {
	const q = `SELECT owner_id FROM merchant_accounts WHERE restaurant_id = ?`
	var ownerID uint64
	if err := r.db.QueryRowContext(ctx, q, restaurantID).Scan(&ownerID); err != nil {
		return 0, err
	}
	return ownerID, nil
}

// RestaurantOfOwner resolves the restaurant belonging to a merchant user.
// sql.ErrNoRows is returned when the user owns no restaurant.
func (r *BagConfigRepo) RestaurantOfOwner(ctx context.Context, ownerID uint64) (uint64, error) {
	const q = `SELECT restaurant_id FROM merchant_accounts WHERE owner_id = ?`
	var restaurantID uint64
	if err := r.db.QueryRowContext(ctx, q, ownerID).Scan(&restaurantID); err != nil {
		return 0, err
	}
	return restaurantID, nil
}

// PayoutAccountRef returns the connected payout account reference for a
// restaurant.  The returned string is empty while the merchant has not
// completed onboarding at the payment processor.
func (r *BagConfigRepo) PayoutAccountRef(ctx context.Context, restaurantID uint64) (string, error) {
	const q = `SELECT payout_account_ref FROM merchant_accounts WHERE restaurant_id = ?`
	var ref sql.NullString
	if err := r.db.QueryRowContext(ctx, q, restaurantID).Scan(&ref); err != nil {
		return "", err
	}
	if !ref.Valid {
		return "", nil
	}
	return ref.String, nil
}
