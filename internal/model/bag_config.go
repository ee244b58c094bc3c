package model

import "time"

// BagConfig holds a merchant's standing surprise-bag offer.  There is one
// config per restaurant; it is never deleted, only deactivated.
//
// Fields:
//
//	ID             – primary key identifier.
//	RestaurantID   – owning merchant (unique).
//	BasePriceCents – full retail value shown to consumers, in cents.
//	PriceCents     – actual price charged per bag, in cents.
//	DailyQuantity  – default number of bags offered per day.
//	PickupStart    – start of the pickup window, "HH:MM" local time.
//	PickupEnd      – end of the pickup window, "HH:MM" local time.
//	IsActive       – whether the offer is currently sellable at all.
//	ImageRef       – object-storage key of the offer image, if any.
type BagConfig struct {
	ID             uint64    // bag_configs.id
	RestaurantID   uint64    // bag_configs.restaurant_id (unique)
	BasePriceCents int64     // bag_configs.base_price_cents
	PriceCents     int64     // bag_configs.price_cents
	DailyQuantity  uint32    // bag_configs.daily_quantity
	PickupStart    string    // bag_configs.pickup_start ("HH:MM")
	PickupEnd      string    // bag_configs.pickup_end ("HH:MM")
	IsActive       bool      // bag_configs.is_active
	ImageRef       *string   // bag_configs.image_ref (nullable)
	CreatedAt      time.Time // bag_configs.created_at
	UpdatedAt      time.Time // bag_configs.updated_at
}

// DailyOverride adjusts or suspends a restaurant's offer for one calendar
// date.  At most one override exists per (restaurant, date); deleting it
// resets the date to the config defaults.  A nil Quantity or pickup window
// field means "inherit from the config".
type DailyOverride struct {
	ID           uint64    // daily_overrides.id
	RestaurantID uint64    // daily_overrides.restaurant_id
	Date         string    // daily_overrides.date (YYYY-MM-DD)
	Quantity     *uint32   // daily_overrides.quantity (nullable)
	PickupStart  *string   // daily_overrides.pickup_start (nullable)
	PickupEnd    *string   // daily_overrides.pickup_end (nullable)
	IsSuspended  bool      // daily_overrides.is_suspended
	CreatedAt    time.Time // daily_overrides.created_at
	UpdatedAt    time.Time // daily_overrides.updated_at
}
