package model

import "time"

// PayoutStatus enumerates the lifecycle of a payout record.  A record is
// created PENDING when funds are captured and becomes PAID once the
// restaurant share has been transferred to the merchant's connected
// payout account.
type PayoutStatus string

const (
	PayoutPending PayoutStatus = "PENDING"
	PayoutPaid    PayoutStatus = "PAID"
)

func (s PayoutStatus) String() string { return string(s) }

// Payout records the commission split for one settled reservation.  The
// commission rate is snapshotted at creation time; later rate changes only
// affect future payouts.  Invariant: PlatformCents + RestaurantCents ==
// TotalCents exactly.
type Payout struct {
	ID              uint64       // payouts.id
	ReservationID   uint64       // payouts.reservation_id (unique)
	RestaurantID    uint64       // payouts.restaurant_id
	TotalCents      int64        // payouts.total_cents
	CommissionRate  float64      // payouts.commission_rate (percent, snapshot)
	PlatformCents   int64        // payouts.platform_cents
	RestaurantCents int64        // payouts.restaurant_cents
	Status          PayoutStatus // payouts.status
	TransferRef     *string      // payouts.transfer_ref (nullable until paid)
	CreatedAt       time.Time    // payouts.created_at
	UpdatedAt       time.Time    // payouts.updated_at
}

// PlatformSettings is the process-wide settings row.  The commission rate
// is read once per payout record and never re-applied retroactively.
type PlatformSettings struct {
	CommissionRate  float64   // platform_settings.commission_rate (percent)
	MaintenanceMode bool      // platform_settings.maintenance_mode
	UpdatedAt       time.Time // platform_settings.updated_at
}
