// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published on the reservation.events queue.
const (
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationExpired   = "reservation.expired"
)

// ReservationEvent is published when a reservation reaches a decision or
// expires.  It contains enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary database.
type ReservationEvent struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	ConsumerID    uint64 `json:"consumer_id"`
	RestaurantID  uint64 `json:"restaurant_id"`
	PickupDate    string `json:"pickup_date"`
	AmountCents   int64  `json:"amount_cents"`
	OccurredAt    string `json:"occurred_at"`
}
