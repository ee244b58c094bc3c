package model

import (
	"strings"
	"time"
)

// Status enumerates the lifecycle states of a reservation.  A reservation
// is created in StatusPending once the payment hold has been verified and
// moves through the table below; COMPLETED, CANCELLED and EXPIRED are
// terminal.
type Status string

const (
	StatusPending   Status = "PENDING"   // payment held, awaiting merchant decision
	StatusAccepted  Status = "ACCEPTED"  // merchant confirmed, payment captured
	StatusCompleted Status = "COMPLETED" // bag picked up
	StatusCancelled Status = "CANCELLED" // merchant declined or consumer cancelled
	StatusExpired   Status = "EXPIRED"   // confirmation window elapsed
)

// validNext encodes the allowed transitions.  Any pair not present here
// must be rejected by callers before touching the database.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusAccepted: true, StatusCancelled: true, StatusExpired: true},
	StatusAccepted:  {StatusCompleted: true, StatusPending: true},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusExpired:   {},
}

// CanTransition reports whether moving from one status to another is
// permitted.  The ACCEPTED -> PENDING edge exists only as the compensation
// path taken when a capture fails after the optimistic accept; it is not
// reachable through any HTTP surface.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no further transition may leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

func (s Status) String() string { return string(s) }

// Reservation is the central entity of the marketplace core.  One row is
// created per verified checkout session; the checkout session reference is
// unique so verification is naturally idempotent.
//
// Fields:
//
//	ID                 – primary key identifier.
//	ConsumerID         – user who reserved the bag.
//	RestaurantID       – merchant fulfilling the reservation.
//	PickupDate         – calendar date (YYYY-MM-DD) the bag is collected.
//	PickupCode         – short human-readable code presented at pickup.
//	PaymentIntentRef   – external payment intent holding or settling funds.
//	CheckoutSessionRef – external checkout session that produced this row.
//	AmountCents        – total charged to the consumer, in cents.
//	FundsRouted        – the charge was split-authorized against the
//	                     merchant's connected account, so capture routes
//	                     the restaurant share automatically and the
//	                     settlement sweep must not transfer it again.
//	Status             – current lifecycle state.
//	CreatedAt/UpdatedAt – timestamps, stored in UTC.
type Reservation struct {
	ID                 uint64    // reservations.id
	ConsumerID         uint64    // reservations.consumer_id
	RestaurantID       uint64    // reservations.restaurant_id
	PickupDate         string    // reservations.pickup_date (YYYY-MM-DD)
	PickupCode         string    // reservations.pickup_code
	PaymentIntentRef   string    // reservations.payment_intent_ref
	CheckoutSessionRef string    // reservations.checkout_session_ref (unique)
	AmountCents        int64     // reservations.amount_cents
	FundsRouted        bool      // reservations.funds_routed
	Status             Status    // reservations.status
	CreatedAt          time.Time // reservations.created_at
	UpdatedAt          time.Time // reservations.updated_at
}

// CodeMatches compares a presented pickup code against the stored one.
// Pickup codes are lookup keys read back from a consumer's phone, not a
// security boundary, so the comparison is case-insensitive.
func (r *Reservation) CodeMatches(presented string) bool {
	return strings.EqualFold(strings.TrimSpace(presented), r.PickupCode)
}
