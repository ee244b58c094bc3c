// Package payment wraps the external payment processor behind a small
// gateway interface so the reservation and settlement services never talk
// to the processor SDK directly.  All amounts are integer cents.  Gateway
// calls are the only slow, network-bound operations in the core; callers
// must treat them as fallible and must not hold database locks across
// them.
package payment

import (
	"context"
	"errors"
)

// ErrAuthorizationFailed is returned when the processor rejects creating a
// hold at checkout time.  No reservation may be created after this error.
var ErrAuthorizationFailed = errors.New("payment authorization failed")

// ErrCaptureFailed is returned when capturing a previously authorized hold
// fails.  The reservation must remain PENDING and the merchant retries.
var ErrCaptureFailed = errors.New("payment capture failed")

// ErrAlreadyCaptured is returned by Capture and Void when the intent has
// already been captured.  Callers treat it as an idempotent signal, never
// as a reason to charge again.
var ErrAlreadyCaptured = errors.New("payment intent already captured")

// ErrAlreadyVoided is returned by Capture and Void when the hold has
// already been released.  Void callers tolerate it as a no-op.
var ErrAlreadyVoided = errors.New("payment intent already voided")

// ErrSessionNotPaid is returned by LookupSession when the checkout session
// exists but the consumer never completed payment.
var ErrSessionNotPaid = errors.New("checkout session not paid")

// ErrTransferFailed is returned when moving the restaurant share to a
// connected payout account fails.  The payout record stays PENDING for the
// next sweep.
var ErrTransferFailed = errors.New("payout transfer failed")

// AuthorizeParams describes the charge to place at checkout time.  When
// PayoutAccountRef is set the charge is created as a split transaction
// carrying ApplicationFeeCents for the platform, so a later capture routes
// funds automatically; when it is empty the platform holds the full amount
// and the restaurant share is transferred by the settlement sweep instead.
type AuthorizeParams struct {
	AmountCents         int64
	Currency            string
	ConsumerRef         string // client reference forwarded to the processor
	PayoutAccountRef    string // connected account, empty when not onboarded
	ApplicationFeeCents int64  // platform share, only used with PayoutAccountRef
	SuccessURL          string
	CancelURL           string
}

// CheckoutSession is the processor-hosted page the consumer is sent to.
type CheckoutSession struct {
	SessionRef  string
	CheckoutURL string
}

// SessionInfo reports the verified state of a finished checkout session.
// FundsRouted is true for split-authorized sessions: the intent carries a
// transfer destination, so capturing it moves the restaurant share on its
// own and settlement must not transfer those funds a second time.
type SessionInfo struct {
	SessionRef  string
	IntentRef   string
	AmountCents int64
	Captured    bool // true when the intent settled at checkout (no manual capture step)
	FundsRouted bool // true when the intent is a destination charge
}

// IntentState is the reconciled status of a payment intent, re-queried
// when a capture or void outcome is unknown.
type IntentState string

const (
	IntentHeld     IntentState = "HELD"     // authorized, awaiting capture or void
	IntentCaptured IntentState = "CAPTURED" // funds settled
	IntentVoided   IntentState = "VOIDED"   // hold released
	IntentUnknown  IntentState = "UNKNOWN"
)

// Gateway is the processor surface the core depends on.
type Gateway interface {
	// Authorize creates a manual-capture checkout session collecting the
	// amount from the consumer without settling it.
	Authorize(ctx context.Context, p AuthorizeParams) (*CheckoutSession, error)

	// LookupSession resolves a finished session to its payment intent.
	// Returns ErrSessionNotPaid when the consumer abandoned checkout.
	LookupSession(ctx context.Context, sessionRef string) (*SessionInfo, error)

	// Capture settles a held intent and returns the captured amount in
	// cents.  A repeat capture returns ErrAlreadyCaptured instead of
	// charging twice.
	Capture(ctx context.Context, intentRef string) (int64, error)

	// Void cancels an uncaptured hold.  Voiding an intent with no
	// remaining hold returns ErrAlreadyCaptured or ErrAlreadyVoided.
	Void(ctx context.Context, intentRef string) error

	// IntentStatus re-queries the processor for the intent's true state.
	IntentStatus(ctx context.Context, intentRef string) (IntentState, error)

	// Transfer moves amountCents to a connected payout account and
	// returns the external transfer reference.
	Transfer(ctx context.Context, accountRef string, amountCents int64, currency, groupRef string) (string, error)

	// AccountChargesEnabled reports whether a connected account is active
	// and able to receive transfers.
	AccountChargesEnabled(ctx context.Context, accountRef string) (bool, error)
}
