package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lastcrumb/surplusbag/internal/payment"
	"github.com/lastcrumb/surplusbag/internal/repository"
	"github.com/lastcrumb/surplusbag/internal/settlement"
)

// ErrMaintenance is returned when new checkouts are blocked by the
// platform maintenance flag.
var ErrMaintenance = errors.New("platform in maintenance mode")

// CheckoutOptions carries the static parameters of checkout sessions.
type CheckoutOptions struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

// StartCheckout begins a reservation attempt: it fails fast on exhausted
// stock, then creates a manual-capture checkout session at the payment
// processor.  No reservation row exists until the session is verified; the
// stock check here is advisory, and admission is re-decided atomically at
// verification time.
//
// When the merchant's payout account is known and able to receive charges,
// the session is created as a split transaction carrying the platform's
// commission share as an application fee.  Without an active account the
// platform collects the full amount and the settlement sweep transfers the
// restaurant share later.
func (s *ReservationService) StartCheckout(ctx context.Context, consumerID, restaurantID uint64, pickupDate string) (*payment.CheckoutSession, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if settings.MaintenanceMode {
		return nil, ErrMaintenance
	}

	cfg, err := s.cfgRepo.GetByRestaurant(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrOutOfStock
		}
		return nil, err
	}
	remaining, err := s.invRepo.AvailableUnits(ctx, restaurantID, pickupDate)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		return nil, repository.ErrOutOfStock
	}

	var payoutRef string
	var feeCents int64
	if accountRef, err := s.cfgRepo.PayoutAccountRef(ctx, restaurantID); err == nil && accountRef != "" {
		enabled, err := s.gateway.AccountChargesEnabled(ctx, accountRef)
		if err == nil && enabled {
			payoutRef = accountRef
			feeCents = settlement.ComputeSplit(cfg.PriceCents, settings.CommissionRate).PlatformCents
		}
	}

	return s.gateway.Authorize(ctx, payment.AuthorizeParams{
		AmountCents:         cfg.PriceCents,
		Currency:            s.checkout.Currency,
		ConsumerRef:         fmt.Sprintf("consumer-%d", consumerID),
		PayoutAccountRef:    payoutRef,
		ApplicationFeeCents: feeCents,
		SuccessURL:          s.checkout.SuccessURL,
		CancelURL:           s.checkout.CancelURL,
	})
}
