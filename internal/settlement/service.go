package settlement

import (
	"context"
	"fmt"
	"log"

	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/payment"
)

// PayoutStore is the slice of the payout repository the settlement
// service needs.
type PayoutStore interface {
	Create(ctx context.Context, p *model.Payout) error
	ListPendingByRestaurant(ctx context.Context, restaurantID uint64) ([]model.Payout, error)
	MarkPaidIf(ctx context.Context, payoutID uint64, transferRef string) error
}

// AccountStore resolves a restaurant to its connected payout account.
type AccountStore interface {
	PayoutAccountRef(ctx context.Context, restaurantID uint64) (string, error)
}

// ReservationSource lists settled reservations whose payout record is
// missing, so the sweep can backfill them.
type ReservationSource interface {
	ListSettledWithoutPayout(ctx context.Context, restaurantID uint64) ([]model.Reservation, error)
}

// RateSource reads the current platform settings for the commission rate
// snapshot of backfilled records.
type RateSource interface {
	Get(ctx context.Context) (*model.PlatformSettings, error)
}

// Service records payout splits at capture time and sweeps pending
// transfers once a merchant's payout account becomes active.
type Service struct {
	payouts      PayoutStore
	accounts     AccountStore
	reservations ReservationSource
	settings     RateSource
	gateway      payment.Gateway
	currency     string
}

// NewService constructs a settlement Service.  All dependencies must be
// non-nil.
func NewService(payouts PayoutStore, accounts AccountStore, reservations ReservationSource, settings RateSource, gateway payment.Gateway, currency string) *Service {
	if payouts == nil || accounts == nil || reservations == nil || settings == nil || gateway == nil {
		panic("nil dependency passed to settlement.NewService")
	}
	return &Service{
		payouts:      payouts,
		accounts:     accounts,
		reservations: reservations,
		settings:     settings,
		gateway:      gateway,
		currency:     currency,
	}
}

// RecordPayout persists one payout record for a captured reservation.  The
// commission rate is the caller's snapshot of the platform settings at
// this moment; it is stored on the record and never recomputed.  Thanks to
// the unique reservation key in the store, calling this twice for the same
// reservation leaves a single record.
//
// For destination charges (FundsRouted) the restaurant share already moved
// at capture time, so the record is written PAID with the payment intent
// as its transfer reference and the sweep never picks it up.  Only charges
// the platform collected in full start out PENDING.
func (s *Service) RecordPayout(ctx context.Context, res *model.Reservation, totalCents int64, ratePercent float64) (*model.Payout, error) {
	split := ComputeSplit(totalCents, ratePercent)
	p := &model.Payout{
		ReservationID:   res.ID,
		RestaurantID:    res.RestaurantID,
		TotalCents:      totalCents,
		CommissionRate:  ratePercent,
		PlatformCents:   split.PlatformCents,
		RestaurantCents: split.RestaurantCents,
		Status:          model.PayoutPending,
	}
	if res.FundsRouted {
		ref := res.PaymentIntentRef
		p.Status = model.PayoutPaid
		p.TransferRef = &ref
	}
	if err := s.payouts.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// TransferError reports the failure of a single payout record during a
// sweep.
type TransferError struct {
	PayoutID uint64
	Err      error
}

func (e TransferError) Error() string {
	return fmt.Sprintf("payout %d: %v", e.PayoutID, e.Err)
}

// SweepReport summarises one run of SweepPendingTransfers.
type SweepReport struct {
	Backfilled  int
	Transferred int
	Skipped     int
	Failures    []TransferError
}

// SweepPendingTransfers initiates a transfer of the restaurant share for
// every PENDING payout record of the given restaurant.  Records with a
// non-positive restaurant amount are skipped, and the whole sweep is
// skipped while the merchant's payout account is missing or not yet able
// to receive charges; the records simply stay PENDING for a later run.
// A failure on one record is collected and does not abort the batch.
//
// Before transferring, the sweep backfills payout records for settled
// reservations that are missing one (the record write failed at accept
// time).  Backfilled records snapshot the commission rate current at
// backfill time and then join the normal pending population, except for
// destination charges, which come in PAID and are never transferred.
func (s *Service) SweepPendingTransfers(ctx context.Context, restaurantID uint64) (*SweepReport, error) {
	report := &SweepReport{}
	if err := s.backfillMissing(ctx, restaurantID, report); err != nil {
		return nil, err
	}
	accountRef, err := s.accounts.PayoutAccountRef(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if accountRef == "" {
		return report, nil
	}
	enabled, err := s.gateway.AccountChargesEnabled(ctx, accountRef)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return report, nil
	}
	pending, err := s.payouts.ListPendingByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	for _, p := range pending {
		if p.RestaurantCents <= 0 {
			report.Skipped++
			continue
		}
		group := fmt.Sprintf("reservation-%d", p.ReservationID)
		transferRef, err := s.gateway.Transfer(ctx, accountRef, p.RestaurantCents, s.currency, group)
		if err != nil {
			log.Printf("settlement: transfer for payout %d failed: %v", p.ID, err)
			report.Failures = append(report.Failures, TransferError{PayoutID: p.ID, Err: err})
			continue
		}
		if err := s.payouts.MarkPaidIf(ctx, p.ID, transferRef); err != nil {
			// The transfer went through but the record could not be
			// flipped; surface it so operators can reconcile.
			log.Printf("settlement: payout %d transferred as %s but not marked paid: %v", p.ID, transferRef, err)
			report.Failures = append(report.Failures, TransferError{PayoutID: p.ID, Err: err})
			continue
		}
		report.Transferred++
	}
	return report, nil
}

// backfillMissing writes the payout record for every settled reservation
// that has none.  The INSERT IGNORE in the store makes a concurrent accept
// retry harmless.
func (s *Service) backfillMissing(ctx context.Context, restaurantID uint64, report *SweepReport) error {
	missing, err := s.reservations.ListSettledWithoutPayout(ctx, restaurantID)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	for i := range missing {
		res := &missing[i]
		if _, err := s.RecordPayout(ctx, res, res.AmountCents, settings.CommissionRate); err != nil {
			log.Printf("settlement: backfill for reservation %d failed: %v", res.ID, err)
			report.Failures = append(report.Failures, TransferError{Err: err})
			continue
		}
		report.Backfilled++
	}
	return nil
}
