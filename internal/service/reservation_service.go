// Package service orchestrates the reservation lifecycle: checkout
// verification, merchant decisions, pickup and expiry.  Every state
// transition is expressed as a conditional compare-and-set in the store,
// and gateway calls are made strictly after the local transition is known,
// so two actors racing on the same reservation can never both reach the
// payment processor.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/payment"
	"github.com/lastcrumb/surplusbag/internal/queue"
	"github.com/lastcrumb/surplusbag/internal/repository"
	"github.com/lastcrumb/surplusbag/internal/utils"
)

// ErrPickupCodeMismatch is returned when the code presented at pickup does
// not match the reservation's code.
var ErrPickupCodeMismatch = errors.New("pickup code mismatch")

// ConfigStore is the slice of the bag-config repository the service needs:
// plain reads for the advisory checkout check and the locking read that
// serializes admission.  The concrete implementation is
// repository.BagConfigRepo; tests substitute a mock.
type ConfigStore interface {
	GetByRestaurant(ctx context.Context, restaurantID uint64) (*model.BagConfig, error)
	GetByRestaurantForUpdateTx(ctx context.Context, tx *sql.Tx, restaurantID uint64) (*model.BagConfig, error)
	PayoutAccountRef(ctx context.Context, restaurantID uint64) (string, error)
}

// OverrideStore reads the daily override inside the admission transaction.
type OverrideStore interface {
	GetTx(ctx context.Context, tx *sql.Tx, restaurantID uint64, date string) (*model.DailyOverride, error)
}

// InventoryStore answers availability questions, advisory and
// transactional.
type InventoryStore interface {
	AvailableUnits(ctx context.Context, restaurantID uint64, date string) (uint32, error)
	CountActiveTx(ctx context.Context, tx *sql.Tx, restaurantID uint64, date string) (uint32, error)
}

// ReservationStore is the slice of the reservation repository the service
// needs.  The concrete implementation is repository.ReservationRepo; tests
// substitute a mock.
type ReservationStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetByCheckoutSession(ctx context.Context, sessionRef string) (*model.Reservation, error)
	UpdateStatusIf(ctx context.Context, id uint64, from, to model.Status) error
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Reservation, error)
}

// OwnershipStore resolves merchant ownership of restaurants.
type OwnershipStore interface {
	OwnerOf(ctx context.Context, restaurantID uint64) (uint64, error)
}

// SettingsStore reads the platform settings snapshot.
type SettingsStore interface {
	Get(ctx context.Context) (*model.PlatformSettings, error)
}

// PayoutRecorder records the commission split once funds are captured.
type PayoutRecorder interface {
	RecordPayout(ctx context.Context, res *model.Reservation, totalCents int64, ratePercent float64) (*model.Payout, error)
}

// EventPublisher emits reservation events; failures are logged and
// swallowed, never surfaced to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.ReservationEvent) error
}

// ReservationService drives the reservation state machine.  Only the
// admission transaction in the verification path touches the db handle
// directly; everything else goes through the narrow store interfaces so
// it can be unit-tested without a database.
type ReservationService struct {
	db           *sql.DB
	cfgRepo      ConfigStore
	ovrRepo      OverrideStore
	invRepo      InventoryStore
	reservations ReservationStore
	owners       OwnershipStore
	settings     SettingsStore
	payouts      PayoutRecorder
	gateway      payment.Gateway
	events       EventPublisher

	checkout      CheckoutOptions
	confirmWindow time.Duration
}

// NewReservationService constructs the service.  The store interfaces,
// settings, payouts and gateway must be non-nil; events may be nil to
// disable publishing.
func NewReservationService(
	db *sql.DB,
	cfgRepo ConfigStore,
	ovrRepo OverrideStore,
	invRepo InventoryStore,
	reservations ReservationStore,
	owners OwnershipStore,
	settings SettingsStore,
	payouts PayoutRecorder,
	gateway payment.Gateway,
	events EventPublisher,
	checkout CheckoutOptions,
	confirmWindow time.Duration,
) *ReservationService {
	if reservations == nil || owners == nil || settings == nil || payouts == nil || gateway == nil {
		panic("nil dependency passed to NewReservationService")
	}
	return &ReservationService{
		db:            db,
		cfgRepo:       cfgRepo,
		ovrRepo:       ovrRepo,
		invRepo:       invRepo,
		reservations:  reservations,
		owners:        owners,
		settings:      settings,
		payouts:       payouts,
		gateway:       gateway,
		events:        events,
		checkout:      checkout,
		confirmWindow: confirmWindow,
	}
}

// CreateFromVerifiedCheckout idempotently produces-or-returns the
// reservation for a finished checkout session.  The unit of inventory is
// claimed here, after payment is known, inside one transaction that locks
// the restaurant's config row: the count-and-insert cannot race with a
// concurrent verification for the last unit.  When admission fails the
// payment hold is released before returning ErrOutOfStock.
func (s *ReservationService) CreateFromVerifiedCheckout(ctx context.Context, sessionRef string, consumerID, restaurantID uint64, pickupDate string) (*model.Reservation, error) {
	// Fast idempotency path: a reservation for this session already exists.
	if existing, err := s.reservations.GetByCheckoutSession(ctx, sessionRef); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Resolve the session at the processor before touching any lock.
	info, err := s.gateway.LookupSession(ctx, sessionRef)
	if err != nil {
		return nil, err
	}

	code, err := utils.NewPickupCode()
	if err != nil {
		return nil, err
	}
	res := &model.Reservation{
		ConsumerID:         consumerID,
		RestaurantID:       restaurantID,
		PickupDate:         pickupDate,
		PickupCode:         code,
		PaymentIntentRef:   info.IntentRef,
		CheckoutSessionRef: sessionRef,
		AmountCents:        info.AmountCents,
		FundsRouted:        info.FundsRouted,
		Status:             model.StatusPending,
	}

	if err := s.admitAndInsert(ctx, res); err != nil {
		if repository.IsDuplicateEntry(err) {
			// Lost the race against a concurrent verification of the
			// same session; return the winner's row.
			return s.reservations.GetByCheckoutSession(ctx, sessionRef)
		}
		if errors.Is(err, repository.ErrOutOfStock) {
			// Inventory is gone; release the consumer's funds.  The
			// hold was created by this flow, so voiding it cannot
			// collide with a capture.
			if verr := s.gateway.Void(ctx, info.IntentRef); verr != nil &&
				!errors.Is(verr, payment.ErrAlreadyVoided) && !errors.Is(verr, payment.ErrAlreadyCaptured) {
				log.Printf("reservation: void after out-of-stock failed for intent %s: %v", info.IntentRef, verr)
			}
		}
		return nil, err
	}

	// Degenerate already-captured path: sessions settled at checkout get
	// their payout record immediately, and a later accept skips the
	// gateway entirely.  A failed record write does not fail the
	// verification; the settlement sweep backfills it.
	if info.Captured {
		if err := s.recordPayout(ctx, res); err != nil {
			log.Printf("reservation %d: payout record deferred to settlement sweep: %v", res.ID, err)
		}
	}
	return res, nil
}

// admitAndInsert performs the atomic count-and-insert under the config row
// lock.  The lock is held only for local statements, never across a
// gateway call.
func (s *ReservationService) admitAndInsert(ctx context.Context, res *model.Reservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cfg, err := s.cfgRepo.GetByRestaurantForUpdateTx(ctx, tx, res.RestaurantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrOutOfStock
		}
		return err
	}
	ovr, err := s.ovrRepo.GetTx(ctx, tx, res.RestaurantID, res.PickupDate)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		ovr = nil
	}
	quantity := repository.EffectiveQuantity(cfg, ovr)
	if quantity == 0 {
		return repository.ErrOutOfStock
	}
	reserved, err := s.invRepo.CountActiveTx(ctx, tx, res.RestaurantID, res.PickupDate)
	if err != nil {
		return err
	}
	if reserved >= quantity {
		return repository.ErrOutOfStock
	}
	resRepo, ok := s.reservations.(*repository.ReservationRepo)
	if !ok {
		return errors.New("reservation store does not support transactional create")
	}
	if err := resRepo.CreateTx(ctx, tx, res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Decide applies a merchant's accept or decline to a PENDING reservation.
// The caller must own the restaurant.  On accept the transition is taken
// optimistically before the capture so that a racing sweeper cannot also
// reach the gateway; a capture failure compensates back to PENDING and
// surfaces payment.ErrCaptureFailed for the merchant to retry.
func (s *ReservationService) Decide(ctx context.Context, reservationID, ownerID uint64, accept bool) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, res.RestaurantID, ownerID); err != nil {
		return nil, err
	}
	if accept {
		return s.acceptReservation(ctx, res)
	}
	return s.cancelPending(ctx, res, queue.EventReservationCancelled)
}

func (s *ReservationService) acceptReservation(ctx context.Context, res *model.Reservation) (*model.Reservation, error) {
	if err := s.reservations.UpdateStatusIf(ctx, res.ID, model.StatusPending, model.StatusAccepted); err != nil {
		return nil, err
	}
	_, err := s.gateway.Capture(ctx, res.PaymentIntentRef)
	switch {
	case err == nil, errors.Is(err, payment.ErrAlreadyCaptured):
		// Captured now, or settled at checkout (degenerate path).
	case errors.Is(err, payment.ErrAlreadyVoided):
		// The hold is gone; the reservation cannot be accepted.
		s.compensateAccept(ctx, res.ID)
		return nil, payment.ErrCaptureFailed
	default:
		s.compensateAccept(ctx, res.ID)
		return nil, payment.ErrCaptureFailed
	}
	// Funds are captured at this point, so a failed record write must not
	// undo the accept; the row stays ACCEPTED and the settlement sweep
	// backfills the missing record on its next run.
	if err := s.recordPayout(ctx, res); err != nil {
		log.Printf("reservation %d: payout record deferred to settlement sweep: %v", res.ID, err)
	}
	res.Status = model.StatusAccepted
	s.publish(ctx, res, queue.EventReservationConfirmed)
	return res, nil
}

// compensateAccept returns a reservation to PENDING after a failed
// capture.  Failure to compensate is logged; the row is then stuck in
// ACCEPTED without funds and needs operator attention, which is preferable
// to retrying a capture nobody asked for.
func (s *ReservationService) compensateAccept(ctx context.Context, reservationID uint64) {
	if err := s.reservations.UpdateStatusIf(ctx, reservationID, model.StatusAccepted, model.StatusPending); err != nil {
		log.Printf("reservation %d: failed to roll back accept after capture failure: %v", reservationID, err)
	}
}

// CancelByConsumer lets the owning consumer cancel their own PENDING
// reservation, releasing the hold and the inventory unit.
func (s *ReservationService) CancelByConsumer(ctx context.Context, reservationID, consumerID uint64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.ConsumerID != consumerID {
		return nil, repository.ErrForbidden
	}
	return s.cancelPending(ctx, res, queue.EventReservationCancelled)
}

// cancelPending moves a PENDING reservation to CANCELLED and releases the
// payment hold.  The status flip also releases the inventory unit, since
// availability counts non-cancelled rows; because the CAS fires at most
// once, the unit cannot be double-credited.
func (s *ReservationService) cancelPending(ctx context.Context, res *model.Reservation, eventType string) (*model.Reservation, error) {
	if err := s.reservations.UpdateStatusIf(ctx, res.ID, model.StatusPending, model.StatusCancelled); err != nil {
		return nil, err
	}
	if err := s.voidReconciled(ctx, res.PaymentIntentRef); err != nil {
		log.Printf("reservation %d: void after cancel did not complete: %v", res.ID, err)
	}
	res.Status = model.StatusCancelled
	s.publish(ctx, res, eventType)
	return res, nil
}

// MarkPickedUp completes an ACCEPTED reservation.  When a code is
// presented it must match the reservation's pickup code
// (case-insensitively).  No payment action happens here; funds were
// captured at accept time.
func (s *ReservationService) MarkPickedUp(ctx context.Context, reservationID, ownerID uint64, presentedCode string) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, res.RestaurantID, ownerID); err != nil {
		return nil, err
	}
	if presentedCode != "" && !res.CodeMatches(presentedCode) {
		return nil, ErrPickupCodeMismatch
	}
	if err := s.reservations.UpdateStatusIf(ctx, res.ID, model.StatusAccepted, model.StatusCompleted); err != nil {
		return nil, err
	}
	res.Status = model.StatusCompleted
	return res, nil
}

// requireOwner rejects merchant actions on restaurants the caller does not
// own.
func (s *ReservationService) requireOwner(ctx context.Context, restaurantID, ownerID uint64) error {
	actual, err := s.owners.OwnerOf(ctx, restaurantID)
	if err != nil {
		return err
	}
	if actual != ownerID {
		return repository.ErrForbidden
	}
	return nil
}

// recordPayout snapshots the current commission rate and writes the payout
// record for a captured reservation.
func (s *ReservationService) recordPayout(ctx context.Context, res *model.Reservation) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	_, err = s.payouts.RecordPayout(ctx, res, res.AmountCents, settings.CommissionRate)
	return err
}

// voidReconciled voids a payment hold, tolerating intents with no
// remaining hold.  A transport failure is resolved by re-querying the
// intent's true state: only a hold that is demonstrably still in place
// counts as a failed void.
func (s *ReservationService) voidReconciled(ctx context.Context, intentRef string) error {
	err := s.gateway.Void(ctx, intentRef)
	if err == nil || errors.Is(err, payment.ErrAlreadyVoided) || errors.Is(err, payment.ErrAlreadyCaptured) {
		return nil
	}
	state, stErr := s.gateway.IntentStatus(ctx, intentRef)
	if stErr != nil {
		return err
	}
	switch state {
	case payment.IntentVoided, payment.IntentCaptured:
		// No hold remains; nothing left to void.
		return nil
	default:
		return err
	}
}

// publish emits an event best-effort.
func (s *ReservationService) publish(ctx context.Context, res *model.Reservation, eventType string) {
	if s.events == nil {
		return
	}
	ev := queue.ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          eventType,
		ReservationID: res.ID,
		ConsumerID:    res.ConsumerID,
		RestaurantID:  res.RestaurantID,
		PickupDate:    res.PickupDate,
		AmountCents:   res.AmountCents,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("reservation %d: event publish failed: %v", res.ID, err)
	}
}
