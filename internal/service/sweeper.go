package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/queue"
	"github.com/lastcrumb/surplusbag/internal/repository"
)

// SweepExpirations expires PENDING reservations older than the
// confirmation window, releasing their payment hold and inventory unit.
// It returns the number of reservations expired.
//
// The operation is idempotent and safe to run concurrently with itself and
// with merchant decisions: each row is claimed with a compare-and-set from
// PENDING first, and only the winner of that CAS proceeds to the gateway,
// so exactly one of {void, capture} is ever issued per intent.  Rows lost
// to a concurrent actor are skipped silently.
func (s *ReservationService) SweepExpirations(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.confirmWindow)
	stale, err := s.reservations.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, res := range stale {
		if err := s.reservations.UpdateStatusIf(ctx, res.ID, model.StatusPending, model.StatusExpired); err != nil {
			if errors.Is(err, repository.ErrInvalidTransition) {
				// A merchant decision (or another sweep) got here first.
				continue
			}
			log.Printf("sweeper: reservation %d: expire failed: %v", res.ID, err)
			continue
		}
		if err := s.voidReconciled(ctx, res.PaymentIntentRef); err != nil {
			// The row is already EXPIRED; the hold will lapse at the
			// processor on its own, but flag it for reconciliation.
			log.Printf("sweeper: reservation %d: void did not complete for intent %s: %v",
				res.ID, res.PaymentIntentRef, err)
		}
		res.Status = model.StatusExpired
		s.publish(ctx, &res, queue.EventReservationExpired)
		expired++
	}
	return expired, nil
}
