package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/repository"
)

// The maintenance flag must block checkout before any inventory or
// gateway work happens.
func TestStartCheckoutBlockedInMaintenance(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{}}
	svc := NewReservationService(
		nil, nil, nil, nil,
		store,
		&MockOwners{Owner: 42},
		&MockSettings{Rate: 10.0, Maintenance: true},
		&MockPayouts{},
		NewMockGateway(),
		nil,
		CheckoutOptions{Currency: "eur"},
		15*time.Minute,
	)

	_, err := svc.StartCheckout(context.Background(), 100, 3, "2026-09-01")

	assert.ErrorIs(t, err, ErrMaintenance)
}

func newCheckoutService(cfgs *MockConfigs, inv *MockInventory, gw *MockGateway, rate float64) *ReservationService {
	return NewReservationService(
		nil, cfgs, nil, inv,
		&MockStore{Rows: map[uint64]*model.Reservation{}},
		&MockOwners{Owner: 42},
		&MockSettings{Rate: rate},
		&MockPayouts{},
		gw,
		nil,
		CheckoutOptions{Currency: "eur"},
		15*time.Minute,
	)
}

// Exhausted stock must be surfaced before the processor is ever asked to
// authorize a hold.
func TestStartCheckoutOutOfStockBeforeAuthorize(t *testing.T) {
	cfgs := &MockConfigs{Cfg: &model.BagConfig{RestaurantID: 3, PriceCents: 999, DailyQuantity: 5}}
	gw := NewMockGateway()
	svc := newCheckoutService(cfgs, &MockInventory{Remaining: 0}, gw, 10.0)

	_, err := svc.StartCheckout(context.Background(), 100, 3, "2026-09-01")

	assert.ErrorIs(t, err, repository.ErrOutOfStock)
	assert.Zero(t, gw.AuthorizeCalls, "no hold may be created once stock is gone")
}

// With an active connected account the session must carry the destination
// and the platform's commission share as the application fee.
func TestStartCheckoutSplitAuthorizesWithFee(t *testing.T) {
	cfgs := &MockConfigs{
		Cfg:        &model.BagConfig{RestaurantID: 3, PriceCents: 999, DailyQuantity: 5},
		AccountRef: "acct_1",
	}
	gw := NewMockGateway()
	svc := newCheckoutService(cfgs, &MockInventory{Remaining: 2}, gw, 50.0)

	sess, err := svc.StartCheckout(context.Background(), 100, 3, "2026-09-01")

	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionRef)
	assert.Equal(t, "acct_1", gw.LastAuthorize.PayoutAccountRef)
	assert.Equal(t, int64(500), gw.LastAuthorize.ApplicationFeeCents)
	assert.Equal(t, int64(999), gw.LastAuthorize.AmountCents)
}

// Without a connected account the platform collects the full amount and
// settlement transfers the restaurant share later.
func TestStartCheckoutWithoutAccountCollectsInFull(t *testing.T) {
	cfgs := &MockConfigs{Cfg: &model.BagConfig{RestaurantID: 3, PriceCents: 999, DailyQuantity: 5}}
	gw := NewMockGateway()
	svc := newCheckoutService(cfgs, &MockInventory{Remaining: 2}, gw, 50.0)

	_, err := svc.StartCheckout(context.Background(), 100, 3, "2026-09-01")

	require.NoError(t, err)
	assert.Empty(t, gw.LastAuthorize.PayoutAccountRef)
	assert.Zero(t, gw.LastAuthorize.ApplicationFeeCents)
}
