package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/payment"
	"github.com/lastcrumb/surplusbag/internal/repository"
)

// MockStore implements ReservationStore with real compare-and-set
// semantics over an in-memory map, so races between actors can be
// simulated by flipping a status between list and CAS.
type MockStore struct {
	Rows  map[uint64]*model.Reservation
	Stale []model.Reservation
}

func (m *MockStore) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	r, ok := m.Rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *MockStore) GetByCheckoutSession(_ context.Context, sessionRef string) (*model.Reservation, error) {
	for _, r := range m.Rows {
		if r.CheckoutSessionRef == sessionRef {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MockStore) UpdateStatusIf(_ context.Context, id uint64, from, to model.Status) error {
	r, ok := m.Rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	if r.Status != from || !model.CanTransition(from, to) {
		return repository.ErrInvalidTransition
	}
	r.Status = to
	return nil
}

func (m *MockStore) ListPendingOlderThan(_ context.Context, _ time.Time) ([]model.Reservation, error) {
	return m.Stale, nil
}

// MockOwners implements OwnershipStore
type MockOwners struct {
	Owner uint64
}

func (m *MockOwners) OwnerOf(_ context.Context, _ uint64) (uint64, error) {
	return m.Owner, nil
}

// MockSettings implements SettingsStore
type MockSettings struct {
	Rate        float64
	Maintenance bool
}

func (m *MockSettings) Get(_ context.Context) (*model.PlatformSettings, error) {
	return &model.PlatformSettings{CommissionRate: m.Rate, MaintenanceMode: m.Maintenance}, nil
}

// MockPayouts implements PayoutRecorder
type MockPayouts struct {
	Attempts  int
	Recorded  []uint64 // reservation IDs
	Rates     []float64
	RecordErr error
}

func (m *MockPayouts) RecordPayout(_ context.Context, res *model.Reservation, _ int64, ratePercent float64) (*model.Payout, error) {
	m.Attempts++
	if m.RecordErr != nil {
		return nil, m.RecordErr
	}
	m.Recorded = append(m.Recorded, res.ID)
	m.Rates = append(m.Rates, ratePercent)
	return &model.Payout{ReservationID: res.ID}, nil
}

// MockConfigs implements ConfigStore
type MockConfigs struct {
	Cfg        *model.BagConfig
	AccountRef string
}

func (m *MockConfigs) GetByRestaurant(_ context.Context, _ uint64) (*model.BagConfig, error) {
	if m.Cfg == nil {
		return nil, sql.ErrNoRows
	}
	return m.Cfg, nil
}

func (m *MockConfigs) GetByRestaurantForUpdateTx(ctx context.Context, _ *sql.Tx, restaurantID uint64) (*model.BagConfig, error) {
	return m.GetByRestaurant(ctx, restaurantID)
}

func (m *MockConfigs) PayoutAccountRef(_ context.Context, _ uint64) (string, error) {
	return m.AccountRef, nil
}

// MockInventory implements InventoryStore
type MockInventory struct {
	Remaining uint32
}

func (m *MockInventory) AvailableUnits(_ context.Context, _ uint64, _ string) (uint32, error) {
	return m.Remaining, nil
}

func (m *MockInventory) CountActiveTx(_ context.Context, _ *sql.Tx, _ uint64, _ string) (uint32, error) {
	return 0, nil
}

// MockGateway implements payment.Gateway and counts calls per intent.
type MockGateway struct {
	AuthorizeCalls int
	LastAuthorize  payment.AuthorizeParams
	LookupCalls    int
	CaptureCalls   map[string]int
	VoidCalls      map[string]int
	CaptureErr     error
	VoidErr        error
	State          payment.IntentState
	StateErr       error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		CaptureCalls: map[string]int{},
		VoidCalls:    map[string]int{},
		State:        payment.IntentHeld,
	}
}

func (m *MockGateway) Authorize(_ context.Context, p payment.AuthorizeParams) (*payment.CheckoutSession, error) {
	m.AuthorizeCalls++
	m.LastAuthorize = p
	return &payment.CheckoutSession{SessionRef: "cs_test", CheckoutURL: "https://pay.example/cs_test"}, nil
}

func (m *MockGateway) LookupSession(_ context.Context, sessionRef string) (*payment.SessionInfo, error) {
	m.LookupCalls++
	return &payment.SessionInfo{SessionRef: sessionRef, IntentRef: "pi_" + sessionRef, AmountCents: 500}, nil
}

func (m *MockGateway) Capture(_ context.Context, intentRef string) (int64, error) {
	m.CaptureCalls[intentRef]++
	if m.CaptureErr != nil {
		return 0, m.CaptureErr
	}
	return 500, nil
}

func (m *MockGateway) Void(_ context.Context, intentRef string) error {
	m.VoidCalls[intentRef]++
	return m.VoidErr
}

func (m *MockGateway) IntentStatus(_ context.Context, _ string) (payment.IntentState, error) {
	return m.State, m.StateErr
}

func (m *MockGateway) Transfer(_ context.Context, _ string, _ int64, _, _ string) (string, error) {
	return "tr_test", nil
}

func (m *MockGateway) AccountChargesEnabled(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func newTestService(store *MockStore, gw *MockGateway, payouts *MockPayouts) *ReservationService {
	return NewReservationService(
		nil, nil, nil, nil,
		store,
		&MockOwners{Owner: 42},
		&MockSettings{Rate: 10.0},
		payouts,
		gw,
		nil,
		CheckoutOptions{Currency: "eur"},
		15*time.Minute,
	)
}

func pendingRow(id uint64) *model.Reservation {
	return &model.Reservation{
		ID:                 id,
		ConsumerID:         100,
		RestaurantID:       3,
		PickupDate:         "2026-09-01",
		PickupCode:         "KX7R2M",
		PaymentIntentRef:   "pi_1",
		CheckoutSessionRef: "cs_1",
		AmountCents:        500,
		Status:             model.StatusPending,
	}
}

func TestAcceptCapturesAndRecordsPayout(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	payouts := &MockPayouts{}
	svc := newTestService(store, gw, payouts)

	res, err := svc.Decide(context.Background(), 1, 42, true)

	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, res.Status)
	assert.Equal(t, model.StatusAccepted, store.Rows[1].Status)
	assert.Equal(t, 1, gw.CaptureCalls["pi_1"])
	assert.Zero(t, gw.VoidCalls["pi_1"])
	assert.Equal(t, []uint64{1}, payouts.Recorded)
	assert.Equal(t, []float64{10.0}, payouts.Rates)
}

func TestAcceptCaptureFailureStaysPending(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	gw.CaptureErr = payment.ErrCaptureFailed
	payouts := &MockPayouts{}
	svc := newTestService(store, gw, payouts)

	_, err := svc.Decide(context.Background(), 1, 42, true)

	assert.ErrorIs(t, err, payment.ErrCaptureFailed)
	assert.Equal(t, model.StatusPending, store.Rows[1].Status, "compensation must return the row to pending")
	assert.Empty(t, payouts.Recorded)
}

// Verifying a session that already produced a reservation must return the
// existing row without going back to the processor or creating another.
func TestVerifyReturnsExistingReservation(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	svc := newTestService(store, gw, &MockPayouts{})

	res, err := svc.CreateFromVerifiedCheckout(context.Background(), "cs_1", 100, 3, "2026-09-01")

	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.ID)
	assert.Len(t, store.Rows, 1)
	assert.Zero(t, gw.LookupCalls, "an existing reservation must short-circuit the processor call")
}

// Once the capture succeeded the accept must stick even when the payout
// record cannot be written; the settlement sweep backfills the record
// later, so the row must not be left needing a second capture.
func TestAcceptKeepsAcceptedWhenPayoutRecordFails(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	payouts := &MockPayouts{RecordErr: errors.New("payouts table unavailable")}
	svc := newTestService(store, gw, payouts)

	res, err := svc.Decide(context.Background(), 1, 42, true)

	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, res.Status)
	assert.Equal(t, model.StatusAccepted, store.Rows[1].Status)
	assert.Equal(t, 1, gw.CaptureCalls["pi_1"])
	assert.Equal(t, 1, payouts.Attempts)
	assert.Empty(t, payouts.Recorded)
}

// Sessions that settled at checkout come back ErrAlreadyCaptured from a
// later capture; the accept must still succeed without charging again.
func TestAcceptAlreadyCapturedIsSuccess(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	gw.CaptureErr = payment.ErrAlreadyCaptured
	payouts := &MockPayouts{}
	svc := newTestService(store, gw, payouts)

	res, err := svc.Decide(context.Background(), 1, 42, true)

	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, res.Status)
	assert.Equal(t, []uint64{1}, payouts.Recorded)
}

func TestDecideRejectsNonOwner(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	svc := newTestService(store, gw, &MockPayouts{})

	_, err := svc.Decide(context.Background(), 1, 999, true)

	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.Equal(t, model.StatusPending, store.Rows[1].Status)
	assert.Zero(t, gw.CaptureCalls["pi_1"])
}

func TestDeclineVoidsHold(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	svc := newTestService(store, gw, &MockPayouts{})

	res, err := svc.Decide(context.Background(), 1, 42, false)

	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Status)
	assert.Equal(t, 1, gw.VoidCalls["pi_1"])
	assert.Zero(t, gw.CaptureCalls["pi_1"])
}

func TestAcceptExpiredRowFails(t *testing.T) {
	row := pendingRow(1)
	row.Status = model.StatusExpired
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: row}}
	gw := NewMockGateway()
	svc := newTestService(store, gw, &MockPayouts{})

	_, err := svc.Decide(context.Background(), 1, 42, true)

	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	assert.Zero(t, gw.CaptureCalls["pi_1"], "losing the race must not reach the gateway")
}

func TestCancelByConsumer(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	svc := newTestService(store, gw, &MockPayouts{})

	res, err := svc.CancelByConsumer(context.Background(), 1, 100)

	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Status)
	assert.Equal(t, 1, gw.VoidCalls["pi_1"])
}

func TestCancelByOtherConsumerForbidden(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	svc := newTestService(store, gw, &MockPayouts{})

	_, err := svc.CancelByConsumer(context.Background(), 1, 777)

	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.Equal(t, model.StatusPending, store.Rows[1].Status)
	assert.Zero(t, gw.VoidCalls["pi_1"])
}

// A void that fails on transport but whose intent turns out to have no
// remaining hold must not be reported as a failure.
func TestCancelReconcilesUncertainVoid(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	gw := NewMockGateway()
	gw.VoidErr = errors.New("connection reset")
	gw.State = payment.IntentVoided
	svc := newTestService(store, gw, &MockPayouts{})

	res, err := svc.CancelByConsumer(context.Background(), 1, 100)

	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Status)
}

func TestMarkPickedUp(t *testing.T) {
	row := pendingRow(1)
	row.Status = model.StatusAccepted
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: row}}
	svc := newTestService(store, NewMockGateway(), &MockPayouts{})

	res, err := svc.MarkPickedUp(context.Background(), 1, 42, "kx7r2m")

	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, model.StatusCompleted, store.Rows[1].Status)
}

func TestMarkPickedUpWrongCode(t *testing.T) {
	row := pendingRow(1)
	row.Status = model.StatusAccepted
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: row}}
	svc := newTestService(store, NewMockGateway(), &MockPayouts{})

	_, err := svc.MarkPickedUp(context.Background(), 1, 42, "WRONG1")

	assert.ErrorIs(t, err, ErrPickupCodeMismatch)
	assert.Equal(t, model.StatusAccepted, store.Rows[1].Status)
}

func TestMarkPickedUpPendingFails(t *testing.T) {
	store := &MockStore{Rows: map[uint64]*model.Reservation{1: pendingRow(1)}}
	svc := newTestService(store, NewMockGateway(), &MockPayouts{})

	_, err := svc.MarkPickedUp(context.Background(), 1, 42, "")

	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestSweepExpiresStalePending(t *testing.T) {
	a, b := pendingRow(1), pendingRow(2)
	b.PaymentIntentRef = "pi_2"
	b.CheckoutSessionRef = "cs_2"
	store := &MockStore{
		Rows:  map[uint64]*model.Reservation{1: a, 2: b},
		Stale: []model.Reservation{*a, *b},
	}
	gw := NewMockGateway()
	svc := newTestService(store, gw, &MockPayouts{})

	n, err := svc.SweepExpirations(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, model.StatusExpired, store.Rows[1].Status)
	assert.Equal(t, model.StatusExpired, store.Rows[2].Status)
	assert.Equal(t, 1, gw.VoidCalls["pi_1"])
	assert.Equal(t, 1, gw.VoidCalls["pi_2"])
}

// When a merchant accepts between the sweeper's listing and its CAS, the
// sweeper must lose the race silently and never touch that intent.
func TestSweepSkipsRowsClaimedByMerchant(t *testing.T) {
	a, b := pendingRow(1), pendingRow(2)
	b.PaymentIntentRef = "pi_2"
	b.CheckoutSessionRef = "cs_2"
	stale := []model.Reservation{*a, *b}
	// The merchant got to row 2 after the listing was taken.
	b.Status = model.StatusAccepted
	store := &MockStore{
		Rows:  map[uint64]*model.Reservation{1: a, 2: b},
		Stale: stale,
	}
	gw := NewMockGateway()
	svc := newTestService(store, gw, &MockPayouts{})

	n, err := svc.SweepExpirations(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.StatusExpired, store.Rows[1].Status)
	assert.Equal(t, model.StatusAccepted, store.Rows[2].Status)
	assert.Equal(t, 1, gw.VoidCalls["pi_1"])
	assert.Zero(t, gw.VoidCalls["pi_2"], "exactly one actor may reach the gateway per intent")
}
