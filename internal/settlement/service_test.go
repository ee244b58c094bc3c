package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastcrumb/surplusbag/internal/model"
	"github.com/lastcrumb/surplusbag/internal/payment"
)

// MockPayoutStore implements PayoutStore for testing
type MockPayoutStore struct {
	Created   []*model.Payout
	CreateErr error
	Pending   []model.Payout
	Paid      map[uint64]string // payout ID -> transfer ref
	MarkErr   error
}

func (m *MockPayoutStore) Create(_ context.Context, p *model.Payout) error {
	m.Created = append(m.Created, p)
	return m.CreateErr
}

// ListPendingByRestaurant mirrors the real store: records created through
// Create join the pending population only while their status is PENDING.
func (m *MockPayoutStore) ListPendingByRestaurant(_ context.Context, _ uint64) ([]model.Payout, error) {
	out := append([]model.Payout{}, m.Pending...)
	for _, p := range m.Created {
		if p.Status == model.PayoutPending {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *MockPayoutStore) MarkPaidIf(_ context.Context, payoutID uint64, transferRef string) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	if m.Paid == nil {
		m.Paid = map[uint64]string{}
	}
	m.Paid[payoutID] = transferRef
	return nil
}

// MockAccountStore implements AccountStore for testing
type MockAccountStore struct {
	Ref string
}

func (m *MockAccountStore) PayoutAccountRef(_ context.Context, _ uint64) (string, error) {
	return m.Ref, nil
}

// MockReservationSource implements ReservationSource for testing
type MockReservationSource struct {
	Missing []model.Reservation
}

func (m *MockReservationSource) ListSettledWithoutPayout(_ context.Context, _ uint64) ([]model.Reservation, error) {
	return m.Missing, nil
}

// MockRates implements RateSource for testing
type MockRates struct {
	Rate float64
}

func (m *MockRates) Get(_ context.Context) (*model.PlatformSettings, error) {
	return &model.PlatformSettings{CommissionRate: m.Rate}, nil
}

// MockGateway implements payment.Gateway; only the transfer-related
// methods matter here.
type MockGateway struct {
	ChargesEnabled bool
	Transfers      []int64
	TransferErrFor map[string]error // groupRef -> error
}

func (m *MockGateway) Authorize(_ context.Context, _ payment.AuthorizeParams) (*payment.CheckoutSession, error) {
	return nil, errors.New("not implemented")
}

func (m *MockGateway) LookupSession(_ context.Context, _ string) (*payment.SessionInfo, error) {
	return nil, errors.New("not implemented")
}

func (m *MockGateway) Capture(_ context.Context, _ string) (int64, error) {
	return 0, errors.New("not implemented")
}

func (m *MockGateway) Void(_ context.Context, _ string) error {
	return errors.New("not implemented")
}

func (m *MockGateway) IntentStatus(_ context.Context, _ string) (payment.IntentState, error) {
	return payment.IntentUnknown, errors.New("not implemented")
}

func (m *MockGateway) Transfer(_ context.Context, _ string, amountCents int64, _, groupRef string) (string, error) {
	if err := m.TransferErrFor[groupRef]; err != nil {
		return "", err
	}
	m.Transfers = append(m.Transfers, amountCents)
	return "tr_" + groupRef, nil
}

func (m *MockGateway) AccountChargesEnabled(_ context.Context, _ string) (bool, error) {
	return m.ChargesEnabled, nil
}

func TestRecordPayout(t *testing.T) {
	store := &MockPayoutStore{}
	svc := NewService(store, &MockAccountStore{}, &MockReservationSource{}, &MockRates{Rate: 10.0}, &MockGateway{}, "eur")

	res := &model.Reservation{ID: 7, RestaurantID: 3}
	p, err := svc.RecordPayout(context.Background(), res, 999, 50.0)

	require.NoError(t, err)
	require.Len(t, store.Created, 1)
	assert.Equal(t, uint64(7), p.ReservationID)
	assert.Equal(t, int64(500), p.PlatformCents)
	assert.Equal(t, int64(499), p.RestaurantCents)
	assert.Equal(t, 50.0, p.CommissionRate)
	assert.Equal(t, model.PayoutPending, p.Status)
}

func TestSweepSkipsWithoutAccount(t *testing.T) {
	store := &MockPayoutStore{Pending: []model.Payout{{ID: 1, RestaurantCents: 450}}}
	gw := &MockGateway{ChargesEnabled: true}
	svc := NewService(store, &MockAccountStore{Ref: ""}, &MockReservationSource{}, &MockRates{Rate: 10.0}, gw, "eur")

	report, err := svc.SweepPendingTransfers(context.Background(), 3)

	require.NoError(t, err)
	assert.Zero(t, report.Transferred)
	assert.Empty(t, gw.Transfers)
}

func TestSweepSkipsInactiveAccount(t *testing.T) {
	store := &MockPayoutStore{Pending: []model.Payout{{ID: 1, RestaurantCents: 450}}}
	gw := &MockGateway{ChargesEnabled: false}
	svc := NewService(store, &MockAccountStore{Ref: "acct_1"}, &MockReservationSource{}, &MockRates{Rate: 10.0}, gw, "eur")

	report, err := svc.SweepPendingTransfers(context.Background(), 3)

	require.NoError(t, err)
	assert.Zero(t, report.Transferred)
	assert.Empty(t, gw.Transfers)
}

func TestSweepTransfersPending(t *testing.T) {
	store := &MockPayoutStore{Pending: []model.Payout{
		{ID: 1, ReservationID: 11, RestaurantCents: 450},
		{ID: 2, ReservationID: 12, RestaurantCents: 0}, // fully commissioned, nothing to move
		{ID: 3, ReservationID: 13, RestaurantCents: 900},
	}}
	gw := &MockGateway{ChargesEnabled: true}
	svc := NewService(store, &MockAccountStore{Ref: "acct_1"}, &MockReservationSource{}, &MockRates{Rate: 10.0}, gw, "eur")

	report, err := svc.SweepPendingTransfers(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Transferred)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Failures)
	assert.Equal(t, []int64{450, 900}, gw.Transfers)
	assert.Equal(t, "tr_reservation-11", store.Paid[1])
	assert.Equal(t, "tr_reservation-13", store.Paid[3])
}

// One failing transfer must not abort the rest of the batch.
func TestSweepIsolatesFailures(t *testing.T) {
	store := &MockPayoutStore{Pending: []model.Payout{
		{ID: 1, ReservationID: 11, RestaurantCents: 450},
		{ID: 2, ReservationID: 12, RestaurantCents: 600},
		{ID: 3, ReservationID: 13, RestaurantCents: 900},
	}}
	gw := &MockGateway{
		ChargesEnabled: true,
		TransferErrFor: map[string]error{
			fmt.Sprintf("reservation-%d", 12): payment.ErrTransferFailed,
		},
	}
	svc := NewService(store, &MockAccountStore{Ref: "acct_1"}, &MockReservationSource{}, &MockRates{Rate: 10.0}, gw, "eur")

	report, err := svc.SweepPendingTransfers(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Transferred)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, uint64(2), report.Failures[0].PayoutID)
	assert.ErrorIs(t, report.Failures[0].Err, payment.ErrTransferFailed)
	_, paid := store.Paid[2]
	assert.False(t, paid, "failed payout must stay pending")
}

// A destination charge already routed the restaurant share at capture, so
// its record must be written PAID and never picked up by a later sweep.
func TestRecordPayoutRoutedChargeIsPaid(t *testing.T) {
	store := &MockPayoutStore{}
	svc := NewService(store, &MockAccountStore{}, &MockReservationSource{}, &MockRates{Rate: 10.0}, &MockGateway{}, "eur")

	res := &model.Reservation{ID: 7, RestaurantID: 3, PaymentIntentRef: "pi_7", FundsRouted: true}
	p, err := svc.RecordPayout(context.Background(), res, 999, 50.0)

	require.NoError(t, err)
	assert.Equal(t, model.PayoutPaid, p.Status)
	require.NotNil(t, p.TransferRef)
	assert.Equal(t, "pi_7", *p.TransferRef)
	assert.Equal(t, p.TotalCents, p.PlatformCents+p.RestaurantCents)
}

func TestSweepNeverTransfersRoutedCharge(t *testing.T) {
	store := &MockPayoutStore{}
	gw := &MockGateway{ChargesEnabled: true}
	svc := NewService(store, &MockAccountStore{Ref: "acct_1"}, &MockReservationSource{}, &MockRates{Rate: 50.0}, gw, "eur")

	res := &model.Reservation{ID: 7, RestaurantID: 3, PaymentIntentRef: "pi_7", FundsRouted: true}
	_, err := svc.RecordPayout(context.Background(), res, 999, 50.0)
	require.NoError(t, err)

	report, err := svc.SweepPendingTransfers(context.Background(), 3)

	require.NoError(t, err)
	assert.Zero(t, report.Transferred)
	assert.Empty(t, gw.Transfers, "the restaurant share moved with the capture and must not move again")
}

// Settled reservations whose record write failed at accept time are
// backfilled by the sweep; full-charge ones then join the transfer batch
// in the same run, routed ones come in PAID and are left alone.
func TestSweepBackfillsMissingRecords(t *testing.T) {
	store := &MockPayoutStore{}
	gw := &MockGateway{ChargesEnabled: true}
	missing := &MockReservationSource{Missing: []model.Reservation{
		{ID: 11, RestaurantID: 3, AmountCents: 999, PaymentIntentRef: "pi_11", Status: model.StatusAccepted},
		{ID: 12, RestaurantID: 3, AmountCents: 600, PaymentIntentRef: "pi_12", Status: model.StatusCompleted, FundsRouted: true},
	}}
	svc := NewService(store, &MockAccountStore{Ref: "acct_1"}, missing, &MockRates{Rate: 50.0}, gw, "eur")

	report, err := svc.SweepPendingTransfers(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Backfilled)
	assert.Equal(t, 1, report.Transferred)
	assert.Equal(t, []int64{499}, gw.Transfers)
	require.Len(t, store.Created, 2)
	assert.Equal(t, 50.0, store.Created[0].CommissionRate)
	assert.Equal(t, model.PayoutPaid, store.Created[1].Status)
}
