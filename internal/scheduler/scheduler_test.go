package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

type stubAuctions struct {
	expired []models.Auction
	closed  []uuid.UUID
}

func (s *stubAuctions) FindExpired(_ context.Context, _ time.Time) ([]models.Auction, error) {
	return s.expired, nil
}

func (s *stubAuctions) CloseAuction(_ context.Context, id uuid.UUID) error {
	s.closed = append(s.closed, id)
	return nil
}

type stubEscrow struct {
	due []models.EscrowTransaction
}

func (s *stubEscrow) FindReleasable(_ context.Context, _ time.Time) ([]models.EscrowTransaction, error) {
	return s.due, nil
}

type stubOrders struct {
	unpaid    []models.Order
	confirmed []uuid.UUID
	cancelled []uuid.UUID
}

func (s *stubOrders) AutoConfirmDelivery(_ context.Context, id uuid.UUID) error {
	s.confirmed = append(s.confirmed, id)
	return nil
}

func (s *stubOrders) FindUnpaidBefore(_ context.Context, _ time.Time) ([]models.Order, error) {
	return s.unpaid, nil
}

func (s *stubOrders) CancelUnpaid(_ context.Context, id uuid.UUID) error {
	s.cancelled = append(s.cancelled, id)
	return nil
}

type stubLocker struct {
	deny     map[string]bool
	held     []string
	released []string
}

func (s *stubLocker) Acquire(_ context.Context, key string, _ time.Duration) bool {
	if s.deny[key] {
		return false
	}
	s.held = append(s.held, key)
	return true
}

func (s *stubLocker) Release(_ context.Context, key string) {
	s.released = append(s.released, key)
}

func newTestScheduler(a *stubAuctions, e *stubEscrow, o *stubOrders, l *stubLocker) *Scheduler {
	return New(a, e, o, l, Config{
		AuctionCloseInterval: time.Second,
		EscrowSweepInterval:  time.Second,
		PaymentSweepInterval: time.Second,
		LockLeaseTime:        time.Second,
	})
}

func TestCloseExpiredAuctionsUnderLock(t *testing.T) {
	first := models.Auction{ID: uuid.New()}
	second := models.Auction{ID: uuid.New()}
	auctions := &stubAuctions{expired: []models.Auction{first, second}}
	locker := &stubLocker{deny: map[string]bool{"auction:" + second.ID.String(): true}}
	s := newTestScheduler(auctions, &stubEscrow{}, &stubOrders{}, locker)

	s.closeExpiredAuctions(context.Background())

	// The locked auction is skipped until a later tick; the other closes
	// and its lock comes back.
	assert.Equal(t, []uuid.UUID{first.ID}, auctions.closed)
	assert.Equal(t, locker.held, locker.released)
}

func TestReleaseOverdueEscrow(t *testing.T) {
	orderID := uuid.New()
	escrow := &stubEscrow{due: []models.EscrowTransaction{{ID: uuid.New(), OrderID: orderID}}}
	orders := &stubOrders{}
	s := newTestScheduler(&stubAuctions{}, escrow, orders, &stubLocker{})

	s.releaseOverdueEscrow(context.Background())

	assert.Equal(t, []uuid.UUID{orderID}, orders.confirmed)
}

func TestCancelExpiredPaymentsHonoursDeadline(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	overdue := models.Order{ID: uuid.New(), PaymentDeadline: &past}
	pending := models.Order{ID: uuid.New(), PaymentDeadline: &future}
	noDeadline := models.Order{ID: uuid.New()}

	orders := &stubOrders{unpaid: []models.Order{overdue, pending, noDeadline}}
	s := newTestScheduler(&stubAuctions{}, &stubEscrow{}, orders, &stubLocker{})

	s.cancelExpiredPayments(context.Background())

	assert.Equal(t, []uuid.UUID{overdue.ID}, orders.cancelled)
}
