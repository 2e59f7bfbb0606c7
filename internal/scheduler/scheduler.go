package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/goroutine"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/models"
)

// AuctionCloser is the part of the auction service the scheduler drives.
type AuctionCloser interface {
	FindExpired(ctx context.Context, now time.Time) ([]models.Auction, error)
	CloseAuction(ctx context.Context, auctionID uuid.UUID) error
}

// EscrowSweeper finds held funds due for automatic release.
type EscrowSweeper interface {
	FindReleasable(ctx context.Context, now time.Time) ([]models.EscrowTransaction, error)
}

// OrderSweeper handles the order-side consequences of both sweeps.
type OrderSweeper interface {
	AutoConfirmDelivery(ctx context.Context, orderID uuid.UUID) error
	FindUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	CancelUnpaid(ctx context.Context, orderID uuid.UUID) error
}

// Locker is the distributed lock the auction sweep closes auctions under.
type Locker interface {
	Acquire(ctx context.Context, key string, lease time.Duration) bool
	Release(ctx context.Context, key string)
}

// Config carries the sweep intervals and lock lease.
type Config struct {
	AuctionCloseInterval time.Duration
	EscrowSweepInterval  time.Duration
	PaymentSweepInterval time.Duration
	LockLeaseTime        time.Duration
}

// Scheduler owns the three background sweeps: closing expired auctions,
// auto-releasing overdue escrow, and cancelling unpaid orders. Every sweep
// isolates per-item failures so one bad row never stalls the rest.
type Scheduler struct {
	auctions AuctionCloser
	escrow   EscrowSweeper
	orders   OrderSweeper
	locks    Locker
	cfg      Config
}

func New(auctions AuctionCloser, escrow EscrowSweeper, orders OrderSweeper, locks Locker, cfg Config) *Scheduler {
	return &Scheduler{
		auctions: auctions,
		escrow:   escrow,
		orders:   orders,
		locks:    locks,
		cfg:      cfg,
	}
}

// Start launches the sweep loops. They stop when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		s.loop(ctx, s.cfg.AuctionCloseInterval, s.closeExpiredAuctions)
	})
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		s.loop(ctx, s.cfg.EscrowSweepInterval, s.releaseOverdueEscrow)
	})
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		s.loop(ctx, s.cfg.PaymentSweepInterval, s.cancelExpiredPayments)
	})
	logger.Log.Info("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
		}
	}
}

// closeExpiredAuctions finalises auctions past their end time. Each close
// runs under the same per-auction lock bids take, so a close never interleaves
// with an in-flight bid; a lock that cannot be had right now just waits for
// the next tick.
func (s *Scheduler) closeExpiredAuctions(ctx context.Context) {
	expired, err := s.auctions.FindExpired(ctx, time.Now())
	if err != nil {
		logger.Log.Errorf("scheduler: find expired auctions: %v", err)
		return
	}

	for _, auction := range expired {
		key := "auction:" + auction.ID.String()
		if !s.locks.Acquire(ctx, key, s.cfg.LockLeaseTime) {
			continue
		}
		if err := s.auctions.CloseAuction(ctx, auction.ID); err != nil {
			logger.Log.WithField("auction_id", auction.ID).
				Errorf("scheduler: close auction: %v", err)
		}
		s.locks.Release(ctx, key)
	}
}

// releaseOverdueEscrow stands in for buyers who never confirmed delivery.
func (s *Scheduler) releaseOverdueEscrow(ctx context.Context) {
	due, err := s.escrow.FindReleasable(ctx, time.Now())
	if err != nil {
		logger.Log.Errorf("scheduler: find releasable escrow: %v", err)
		return
	}

	for _, tx := range due {
		if err := s.orders.AutoConfirmDelivery(ctx, tx.OrderID); err != nil {
			logger.Log.WithField("order_id", tx.OrderID).
				Errorf("scheduler: auto-confirm delivery: %v", err)
		}
	}
}

// cancelExpiredPayments voids orders whose payment deadline lapsed.
func (s *Scheduler) cancelExpiredPayments(ctx context.Context) {
	unpaid, err := s.orders.FindUnpaidBefore(ctx, time.Now())
	if err != nil {
		logger.Log.Errorf("scheduler: find unpaid orders: %v", err)
		return
	}

	for _, order := range unpaid {
		if order.PaymentDeadline == nil || order.PaymentDeadline.After(time.Now()) {
			continue
		}
		if err := s.orders.CancelUnpaid(ctx, order.ID); err != nil {
			logger.Log.WithField("order_id", order.ID).
				Errorf("scheduler: cancel unpaid order: %v", err)
		}
	}
}
