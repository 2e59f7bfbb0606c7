package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/marketplace-backend/internal/events"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

// walletAttempts bounds the optimistic retry loop around wallet writes. Three
// attempts absorb ordinary contention; anything hotter surfaces as BUSY.
const walletAttempts = 3

// EscrowService is the money-custody ledger. Buyer funds sit in the platform
// wallet from payment until release or refund; every movement is a pair of
// version-guarded wallet writes inside one transaction, so the total across
// wallets never changes except at a deposit.
type EscrowService struct {
	escrow    EscrowStore
	orders    OrderStore
	publisher events.Publisher
	notifier  Notifier
	feeRate   decimal.Decimal
}

func NewEscrowService(
	escrow EscrowStore,
	orders OrderStore,
	publisher events.Publisher,
	notifier Notifier,
	feeRate decimal.Decimal,
) *EscrowService {
	return &EscrowService{
		escrow:    escrow,
		orders:    orders,
		publisher: publisher,
		notifier:  notifier,
		feeRate:   feeRate,
	}
}

// PaymentInput is one payment submission for an order.
type PaymentInput struct {
	OrderID       uuid.UUID
	BuyerID       uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod string
	ExternalTxID  string
}

// ProcessPayment captures the buyer's payment and takes the funds into
// custody. The capture credits the buyer's wallet and immediately moves the
// full amount to the platform wallet, leaving a HELD transaction behind.
// A second payment for the same order fails on the order status guard.
func (s *EscrowService) ProcessPayment(ctx context.Context, in PaymentInput) (*models.EscrowTransaction, error) {
	order, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load order")
	}
	if order.BuyerID != in.BuyerID {
		return nil, apperror.ErrForbidden
	}
	if order.Status != models.OrderStatusPendingPayment {
		return nil, apperror.New(apperror.ErrCodeConflict, "order is not awaiting payment")
	}
	if !in.Amount.Equal(order.Amount) {
		return nil, apperror.New(apperror.ErrCodeValidation, "payment amount does not match the order amount")
	}

	var escrowTx *models.EscrowTransaction
	for attempt := 0; attempt < walletAttempts; attempt++ {
		buyerWallet, err := s.escrow.GetOrCreateUserWallet(ctx, order.BuyerID)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load buyer wallet")
		}
		platformWallet, err := s.escrow.GetPlatformWallet(ctx)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load platform wallet")
		}

		now := time.Now()
		escrowTx = &models.EscrowTransaction{
			ID:             uuid.New(),
			OrderID:        order.ID,
			DebitWalletID:  buyerWallet.ID,
			CreditWalletID: platformWallet.ID,
			Amount:         in.Amount,
			Status:         models.EscrowStatusHeld,
			PaymentMethod:  in.PaymentMethod,
			ExternalTxID:   in.ExternalTxID,
			HeldAt:         &now,
		}

		// The deposit and the custody transfer cancel out on the buyer side;
		// the write still runs to assert nothing else moved the wallet.
		err = s.escrow.ApplyPayment(ctx, repository.ApplyPaymentParams{
			OrderID: order.ID,
			Wallets: []repository.WalletUpdate{
				{ID: buyerWallet.ID, Balance: buyerWallet.Balance, Version: buyerWallet.Version},
				{ID: platformWallet.ID, Balance: platformWallet.Balance.Add(in.Amount), Version: platformWallet.Version},
			},
			Transaction: escrowTx,
		})
		if errors.Is(err, repository.ErrWalletConflict) {
			continue
		}
		if errors.Is(err, repository.ErrOrderStateConflict) {
			return nil, apperror.New(apperror.ErrCodeConflict, "order is not awaiting payment")
		}
		if errors.Is(err, repository.ErrTransactionExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "order has already been paid")
		}
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to capture payment")
		}

		s.afterPayment(ctx, order, escrowTx)
		return escrowTx, nil
	}

	return nil, apperror.ErrSystemBusy
}

func (s *EscrowService) afterPayment(ctx context.Context, order *models.Order, escrowTx *models.EscrowTransaction) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, events.OrderPaid{
			Envelope: events.NewEnvelope(),
			OrderID:  order.ID,
			BuyerID:  order.BuyerID,
			Amount:   escrowTx.Amount,
		})
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, order.SellerID, "order_paid", map[string]interface{}{
			"order_id": order.ID,
			"amount":   escrowTx.Amount,
		})
	}
	logger.Log.WithField("order_id", order.ID).
		WithField("amount", escrowTx.Amount).
		Info("payment captured, funds held in escrow")
}

// Release pays the seller out of custody. The platform fee stays behind in
// the platform wallet; the order completes. Only HELD funds can be released;
// an already released transaction is a no-op so repeated sweeps stay quiet.
func (s *EscrowService) Release(ctx context.Context, orderID uuid.UUID) error {
	escrowTx, err := s.loadTransaction(ctx, orderID)
	if err != nil {
		return err
	}
	if escrowTx.Status == models.EscrowStatusReleased {
		return nil
	}
	if escrowTx.Status != models.EscrowStatusHeld {
		return apperror.New(apperror.ErrCodeConflict, "escrow funds are not held")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load order")
	}

	fee := escrowTx.Amount.Mul(s.feeRate)
	sellerAmount := escrowTx.Amount.Sub(fee)

	for attempt := 0; attempt < walletAttempts; attempt++ {
		platformWallet, err := s.escrow.GetPlatformWallet(ctx)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load platform wallet")
		}
		sellerWallet, err := s.escrow.GetOrCreateUserWallet(ctx, order.SellerID)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load seller wallet")
		}

		now := time.Now()
		err = s.escrow.ApplyTransition(ctx, repository.ApplyTransitionParams{
			TransactionID: escrowTx.ID,
			FromStatuses:  []string{models.EscrowStatusHeld},
			ToStatus:      models.EscrowStatusReleased,
			ReleasedAt:    &now,
			Wallets: []repository.WalletUpdate{
				{ID: platformWallet.ID, Balance: platformWallet.Balance.Sub(sellerAmount), Version: platformWallet.Version},
				{ID: sellerWallet.ID, Balance: sellerWallet.Balance.Add(sellerAmount), Version: sellerWallet.Version},
			},
			OrderID:   order.ID,
			OrderFrom: []string{models.OrderStatusShipped, models.OrderStatusDelivered},
			OrderTo:   models.OrderStatusCompleted,
		})
		if errors.Is(err, repository.ErrWalletConflict) {
			continue
		}
		if errors.Is(err, repository.ErrEscrowStateConflict) {
			return apperror.New(apperror.ErrCodeConflict, "escrow funds are not held")
		}
		if errors.Is(err, repository.ErrOrderStateConflict) {
			return apperror.New(apperror.ErrCodeConflict, "order cannot be completed from its current state")
		}
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to release escrow")
		}

		s.afterRelease(ctx, order, sellerAmount)
		return nil
	}

	return apperror.ErrSystemBusy
}

func (s *EscrowService) afterRelease(ctx context.Context, order *models.Order, sellerAmount decimal.Decimal) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, events.EscrowReleased{
			Envelope:     events.NewEnvelope(),
			OrderID:      order.ID,
			SellerID:     order.SellerID,
			SellerAmount: sellerAmount,
		})
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, order.SellerID, "escrow_released", map[string]interface{}{
			"order_id": order.ID,
			"amount":   sellerAmount,
		})
	}
	logger.Log.WithField("order_id", order.ID).
		WithField("seller_amount", sellerAmount).
		Info("escrow released to seller")
}

// Refund returns the full amount to the buyer, fee-free. Held and disputed
// funds can both be refunded; released funds cannot.
func (s *EscrowService) Refund(ctx context.Context, orderID uuid.UUID) error {
	escrowTx, err := s.loadTransaction(ctx, orderID)
	if err != nil {
		return err
	}
	if escrowTx.Status == models.EscrowStatusRefunded {
		return nil
	}
	if escrowTx.Status != models.EscrowStatusHeld && escrowTx.Status != models.EscrowStatusDisputed {
		return apperror.New(apperror.ErrCodeConflict, "escrow funds cannot be refunded from their current state")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load order")
	}

	for attempt := 0; attempt < walletAttempts; attempt++ {
		platformWallet, err := s.escrow.GetPlatformWallet(ctx)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load platform wallet")
		}
		buyerWallet, err := s.escrow.GetOrCreateUserWallet(ctx, order.BuyerID)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load buyer wallet")
		}

		now := time.Now()
		err = s.escrow.ApplyTransition(ctx, repository.ApplyTransitionParams{
			TransactionID: escrowTx.ID,
			FromStatuses:  []string{models.EscrowStatusHeld, models.EscrowStatusDisputed},
			ToStatus:      models.EscrowStatusRefunded,
			ReleasedAt:    &now,
			Wallets: []repository.WalletUpdate{
				{ID: platformWallet.ID, Balance: platformWallet.Balance.Sub(escrowTx.Amount), Version: platformWallet.Version},
				{ID: buyerWallet.ID, Balance: buyerWallet.Balance.Add(escrowTx.Amount), Version: buyerWallet.Version},
			},
			OrderID: order.ID,
			OrderFrom: []string{
				models.OrderStatusPaid, models.OrderStatusShipped,
				models.OrderStatusDelivered, models.OrderStatusDisputed,
			},
			OrderTo: models.OrderStatusRefunded,
		})
		if errors.Is(err, repository.ErrWalletConflict) {
			continue
		}
		if errors.Is(err, repository.ErrEscrowStateConflict) {
			return apperror.New(apperror.ErrCodeConflict, "escrow funds cannot be refunded from their current state")
		}
		if errors.Is(err, repository.ErrOrderStateConflict) {
			return apperror.New(apperror.ErrCodeConflict, "order cannot be refunded from its current state")
		}
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to refund escrow")
		}

		if s.notifier != nil {
			s.notifier.Notify(ctx, order.BuyerID, "order_refunded", map[string]interface{}{
				"order_id": order.ID,
				"amount":   escrowTx.Amount,
			})
		}
		logger.Log.WithField("order_id", order.ID).
			WithField("amount", escrowTx.Amount).
			Info("escrow refunded to buyer")
		return nil
	}

	return apperror.ErrSystemBusy
}

// Dispute freezes held funds pending resolution. No money moves; the funds
// just stop being eligible for release and auto-release.
func (s *EscrowService) Dispute(ctx context.Context, orderID uuid.UUID, reason string) error {
	escrowTx, err := s.loadTransaction(ctx, orderID)
	if err != nil {
		return err
	}
	if escrowTx.Status != models.EscrowStatusHeld {
		return apperror.New(apperror.ErrCodeConflict, "only held escrow funds can be disputed")
	}

	err = s.escrow.ApplyTransition(ctx, repository.ApplyTransitionParams{
		TransactionID: escrowTx.ID,
		FromStatuses:  []string{models.EscrowStatusHeld},
		ToStatus:      models.EscrowStatusDisputed,
		OrderID:       orderID,
		OrderFrom: []string{
			models.OrderStatusPaid, models.OrderStatusShipped, models.OrderStatusDelivered,
		},
		OrderTo: models.OrderStatusDisputed,
	})
	if errors.Is(err, repository.ErrEscrowStateConflict) {
		return apperror.New(apperror.ErrCodeConflict, "only held escrow funds can be disputed")
	}
	if errors.Is(err, repository.ErrOrderStateConflict) {
		return apperror.New(apperror.ErrCodeConflict, "order cannot be disputed from its current state")
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to open dispute")
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, events.DisputeOpened{
			Envelope: events.NewEnvelope(),
			OrderID:  orderID,
			Reason:   reason,
		})
	}
	logger.Log.WithField("order_id", orderID).Warn("escrow dispute opened")
	return nil
}

// FindReleasable lists HELD transactions past their auto-release deadline.
func (s *EscrowService) FindReleasable(ctx context.Context, now time.Time) ([]models.EscrowTransaction, error) {
	return s.escrow.FindReleasable(ctx, now)
}

// GetTransaction returns the escrow transaction backing an order.
func (s *EscrowService) GetTransaction(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	return s.loadTransaction(ctx, orderID)
}

// GetWallet returns the user's escrow wallet, creating it on first touch.
func (s *EscrowService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.EscrowWallet, error) {
	wallet, err := s.escrow.GetOrCreateUserWallet(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load wallet")
	}
	return wallet, nil
}

func (s *EscrowService) loadTransaction(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	escrowTx, err := s.escrow.GetTransactionByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load escrow transaction")
	}
	return escrowTx, nil
}
