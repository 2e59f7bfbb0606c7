package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/events"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

// EscrowLedger is the slice of the escrow service order fulfilment needs.
type EscrowLedger interface {
	Release(ctx context.Context, orderID uuid.UUID) error
	Refund(ctx context.Context, orderID uuid.UUID) error
	Dispute(ctx context.Context, orderID uuid.UUID, reason string) error
}

// OrderService drives an order from creation through fulfilment. Money never
// moves here; every balance change goes through the escrow ledger.
type OrderService struct {
	orders        OrderStore
	items         ItemStore
	escrow        EscrowLedger
	publisher     events.Publisher
	notifier      Notifier
	paymentWindow time.Duration
	escrowWindow  time.Duration
}

func NewOrderService(
	orders OrderStore,
	items ItemStore,
	escrow EscrowLedger,
	publisher events.Publisher,
	notifier Notifier,
	paymentWindow, escrowWindow time.Duration,
) *OrderService {
	return &OrderService{
		orders:        orders,
		items:         items,
		escrow:        escrow,
		publisher:     publisher,
		notifier:      notifier,
		paymentWindow: paymentWindow,
		escrowWindow:  escrowWindow,
	}
}

// CreateBuyNowInput opens an order at the item's buy-now price.
type CreateBuyNowInput struct {
	ItemID          uuid.UUID
	BuyerID         uuid.UUID
	ShippingAddress string
}

func (s *OrderService) CreateBuyNow(ctx context.Context, in CreateBuyNowInput) (*models.Order, error) {
	item, err := s.items.GetByID(ctx, in.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, apperror.ErrItemNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load item")
	}
	if item.SellerID == in.BuyerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "sellers cannot buy their own items")
	}
	price := item.BuyNowPrice
	if price == nil {
		price = item.FixedPrice
	}
	if price == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "item has no buy-now price")
	}

	deadline := time.Now().Add(s.paymentWindow)
	order := &models.Order{
		ID:              uuid.New(),
		BuyerID:         in.BuyerID,
		SellerID:        item.SellerID,
		ItemID:          item.ID,
		Amount:          *price,
		OrderType:       models.OrderTypeBuyNow,
		Status:          models.OrderStatusPendingPayment,
		ShippingAddress: in.ShippingAddress,
		PaymentDeadline: &deadline,
	}

	err = s.orders.CreateBuyNow(ctx, order)
	if errors.Is(err, repository.ErrItemStateConflict) {
		return nil, apperror.New(apperror.ErrCodeConflict, "item is no longer available")
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to create order")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, item.SellerID, "item_sold", map[string]interface{}{
			"order_id": order.ID,
			"item_id":  item.ID,
			"amount":   order.Amount,
		})
	}
	return order, nil
}

// GetOrder returns an order to one of its participants.
func (s *OrderService) GetOrder(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actorID && order.SellerID != actorID {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// ShipInput records the seller handing the item to a carrier.
type ShipInput struct {
	OrderID        uuid.UUID
	SellerID       uuid.UUID
	TrackingNumber string
	Carrier        string
}

// Ship moves a paid order to SHIPPED and starts the escrow auto-release
// clock. Disputed or unpaid orders fail on the status guard.
func (s *OrderService) Ship(ctx context.Context, in ShipInput) (*models.ShippingInfo, error) {
	order, err := s.loadOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != in.SellerID {
		return nil, apperror.ErrForbidden
	}

	now := time.Now()
	info, err := s.orders.Ship(ctx, repository.ShipParams{
		OrderID:        order.ID,
		TrackingNumber: in.TrackingNumber,
		Carrier:        in.Carrier,
		Address:        order.ShippingAddress,
		ShippedAt:      now,
		EscrowDeadline: now.Add(s.escrowWindow),
	})
	if errors.Is(err, repository.ErrOrderStateConflict) {
		return nil, apperror.New(apperror.ErrCodeConflict, "only paid orders can be shipped")
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to record shipment")
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, events.OrderShipped{
			Envelope:       events.NewEnvelope(),
			OrderID:        order.ID,
			TrackingNumber: in.TrackingNumber,
			Carrier:        in.Carrier,
		})
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, order.BuyerID, "order_shipped", map[string]interface{}{
			"order_id": order.ID,
			"tracking": in.TrackingNumber,
			"carrier":  in.Carrier,
		})
	}
	return info, nil
}

// ConfirmDelivery is the buyer acknowledging receipt. The order moves to
// DELIVERED and the escrow funds release to the seller immediately.
func (s *OrderService) ConfirmDelivery(ctx context.Context, orderID, buyerID uuid.UUID) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.BuyerID != buyerID {
		return apperror.ErrForbidden
	}

	err = s.orders.UpdateStatusGuarded(ctx, order.ID,
		[]string{models.OrderStatusShipped}, models.OrderStatusDelivered)
	if errors.Is(err, repository.ErrOrderStateConflict) {
		return apperror.New(apperror.ErrCodeConflict, "only shipped orders can be confirmed delivered")
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to confirm delivery")
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, events.OrderDelivered{
			Envelope: events.NewEnvelope(),
			OrderID:  order.ID,
			SellerID: order.SellerID,
		})
	}

	return s.escrow.Release(ctx, order.ID)
}

// AutoConfirmDelivery is the scheduler's stand-in for a silent buyer. Unlike
// ConfirmDelivery it never fails on state: disputed, refunded or already
// completed orders are quiet no-ops so a sweep never aborts on one item.
func (s *OrderService) AutoConfirmDelivery(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if order.Status == models.OrderStatusDisputed || order.IsFinal() {
		return nil
	}

	err = s.orders.UpdateStatusGuarded(ctx, order.ID,
		[]string{models.OrderStatusShipped}, models.OrderStatusDelivered)
	if err != nil && !errors.Is(err, repository.ErrOrderStateConflict) {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to auto-confirm delivery")
	}

	err = s.escrow.Release(ctx, order.ID)
	if apperror.IsConflict(err) {
		// Someone disputed or refunded between the sweep query and here.
		return nil
	}
	return err
}

// OpenDispute freezes the order's escrow funds pending resolution.
func (s *OrderService) OpenDispute(ctx context.Context, orderID, buyerID uuid.UUID, reason string) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.BuyerID != buyerID {
		return apperror.ErrForbidden
	}
	if reason == "" {
		return apperror.New(apperror.ErrCodeValidation, "dispute reason is required")
	}

	if err := s.escrow.Dispute(ctx, order.ID, reason); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, order.SellerID, "dispute_opened", map[string]interface{}{
			"order_id": order.ID,
			"reason":   reason,
		})
	}
	return nil
}

// MarkAsLost refunds the buyer for a shipment that never arrived.
func (s *OrderService) MarkAsLost(ctx context.Context, orderID, actorID uuid.UUID) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.BuyerID != actorID && order.SellerID != actorID {
		return apperror.ErrForbidden
	}
	if order.Status != models.OrderStatusShipped && order.Status != models.OrderStatusDisputed {
		return apperror.New(apperror.ErrCodeConflict, "only shipped or disputed orders can be marked lost")
	}

	logger.Log.WithField("order_id", order.ID).Warn("order marked as lost, refunding buyer")
	return s.escrow.Refund(ctx, order.ID)
}

// CancelUnpaid voids an order whose payment deadline passed and puts the item
// back on the market. Used by the payment sweep; racing a payment is safe
// because both sides are status-guarded.
func (s *OrderService) CancelUnpaid(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}

	err = s.orders.UpdateStatusGuarded(ctx, order.ID,
		[]string{models.OrderStatusPendingPayment}, models.OrderStatusCancelled)
	if errors.Is(err, repository.ErrOrderStateConflict) {
		return nil
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to cancel order")
	}

	if err := s.items.UpdateStatusGuarded(ctx, order.ItemID,
		[]string{models.ItemStatusSold}, models.ItemStatusActive); err != nil &&
		!errors.Is(err, repository.ErrItemStateConflict) {
		logger.Log.WithField("item_id", order.ItemID).Errorf("cancel order: relist item: %v", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, order.BuyerID, "order_cancelled", map[string]interface{}{
			"order_id": order.ID,
			"reason":   "payment deadline expired",
		})
	}
	logger.Log.WithField("order_id", order.ID).Info("unpaid order cancelled")
	return nil
}

// GetShippingInfo returns tracking details to one of the participants.
func (s *OrderService) GetShippingInfo(ctx context.Context, orderID, actorID uuid.UUID) (*models.ShippingInfo, error) {
	if _, err := s.GetOrder(ctx, orderID, actorID); err != nil {
		return nil, err
	}
	info, err := s.orders.GetShippingInfo(ctx, orderID)
	if errors.Is(err, repository.ErrShippingNotFound) {
		return nil, apperror.New(apperror.ErrCodeNotFound, "order has not shipped yet")
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load shipping info")
	}
	return info, nil
}

func (s *OrderService) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return s.orders.ListByBuyer(ctx, buyerID, limit, offset)
}

func (s *OrderService) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return s.orders.ListBySeller(ctx, sellerID, limit, offset)
}

// FindUnpaidBefore lists orders still awaiting payment past the cutoff.
func (s *OrderService) FindUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return s.orders.FindUnpaidBefore(ctx, cutoff)
}

func (s *OrderService) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load order")
	}
	return order, nil
}
