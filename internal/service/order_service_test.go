package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type orderFixture struct {
	orders   *fakeOrderStore
	items    *fakeItemStore
	ledger   *fakeEscrowLedger
	notifier *fakeNotifier
	svc      *OrderService
	item     *models.Item
	buyerID  uuid.UUID
	sellerID uuid.UUID
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	orders := newFakeOrderStore()
	items := newFakeItemStore()
	ledger := &fakeEscrowLedger{}
	notifier := &fakeNotifier{}

	buyerID := uuid.New()
	sellerID := uuid.New()
	price := dec("80")
	item := &models.Item{
		ID:           uuid.New(),
		SellerID:     sellerID,
		Title:        "vinyl pressing",
		BuyNowPrice:  &price,
		CurrentPrice: price,
		Status:       models.ItemStatusActive,
	}
	items.put(item)

	svc := NewOrderService(orders, items, ledger, nil, notifier, 24*time.Hour, 7*24*time.Hour)
	return &orderFixture{
		orders:   orders,
		items:    items,
		ledger:   ledger,
		notifier: notifier,
		svc:      svc,
		item:     item,
		buyerID:  buyerID,
		sellerID: sellerID,
	}
}

func (fx *orderFixture) orderInStatus(status string) *models.Order {
	o := &models.Order{
		ID:        uuid.New(),
		BuyerID:   fx.buyerID,
		SellerID:  fx.sellerID,
		ItemID:    fx.item.ID,
		Amount:    dec("80"),
		OrderType: models.OrderTypeBuyNow,
		Status:    status,
		CreatedAt: time.Now(),
	}
	fx.orders.put(o)
	return o
}

func TestCreateBuyNow(t *testing.T) {
	fx := newOrderFixture(t)

	order, err := fx.svc.CreateBuyNow(context.Background(), CreateBuyNowInput{
		ItemID:          fx.item.ID,
		BuyerID:         fx.buyerID,
		ShippingAddress: "12 Main St",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)
	assert.True(t, order.Amount.Equal(dec("80")))
	require.NotNil(t, order.PaymentDeadline)
	assert.Contains(t, fx.notifier.kinds(), "item_sold")
}

func TestCreateBuyNowOwnItem(t *testing.T) {
	fx := newOrderFixture(t)

	_, err := fx.svc.CreateBuyNow(context.Background(), CreateBuyNowInput{
		ItemID:  fx.item.ID,
		BuyerID: fx.sellerID,
	})
	require.Error(t, err)
}

func TestCreateBuyNowNoPrice(t *testing.T) {
	fx := newOrderFixture(t)
	fx.item.BuyNowPrice = nil

	_, err := fx.svc.CreateBuyNow(context.Background(), CreateBuyNowInput{
		ItemID:  fx.item.ID,
		BuyerID: fx.buyerID,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestShipStartsEscrowClock(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusPaid)

	info, err := fx.svc.Ship(context.Background(), ShipInput{
		OrderID:        order.ID,
		SellerID:       fx.sellerID,
		TrackingNumber: "TRK123",
		Carrier:        "UPS",
	})
	require.NoError(t, err)
	assert.Equal(t, "TRK123", info.TrackingNumber)

	got, err := fx.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, got.Status)
	assert.Contains(t, fx.notifier.kinds(), "order_shipped")
}

func TestShipUnpaidOrder(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusPendingPayment)

	_, err := fx.svc.Ship(context.Background(), ShipInput{
		OrderID:  order.ID,
		SellerID: fx.sellerID,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestShipWrongSeller(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusPaid)

	_, err := fx.svc.Ship(context.Background(), ShipInput{
		OrderID:  order.ID,
		SellerID: uuid.New(),
	})
	require.Error(t, err)
}

func TestConfirmDeliveryReleasesEscrow(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusShipped)

	require.NoError(t, fx.svc.ConfirmDelivery(context.Background(), order.ID, fx.buyerID))

	got, err := fx.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
	assert.Equal(t, []uuid.UUID{order.ID}, fx.ledger.released)
}

func TestConfirmDeliveryOnlyBuyer(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusShipped)

	err := fx.svc.ConfirmDelivery(context.Background(), order.ID, fx.sellerID)
	require.Error(t, err)
	assert.Empty(t, fx.ledger.released)
}

func TestAutoConfirmSkipsDisputed(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusDisputed)

	require.NoError(t, fx.svc.AutoConfirmDelivery(context.Background(), order.ID))
	assert.Empty(t, fx.ledger.released)
}

func TestAutoConfirmSkipsFinalOrders(t *testing.T) {
	fx := newOrderFixture(t)
	for _, status := range []string{
		models.OrderStatusCompleted, models.OrderStatusRefunded, models.OrderStatusCancelled,
	} {
		order := fx.orderInStatus(status)
		require.NoError(t, fx.svc.AutoConfirmDelivery(context.Background(), order.ID))
	}
	assert.Empty(t, fx.ledger.released)
}

func TestAutoConfirmReleasesShipped(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusShipped)

	require.NoError(t, fx.svc.AutoConfirmDelivery(context.Background(), order.ID))

	got, err := fx.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
	assert.Equal(t, []uuid.UUID{order.ID}, fx.ledger.released)
}

func TestAutoConfirmMissingOrderIsQuiet(t *testing.T) {
	fx := newOrderFixture(t)
	require.NoError(t, fx.svc.AutoConfirmDelivery(context.Background(), uuid.New()))
}

func TestOpenDispute(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusShipped)

	require.NoError(t, fx.svc.OpenDispute(context.Background(), order.ID, fx.buyerID, "damaged in transit"))
	assert.Equal(t, []uuid.UUID{order.ID}, fx.ledger.disputed)
	assert.Contains(t, fx.notifier.kinds(), "dispute_opened")

	err := fx.svc.OpenDispute(context.Background(), order.ID, fx.buyerID, "")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestMarkAsLostRefunds(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusShipped)

	require.NoError(t, fx.svc.MarkAsLost(context.Background(), order.ID, fx.buyerID))
	assert.Equal(t, []uuid.UUID{order.ID}, fx.ledger.refunded)
}

func TestMarkAsLostRequiresShipment(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusPaid)

	err := fx.svc.MarkAsLost(context.Background(), order.ID, fx.buyerID)
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestCancelUnpaidRelistsItem(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusPendingPayment)
	fx.item.Status = models.ItemStatusSold

	require.NoError(t, fx.svc.CancelUnpaid(context.Background(), order.ID))

	got, err := fx.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)

	item, err := fx.items.GetByID(context.Background(), fx.item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusActive, item.Status)

	assert.Contains(t, fx.notifier.kinds(), "order_cancelled")
}

func TestCancelUnpaidRacingPaymentIsQuiet(t *testing.T) {
	fx := newOrderFixture(t)
	order := fx.orderInStatus(models.OrderStatusPaid)

	// The sweep saw the order unpaid, but a payment landed first.
	require.NoError(t, fx.svc.CancelUnpaid(context.Background(), order.ID))

	got, err := fx.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, got.Status)
}
