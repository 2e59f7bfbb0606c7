package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusPaid           = "PAID"
	OrderStatusShipped        = "SHIPPED"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCompleted      = "COMPLETED"
	OrderStatusCancelled      = "CANCELLED"
	OrderStatusDisputed       = "DISPUTED"
	OrderStatusRefunded       = "REFUNDED"
)

const (
	OrderTypeBuyNow     = "BUY_NOW"
	OrderTypeAuctionWin = "AUCTION_WIN"
)

type Order struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	BuyerID         uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	SellerID        uuid.UUID       `db:"seller_id" json:"seller_id"`
	ItemID          uuid.UUID       `db:"item_id" json:"item_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	OrderType       string          `db:"order_type" json:"order_type"`
	Status          string          `db:"status" json:"status"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	PaymentDeadline *time.Time      `db:"payment_deadline" json:"payment_deadline,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// IsFinal reports whether the order reached a terminal state.
func (o *Order) IsFinal() bool {
	return o.Status == OrderStatusCompleted ||
		o.Status == OrderStatusRefunded ||
		o.Status == OrderStatusCancelled
}

// ShippingInfo exists once per order, created when the seller ships.
type ShippingInfo struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	OrderID         uuid.UUID  `db:"order_id" json:"order_id"`
	TrackingNumber  string     `db:"tracking_number" json:"tracking_number"`
	Carrier         string     `db:"carrier" json:"carrier"`
	ShippingAddress string     `db:"shipping_address" json:"shipping_address"`
	ShippedAt       time.Time  `db:"shipped_at" json:"shipped_at"`
	DeliveredAt     *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}
