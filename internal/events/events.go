package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is the closed set of domain events emitted after a transaction
// commits. Each variant carries the common envelope plus its own payload.
type Event interface {
	Name() string
	EventEnvelope() Envelope
}

// Envelope is the part shared by every event.
type Envelope struct {
	EventID    uuid.UUID `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEnvelope stamps a fresh envelope.
func NewEnvelope() Envelope {
	return Envelope{EventID: uuid.New(), OccurredAt: time.Now()}
}

func (e Envelope) EventEnvelope() Envelope { return e }

type BidPlaced struct {
	Envelope
	AuctionID uuid.UUID       `json:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	IsAutoBid bool            `json:"is_auto_bid"`
}

func (BidPlaced) Name() string { return "bid_placed" }

type AuctionWon struct {
	Envelope
	AuctionID uuid.UUID       `json:"auction_id"`
	WinnerID  uuid.UUID       `json:"winner_id"`
	Amount    decimal.Decimal `json:"amount"`
	ItemTitle string          `json:"item_title"`
}

func (AuctionWon) Name() string { return "auction_won" }

type OrderPaid struct {
	Envelope
	OrderID uuid.UUID       `json:"order_id"`
	BuyerID uuid.UUID       `json:"buyer_id"`
	Amount  decimal.Decimal `json:"amount"`
}

func (OrderPaid) Name() string { return "order_paid" }

type OrderShipped struct {
	Envelope
	OrderID        uuid.UUID `json:"order_id"`
	TrackingNumber string    `json:"tracking_number"`
	Carrier        string    `json:"carrier"`
}

func (OrderShipped) Name() string { return "order_shipped" }

type OrderDelivered struct {
	Envelope
	OrderID  uuid.UUID `json:"order_id"`
	SellerID uuid.UUID `json:"seller_id"`
}

func (OrderDelivered) Name() string { return "order_delivered" }

type EscrowReleased struct {
	Envelope
	OrderID      uuid.UUID       `json:"order_id"`
	SellerID     uuid.UUID       `json:"seller_id"`
	SellerAmount decimal.Decimal `json:"seller_amount"`
}

func (EscrowReleased) Name() string { return "escrow_released" }

type DisputeOpened struct {
	Envelope
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

func (DisputeOpened) Name() string { return "dispute_opened" }
