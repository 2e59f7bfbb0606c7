package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	BidStatusActive    = "ACTIVE"
	BidStatusOutbid    = "OUTBID"
	BidStatusWinning   = "WINNING"
	BidStatusWon       = "WON"
	BidStatusLost      = "LOST"
	BidStatusCancelled = "CANCELLED"
)

// Bid is immutable once created; the amount never changes.
type Bid struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	AuctionID  uuid.UUID       `db:"auction_id" json:"auction_id"`
	BidderID   uuid.UUID       `db:"bidder_id" json:"bidder_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	IsProxyBid bool            `db:"is_proxy_bid" json:"is_proxy_bid"`
	IsAutoBid  bool            `db:"is_auto_bid" json:"is_auto_bid"`
	Status     string          `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// ProxyBid is the ceiling a bidder authorises for one auction. At most one
// row exists per (auction, bidder) and MaxAmount is never lowered.
type ProxyBid struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	AuctionID     uuid.UUID       `db:"auction_id" json:"auction_id"`
	BidderID      uuid.UUID       `db:"bidder_id" json:"bidder_id"`
	MaxAmount     decimal.Decimal `db:"max_amount" json:"max_amount"`
	CurrentAmount decimal.Decimal `db:"current_amount" json:"current_amount"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
