package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AuctionStatusScheduled = "SCHEDULED"
	AuctionStatusActive    = "ACTIVE"
	AuctionStatusClosed    = "CLOSED"
)

// Auction owns its bid and proxy-bid collections. Status only ever moves
// SCHEDULED -> ACTIVE -> CLOSED; CLOSED is terminal.
type Auction struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	ItemID          uuid.UUID        `db:"item_id" json:"item_id"`
	StartTime       time.Time        `db:"start_time" json:"start_time"`
	EndTime         time.Time        `db:"end_time" json:"end_time"`
	MinBidIncrement decimal.Decimal  `db:"min_bid_increment" json:"min_bid_increment"`
	ReservePrice    *decimal.Decimal `db:"reserve_price" json:"reserve_price,omitempty"`
	HighestBidID    *uuid.UUID       `db:"highest_bid_id" json:"highest_bid_id,omitempty"`
	WinnerID        *uuid.UUID       `db:"winner_id" json:"winner_id,omitempty"`
	BidCount        int              `db:"bid_count" json:"bid_count"`
	Status          string           `db:"status" json:"status"`
	ClosedAt        *time.Time       `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}
