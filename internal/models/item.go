package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ItemStatusDraft           = "DRAFT"
	ItemStatusPendingApproval = "PENDING_APPROVAL"
	ItemStatusActive          = "ACTIVE"
	ItemStatusSold            = "SOLD"
	ItemStatusCancelled       = "CANCELLED"
	ItemStatusRejected        = "REJECTED"
)

// Item is a single listing. CurrentPrice mirrors the auction's highest bid
// while the auction is running and never decreases during its lifetime.
type Item struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	SellerID     uuid.UUID        `db:"seller_id" json:"seller_id"`
	Title        string           `db:"title" json:"title"`
	Description  string           `db:"description" json:"description"`
	StartingBid  *decimal.Decimal `db:"starting_bid" json:"starting_bid,omitempty"`
	FixedPrice   *decimal.Decimal `db:"fixed_price" json:"fixed_price,omitempty"`
	BuyNowPrice  *decimal.Decimal `db:"buy_now_price" json:"buy_now_price,omitempty"`
	CurrentPrice decimal.Decimal  `db:"current_price" json:"current_price"`
	Status       string           `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}
