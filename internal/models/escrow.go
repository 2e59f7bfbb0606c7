package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EscrowStatusPending  = "PENDING"
	EscrowStatusHeld     = "HELD"
	EscrowStatusReleased = "RELEASED"
	EscrowStatusRefunded = "REFUNDED"
	EscrowStatusDisputed = "DISPUTED"
)

// EscrowWallet holds funds for one user, or for the platform itself when
// UserID is nil (exactly one such row exists). Balance changes only through
// escrow ledger operations; Version guards concurrent updates.
type EscrowWallet struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	UserID           *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	Balance          decimal.Decimal `db:"balance" json:"balance"`
	Currency         string          `db:"currency" json:"currency"`
	IsPlatformWallet bool            `db:"is_platform_wallet" json:"is_platform_wallet"`
	Version          int64           `db:"version" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// EscrowTransaction records custody of one order's funds. HELD may move to
// RELEASED, REFUNDED or DISPUTED; DISPUTED may move to RELEASED or REFUNDED;
// RELEASED and REFUNDED are final.
type EscrowTransaction struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	OrderID               uuid.UUID       `db:"order_id" json:"order_id"`
	DebitWalletID         uuid.UUID       `db:"debit_wallet_id" json:"debit_wallet_id"`
	CreditWalletID        uuid.UUID       `db:"credit_wallet_id" json:"credit_wallet_id"`
	Amount                decimal.Decimal `db:"amount" json:"amount"`
	Status                string          `db:"status" json:"status"`
	PaymentMethod         string          `db:"payment_method" json:"payment_method"`
	ExternalTxID          string          `db:"external_tx_id" json:"external_tx_id"`
	EscrowReleaseDeadline *time.Time      `db:"escrow_release_deadline" json:"escrow_release_deadline,omitempty"`
	HeldAt                *time.Time      `db:"held_at" json:"held_at,omitempty"`
	ReleasedAt            *time.Time      `db:"released_at" json:"released_at,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
}
