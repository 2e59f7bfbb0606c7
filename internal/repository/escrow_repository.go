package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

var (
	ErrWalletNotFound      = errors.New("escrow wallet not found")
	ErrWalletConflict      = errors.New("wallet was modified concurrently")
	ErrTransactionNotFound = errors.New("escrow transaction not found")
	ErrTransactionExists   = errors.New("escrow transaction already exists for this order")
	ErrEscrowStateConflict = errors.New("escrow transaction is not in the required state")
)

type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// GetOrCreateUserWallet returns the user's wallet, creating an empty one on
// first touch.
func (r *EscrowRepository) GetOrCreateUserWallet(ctx context.Context, userID uuid.UUID) (*models.EscrowWallet, error) {
	var w models.EscrowWallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM escrow_wallets WHERE user_id = $1`, userID)
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("escrow repository: get wallet %w", err)
	}

	query := `
		INSERT INTO escrow_wallets (id, user_id, balance, currency, is_platform_wallet)
		VALUES ($1, $2, 0, 'USD', FALSE)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id, user_id, balance, currency, is_platform_wallet, version, created_at, updated_at
	`
	if err := r.db.GetContext(ctx, &w, query, uuid.New(), userID); err != nil {
		return nil, fmt.Errorf("escrow repository: create wallet %w", err)
	}
	return &w, nil
}

// GetPlatformWallet returns the singleton custodial wallet.
func (r *EscrowRepository) GetPlatformWallet(ctx context.Context) (*models.EscrowWallet, error) {
	var w models.EscrowWallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM escrow_wallets WHERE is_platform_wallet = TRUE`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	return &w, err
}

func (r *EscrowRepository) GetTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	var tx models.EscrowTransaction
	err := r.db.GetContext(ctx, &tx, `SELECT * FROM escrow_transactions WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	return &tx, err
}

// FindReleasable returns HELD transactions whose auto-release deadline passed.
func (r *EscrowRepository) FindReleasable(ctx context.Context, now time.Time) ([]models.EscrowTransaction, error) {
	var txs []models.EscrowTransaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM escrow_transactions
		WHERE status = $1 AND escrow_release_deadline IS NOT NULL AND escrow_release_deadline < $2
	`, models.EscrowStatusHeld, now)
	return txs, err
}

// WalletUpdate is one version-guarded balance write. Version must be the
// value the caller read; the write fails with ErrWalletConflict when another
// writer got there first.
type WalletUpdate struct {
	ID      uuid.UUID
	Balance decimal.Decimal
	Version int64
}

func applyWalletUpdates(ctx context.Context, tx *sqlx.Tx, updates []WalletUpdate) error {
	for _, u := range updates {
		res, err := tx.ExecContext(ctx, `
			UPDATE escrow_wallets SET balance = $2, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $3
		`, u.ID, u.Balance, u.Version)
		if err != nil {
			return fmt.Errorf("escrow repository: update wallet %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrWalletConflict
		}
	}
	return nil
}

// ApplyPaymentParams is the write set of a successful payment capture.
type ApplyPaymentParams struct {
	OrderID     uuid.UUID
	Wallets     []WalletUpdate
	Transaction *models.EscrowTransaction
}

// ApplyPayment commits a payment capture atomically: the PENDING_PAYMENT ->
// PAID flip, the wallet balances and the HELD transaction row either all
// land or none do. The unique order_id constraint rejects double submission.
func (r *EscrowRepository) ApplyPayment(ctx context.Context, p ApplyPaymentParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3
	`, p.OrderID, models.OrderStatusPaid, models.OrderStatusPendingPayment)
	if err != nil {
		return fmt.Errorf("escrow repository: mark order paid %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderStateConflict
	}

	if err := applyWalletUpdates(ctx, tx, p.Wallets); err != nil {
		return err
	}

	t := p.Transaction
	err = tx.QueryRowContext(ctx, `
		INSERT INTO escrow_transactions (id, order_id, debit_wallet_id, credit_wallet_id, amount, status, payment_method, external_tx_id, held_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, t.ID, t.OrderID, t.DebitWalletID, t.CreditWalletID, t.Amount, t.Status, t.PaymentMethod, t.ExternalTxID, t.HeldAt).
		Scan(&t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrTransactionExists
	}
	if err != nil {
		return fmt.Errorf("escrow repository: create transaction %w", err)
	}

	return tx.Commit()
}

// ApplyTransitionParams is the write set of a release, refund or dispute.
type ApplyTransitionParams struct {
	TransactionID uuid.UUID
	FromStatuses  []string
	ToStatus      string
	ReleasedAt    *time.Time
	Wallets       []WalletUpdate
	OrderID       uuid.UUID
	OrderFrom     []string
	OrderTo       string
}

// ApplyTransition moves an escrow transaction (and its order) to a new state
// atomically. Both status flips are guarded so a stale caller loses cleanly.
func (r *EscrowRepository) ApplyTransition(ctx context.Context, p ApplyTransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE escrow_transactions SET status = $2, released_at = COALESCE($3, released_at)
		WHERE id = $1 AND status = ANY($4)
	`, p.TransactionID, p.ToStatus, p.ReleasedAt, pqStringArray(p.FromStatuses))
	if err != nil {
		return fmt.Errorf("escrow repository: transition %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEscrowStateConflict
	}

	if err := applyWalletUpdates(ctx, tx, p.Wallets); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND status = ANY($3)
	`, p.OrderID, p.OrderTo, pqStringArray(p.OrderFrom))
	if err != nil {
		return fmt.Errorf("escrow repository: transition order %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderStateConflict
	}

	return tx.Commit()
}
