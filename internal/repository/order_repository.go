package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderStateConflict = errors.New("order is not in the required state")
	ErrShippingNotFound   = errors.New("shipping info not found")
)

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return &o, err
}

// CreateBuyNow opens a buy-now order and marks the item SOLD in one
// transaction; the item status guard rejects items already taken.
func (r *OrderRepository) CreateBuyNow(ctx context.Context, o *models.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE items SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3
	`, o.ItemID, models.ItemStatusSold, models.ItemStatusActive)
	if err != nil {
		return fmt.Errorf("order repository: mark item sold %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrItemStateConflict
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, buyer_id, seller_id, item_id, amount, order_type, status, shipping_address, payment_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, o.ID, o.BuyerID, o.SellerID, o.ItemID, o.Amount, o.OrderType, o.Status, o.ShippingAddress, o.PaymentDeadline).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}

	return tx.Commit()
}

// UpdateStatusGuarded moves the order to a new status only from one of the
// allowed source states.
func (r *OrderRepository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from []string, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, pqStringArray(from))
	if err != nil {
		return fmt.Errorf("order repository: update status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderStateConflict
	}
	return nil
}

// ShipParams carries the full write set of a shipment.
type ShipParams struct {
	OrderID        uuid.UUID
	TrackingNumber string
	Carrier        string
	Address        string
	ShippedAt      time.Time
	EscrowDeadline time.Time
}

// Ship records shipment atomically: the PAID -> SHIPPED flip, the shipping
// info row and the escrow auto-release deadline commit together.
func (r *OrderRepository) Ship(ctx context.Context, p ShipParams) (*models.ShippingInfo, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3
	`, p.OrderID, models.OrderStatusShipped, models.OrderStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("order repository: ship status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrOrderStateConflict
	}

	info := &models.ShippingInfo{
		ID:              uuid.New(),
		OrderID:         p.OrderID,
		TrackingNumber:  p.TrackingNumber,
		Carrier:         p.Carrier,
		ShippingAddress: p.Address,
		ShippedAt:       p.ShippedAt,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO shipping_info (id, order_id, tracking_number, carrier, shipping_address, shipped_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, info.ID, info.OrderID, info.TrackingNumber, info.Carrier, info.ShippingAddress, info.ShippedAt); err != nil {
		return nil, fmt.Errorf("order repository: create shipping info %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE escrow_transactions SET escrow_release_deadline = $2 WHERE order_id = $1
	`, p.OrderID, p.EscrowDeadline); err != nil {
		return nil, fmt.Errorf("order repository: set escrow deadline %w", err)
	}

	return info, tx.Commit()
}

func (r *OrderRepository) GetShippingInfo(ctx context.Context, orderID uuid.UUID) (*models.ShippingInfo, error) {
	var info models.ShippingInfo
	err := r.db.GetContext(ctx, &info, `SELECT * FROM shipping_info WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShippingNotFound
	}
	return &info, err
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders WHERE buyer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, buyerID, limit, offset)
	return orders, err
}

func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders WHERE seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	return orders, err
}

// FindUnpaidBefore returns PENDING_PAYMENT orders created before the cutoff.
func (r *OrderRepository) FindUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders WHERE status = $1 AND created_at < $2
	`, models.OrderStatusPendingPayment, cutoff)
	return orders, err
}
