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
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction is not active")
)

type AuctionRepository struct {
	db *sqlx.DB
}

func NewAuctionRepository(db *sqlx.DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

func (r *AuctionRepository) Create(ctx context.Context, a *models.Auction) error {
	query := `
		INSERT INTO auctions (id, item_id, start_time, end_time, min_bid_increment, reserve_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.ItemID, a.StartTime, a.EndTime, a.MinBidIncrement, a.ReservePrice, a.Status).
		Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("auction repository: create %w", err)
	}
	return nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var a models.Auction
	err := r.db.GetContext(ctx, &a, `SELECT * FROM auctions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuctionNotFound
	}
	return &a, err
}

func (r *AuctionRepository) GetByItemID(ctx context.Context, itemID uuid.UUID) (*models.Auction, error) {
	var a models.Auction
	err := r.db.GetContext(ctx, &a, `SELECT * FROM auctions WHERE item_id = $1`, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuctionNotFound
	}
	return &a, err
}

// FindExpired returns auctions still marked ACTIVE whose end time has passed.
func (r *AuctionRepository) FindExpired(ctx context.Context, now time.Time) ([]models.Auction, error) {
	var auctions []models.Auction
	err := r.db.SelectContext(ctx, &auctions, `
		SELECT * FROM auctions WHERE status = $1 AND end_time < $2
	`, models.AuctionStatusActive, now)
	return auctions, err
}

// CloseParams carries everything the closing transaction writes. Order is nil
// when the auction received no bids.
type CloseParams struct {
	AuctionID    uuid.UUID
	WinnerID     *uuid.UUID
	HighestBidID *uuid.UUID
	ClosedAt     time.Time
	Order        *models.Order
}

// Close finalises an auction in one transaction: the status flip is guarded
// on ACTIVE so a concurrent or repeated close is a clean no-op, bid rows get
// their terminal WON/LOST statuses, remaining proxy bids deactivate, and the
// winner's order (if any) is created.
func (r *AuctionRepository) Close(ctx context.Context, p CloseParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE auctions SET status = $2, closed_at = $3, winner_id = $4
		WHERE id = $1 AND status = $5
	`, p.AuctionID, models.AuctionStatusClosed, p.ClosedAt, p.WinnerID, models.AuctionStatusActive)
	if err != nil {
		return fmt.Errorf("auction repository: close %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAuctionNotActive
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE proxy_bids SET is_active = FALSE, updated_at = NOW() WHERE auction_id = $1
	`, p.AuctionID); err != nil {
		return fmt.Errorf("auction repository: deactivate proxy bids %w", err)
	}

	if p.HighestBidID != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE bids SET status = $2 WHERE id = $1
		`, *p.HighestBidID, models.BidStatusWon); err != nil {
			return fmt.Errorf("auction repository: mark winning bid %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE bids SET status = $3 WHERE auction_id = $1 AND id <> $2 AND status NOT IN ($4, $5)
		`, p.AuctionID, *p.HighestBidID, models.BidStatusLost,
			models.BidStatusCancelled, models.BidStatusLost); err != nil {
			return fmt.Errorf("auction repository: mark losing bids %w", err)
		}
	}

	if p.Order != nil {
		o := p.Order
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (id, buyer_id, seller_id, item_id, amount, order_type, status, shipping_address, payment_deadline)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`, o.ID, o.BuyerID, o.SellerID, o.ItemID, o.Amount, o.OrderType, o.Status, o.ShippingAddress, o.PaymentDeadline).
			Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("auction repository: create order %w", err)
		}
	}

	return tx.Commit()
}
