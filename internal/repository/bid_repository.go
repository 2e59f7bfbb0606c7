package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

var ErrBidNotFound = errors.New("bid not found")

type BidRepository struct {
	db *sqlx.DB
}

func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var b models.Bid
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bids WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	return &b, err
}

// ListByAuction returns an auction's bids, highest amount first.
func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids, `
		SELECT * FROM bids WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC LIMIT $2 OFFSET $3
	`, auctionID, limit, offset)
	return bids, err
}

func (r *BidRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids, `
		SELECT * FROM bids WHERE bidder_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, bidderID, limit, offset)
	return bids, err
}

// FindActiveProxyBids returns every active proxy bid of an auction.
func (r *BidRepository) FindActiveProxyBids(ctx context.Context, auctionID uuid.UUID) ([]models.ProxyBid, error) {
	var proxies []models.ProxyBid
	err := r.db.SelectContext(ctx, &proxies, `
		SELECT * FROM proxy_bids WHERE auction_id = $1 AND is_active = TRUE
		ORDER BY max_amount DESC, created_at ASC
	`, auctionID)
	return proxies, err
}

// ResolutionParams is the full write set of one bid resolution. Bids holds
// the rows to insert in order; the last one is the new highest bid.
type ResolutionParams struct {
	AuctionID  uuid.UUID
	ItemID     uuid.UUID
	BidderID   uuid.UUID
	ProxyMax   decimal.Decimal
	Bids       []models.Bid
	WinningBid models.Bid
	NewPrice   decimal.Decimal
}

// ApplyResolution persists a resolved bid as one atomic unit: bid rows, the
// bidder's proxy ceiling, the auction aggregate and the item price commit
// together or not at all.
func (r *BidRepository) ApplyResolution(ctx context.Context, p ResolutionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Previous front-runner loses its ACTIVE status before the new rows land.
	if _, err := tx.ExecContext(ctx, `
		UPDATE bids SET status = $2 WHERE auction_id = $1 AND status = $3
	`, p.AuctionID, models.BidStatusOutbid, models.BidStatusActive); err != nil {
		return fmt.Errorf("bid repository: outbid previous %w", err)
	}

	for i := range p.Bids {
		b := &p.Bids[i]
		err := tx.QueryRowContext(ctx, `
			INSERT INTO bids (id, auction_id, bidder_id, amount, is_proxy_bid, is_auto_bid, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`, b.ID, b.AuctionID, b.BidderID, b.Amount, b.IsProxyBid, b.IsAutoBid, b.Status).
			Scan(&b.CreatedAt)
		if err != nil {
			return fmt.Errorf("bid repository: insert bid %w", err)
		}
	}

	// The ceiling only ever grows; GREATEST keeps a concurrent lower write
	// from shrinking it.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO proxy_bids (id, auction_id, bidder_id, max_amount, current_amount, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (auction_id, bidder_id) DO UPDATE SET
			max_amount = GREATEST(proxy_bids.max_amount, EXCLUDED.max_amount),
			current_amount = EXCLUDED.current_amount,
			is_active = TRUE,
			updated_at = NOW()
	`, uuid.New(), p.AuctionID, p.BidderID, p.ProxyMax, p.NewPrice); err != nil {
		return fmt.Errorf("bid repository: upsert proxy bid %w", err)
	}

	// A resolved bid always leaves the auction ACTIVE; this also performs the
	// implicit SCHEDULED -> ACTIVE flip on a first bid after start time.
	if _, err := tx.ExecContext(ctx, `
		UPDATE auctions SET highest_bid_id = $2, winner_id = $3, bid_count = bid_count + $4, status = $5
		WHERE id = $1
	`, p.AuctionID, p.WinningBid.ID, p.WinningBid.BidderID, len(p.Bids), models.AuctionStatusActive); err != nil {
		return fmt.Errorf("bid repository: update auction %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE items SET current_price = $2, updated_at = NOW() WHERE id = $1
	`, p.ItemID, p.NewPrice); err != nil {
		return fmt.Errorf("bid repository: update item price %w", err)
	}

	return tx.Commit()
}
