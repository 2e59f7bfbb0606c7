package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrItemStateConflict = errors.New("item is not in the required state")
)

type ItemRepository struct {
	db *sqlx.DB
}

func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (id, seller_id, title, description, starting_bid, fixed_price, buy_now_price, current_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		item.ID, item.SellerID, item.Title, item.Description,
		item.StartingBid, item.FixedPrice, item.BuyNowPrice, item.CurrentPrice, item.Status).
		Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("item repository: create %w", err)
	}
	return nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := r.db.GetContext(ctx, &item, `SELECT * FROM items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return &item, err
}

// UpdateStatusGuarded moves the item to a new status only from one of the
// allowed source states. ErrItemStateConflict signals a lost guard.
func (r *ItemRepository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from []string, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, pqStringArray(from))
	if err != nil {
		return fmt.Errorf("item repository: update status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrItemStateConflict
	}
	return nil
}

func (r *ItemRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Item, error) {
	var items []models.Item
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM items WHERE seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	return items, err
}

func (r *ItemRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Item, error) {
	var items []models.Item
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM items WHERE status = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, status, limit, offset)
	return items, err
}
