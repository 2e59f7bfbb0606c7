package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

type WatchlistRepository struct {
	db *sqlx.DB
}

func NewWatchlistRepository(db *sqlx.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Add is idempotent; watching an item twice keeps a single entry.
func (r *WatchlistRepository) Add(ctx context.Context, userID, itemID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watchlist (id, user_id, item_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, item_id) DO NOTHING
	`, uuid.New(), userID, itemID)
	if err != nil {
		return fmt.Errorf("watchlist repository: add %w", err)
	}
	return nil
}

func (r *WatchlistRepository) Remove(ctx context.Context, userID, itemID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM watchlist WHERE user_id = $1 AND item_id = $2
	`, userID, itemID)
	return err
}

func (r *WatchlistRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM watchlist WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return entries, err
}
