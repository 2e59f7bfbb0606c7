package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

// WatchlistService lets buyers track items they care about.
type WatchlistService struct {
	watchlist *repository.WatchlistRepository
	items     ItemStore
}

func NewWatchlistService(watchlist *repository.WatchlistRepository, items ItemStore) *WatchlistService {
	return &WatchlistService{watchlist: watchlist, items: items}
}

func (s *WatchlistService) Watch(ctx context.Context, userID, itemID uuid.UUID) error {
	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return mapItemErr(err)
	}
	return s.watchlist.Add(ctx, userID, itemID)
}

func (s *WatchlistService) Unwatch(ctx context.Context, userID, itemID uuid.UUID) error {
	return s.watchlist.Remove(ctx, userID, itemID)
}

func (s *WatchlistService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WatchlistEntry, error) {
	return s.watchlist.ListByUser(ctx, userID, limit, offset)
}
