package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

// ItemService manages listings and the admin approval flow.
type ItemService struct {
	items    ItemStore
	notifier Notifier
}

func NewItemService(items ItemStore, notifier Notifier) *ItemService {
	return &ItemService{items: items, notifier: notifier}
}

// CreateItemInput describes a new listing. At least one of StartingBid,
// FixedPrice or BuyNowPrice must be set.
type CreateItemInput struct {
	SellerID    uuid.UUID
	Title       string
	Description string
	StartingBid *decimal.Decimal
	FixedPrice  *decimal.Decimal
	BuyNowPrice *decimal.Decimal
}

// CreateItem registers a listing awaiting admin approval.
func (s *ItemService) CreateItem(ctx context.Context, in CreateItemInput) (*models.Item, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "title is required")
	}
	if in.StartingBid == nil && in.FixedPrice == nil && in.BuyNowPrice == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "item needs a starting bid or a price")
	}
	for _, p := range []*decimal.Decimal{in.StartingBid, in.FixedPrice, in.BuyNowPrice} {
		if p != nil && !p.IsPositive() {
			return nil, apperror.New(apperror.ErrCodeValidation, "prices must be positive")
		}
	}

	currentPrice := decimal.Zero
	if in.StartingBid != nil {
		currentPrice = *in.StartingBid
	} else if in.FixedPrice != nil {
		currentPrice = *in.FixedPrice
	}

	item := &models.Item{
		ID:           uuid.New(),
		SellerID:     in.SellerID,
		Title:        title,
		Description:  in.Description,
		StartingBid:  in.StartingBid,
		FixedPrice:   in.FixedPrice,
		BuyNowPrice:  in.BuyNowPrice,
		CurrentPrice: currentPrice,
		Status:       models.ItemStatusPendingApproval,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to create item")
	}
	return item, nil
}

func (s *ItemService) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, apperror.ErrItemNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load item")
	}
	return item, nil
}

// ApproveItem is the admin putting a listing on the market.
func (s *ItemService) ApproveItem(ctx context.Context, id uuid.UUID) error {
	return s.moderate(ctx, id, models.ItemStatusActive, "item_approved")
}

// RejectItem is the admin declining a listing.
func (s *ItemService) RejectItem(ctx context.Context, id uuid.UUID) error {
	return s.moderate(ctx, id, models.ItemStatusRejected, "item_rejected")
}

func (s *ItemService) moderate(ctx context.Context, id uuid.UUID, to, kind string) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}

	err = s.items.UpdateStatusGuarded(ctx, id,
		[]string{models.ItemStatusPendingApproval}, to)
	if errors.Is(err, repository.ErrItemStateConflict) {
		return apperror.New(apperror.ErrCodeConflict, "item is not awaiting approval")
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to moderate item")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, item.SellerID, kind, map[string]interface{}{
			"item_id": item.ID,
			"title":   item.Title,
		})
	}
	return nil
}

// CancelItem takes the seller's own unsold listing off the market.
func (s *ItemService) CancelItem(ctx context.Context, id, sellerID uuid.UUID) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.SellerID != sellerID {
		return apperror.ErrForbidden
	}

	err = s.items.UpdateStatusGuarded(ctx, id,
		[]string{models.ItemStatusDraft, models.ItemStatusPendingApproval, models.ItemStatusActive},
		models.ItemStatusCancelled)
	if errors.Is(err, repository.ErrItemStateConflict) {
		return apperror.New(apperror.ErrCodeConflict, "item can no longer be cancelled")
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to cancel item")
	}
	return nil
}

func (s *ItemService) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Item, error) {
	return s.items.ListBySeller(ctx, sellerID, limit, offset)
}

// ListActive returns listings currently on the market.
func (s *ItemService) ListActive(ctx context.Context, limit, offset int) ([]models.Item, error) {
	return s.items.ListByStatus(ctx, models.ItemStatusActive, limit, offset)
}

// ListPendingApproval returns the admin moderation queue.
func (s *ItemService) ListPendingApproval(ctx context.Context, limit, offset int) ([]models.Item, error) {
	return s.items.ListByStatus(ctx, models.ItemStatusPendingApproval, limit, offset)
}
