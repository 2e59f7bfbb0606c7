package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/marketplace-backend/internal/events"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

// AuctionService manages the auction lifecycle up to and including the close.
type AuctionService struct {
	auctions      AuctionStore
	bids          BidStore
	items         ItemStore
	publisher     events.Publisher
	hub           AuctionBroadcaster
	notifier      Notifier
	paymentWindow time.Duration
}

func NewAuctionService(
	auctions AuctionStore,
	bids BidStore,
	items ItemStore,
	publisher events.Publisher,
	hub AuctionBroadcaster,
	notifier Notifier,
	paymentWindow time.Duration,
) *AuctionService {
	return &AuctionService{
		auctions:      auctions,
		bids:          bids,
		items:         items,
		publisher:     publisher,
		hub:           hub,
		notifier:      notifier,
		paymentWindow: paymentWindow,
	}
}

// CreateAuctionInput describes a new auction for one of the seller's items.
type CreateAuctionInput struct {
	ItemID          uuid.UUID
	SellerID        uuid.UUID
	StartTime       time.Time
	EndTime         time.Time
	MinBidIncrement decimal.Decimal
	ReservePrice    *decimal.Decimal
}

func (s *AuctionService) CreateAuction(ctx context.Context, in CreateAuctionInput) (*models.Auction, error) {
	item, err := s.items.GetByID(ctx, in.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, apperror.ErrItemNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load item")
	}
	if item.SellerID != in.SellerID {
		return nil, apperror.ErrForbidden
	}
	if item.Status != models.ItemStatusActive {
		return nil, apperror.New(apperror.ErrCodeConflict, "item is not available for auction")
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, apperror.New(apperror.ErrCodeValidation, "end time must be after start time")
	}
	if !in.MinBidIncrement.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "minimum bid increment must be positive")
	}
	if in.ReservePrice != nil && !in.ReservePrice.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "reserve price must be positive")
	}
	if _, err := s.auctions.GetByItemID(ctx, in.ItemID); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "item already has an auction")
	} else if !errors.Is(err, repository.ErrAuctionNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to check existing auction")
	}

	status := models.AuctionStatusScheduled
	if !in.StartTime.After(time.Now()) {
		status = models.AuctionStatusActive
	}

	auction := &models.Auction{
		ID:              uuid.New(),
		ItemID:          in.ItemID,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		MinBidIncrement: in.MinBidIncrement,
		ReservePrice:    in.ReservePrice,
		Status:          status,
	}
	if err := s.auctions.Create(ctx, auction); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to create auction")
	}
	return auction, nil
}

func (s *AuctionService) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load auction")
	}
	return auction, nil
}

func (s *AuctionService) GetAuctionByItem(ctx context.Context, itemID uuid.UUID) (*models.Auction, error) {
	auction, err := s.auctions.GetByItemID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load auction")
	}
	return auction, nil
}

// FindExpired lists auctions that are past their end time but still open.
func (s *AuctionService) FindExpired(ctx context.Context, now time.Time) ([]models.Auction, error) {
	return s.auctions.FindExpired(ctx, now)
}

// CloseAuction finalises one expired auction. It is idempotent: an auction
// already closed by a concurrent caller is a silent no-op. The caller must
// hold the auction's lock, the same one bid placement takes.
func (s *AuctionService) CloseAuction(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return apperror.ErrAuctionNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load auction")
	}
	if auction.Status != models.AuctionStatusActive {
		return nil
	}
	if auction.EndTime.After(time.Now()) {
		return apperror.New(apperror.ErrCodeConflict, "auction has not ended yet")
	}

	var (
		order      *models.Order
		winningBid *models.Bid
	)
	if auction.HighestBidID != nil && auction.WinnerID != nil {
		winningBid, err = s.bids.GetByID(ctx, *auction.HighestBidID)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load winning bid")
		}
		item, err := s.items.GetByID(ctx, auction.ItemID)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load item")
		}

		deadline := time.Now().Add(s.paymentWindow)
		order = &models.Order{
			ID:              uuid.New(),
			BuyerID:         *auction.WinnerID,
			SellerID:        item.SellerID,
			ItemID:          item.ID,
			Amount:          winningBid.Amount,
			OrderType:       models.OrderTypeAuctionWin,
			Status:          models.OrderStatusPendingPayment,
			PaymentDeadline: &deadline,
		}
	}

	err = s.auctions.Close(ctx, repository.CloseParams{
		AuctionID:    auction.ID,
		WinnerID:     auction.WinnerID,
		HighestBidID: auction.HighestBidID,
		ClosedAt:     time.Now(),
		Order:        order,
	})
	if errors.Is(err, repository.ErrAuctionNotActive) {
		return nil
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to close auction")
	}

	s.afterClose(ctx, auction, winningBid, order)
	return nil
}

func (s *AuctionService) afterClose(ctx context.Context, auction *models.Auction, winningBid *models.Bid, order *models.Order) {
	log := logger.Log.WithField("auction_id", auction.ID)

	if winningBid == nil {
		log.Info("auction closed without bids")
		if s.hub != nil {
			s.hub.BroadcastToAuction(auction.ID, "auction_ended", map[string]interface{}{
				"auction_id": auction.ID,
				"sold":       false,
			})
		}
		return
	}

	// The item is off the market once the winner's order exists.
	if err := s.items.UpdateStatusGuarded(ctx, auction.ItemID,
		[]string{models.ItemStatusActive}, models.ItemStatusSold); err != nil {
		log.Errorf("auction close: mark item sold: %v", err)
	}

	var itemTitle string
	if item, err := s.items.GetByID(ctx, auction.ItemID); err == nil {
		itemTitle = item.Title
	}

	if s.hub != nil {
		s.hub.BroadcastToAuction(auction.ID, "auction_ended", map[string]interface{}{
			"auction_id":  auction.ID,
			"sold":        true,
			"winner_id":   winningBid.BidderID,
			"final_price": winningBid.Amount,
		})
	}
	if s.publisher != nil {
		s.publisher.Publish(ctx, events.AuctionWon{
			Envelope:  events.NewEnvelope(),
			AuctionID: auction.ID,
			WinnerID:  winningBid.BidderID,
			Amount:    winningBid.Amount,
			ItemTitle: itemTitle,
		})
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, winningBid.BidderID, "auction_won", map[string]interface{}{
			"auction_id": auction.ID,
			"order_id":   order.ID,
			"amount":     winningBid.Amount,
		})
	}

	log.WithField("winner_id", winningBid.BidderID).
		WithField("final_price", winningBid.Amount).
		Info("auction closed with winner")
}
