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

// BidService runs the bidding engine. Every mutation of an auction happens
// under that auction's distributed lock, so one bid at a time is resolved
// against a stable snapshot.
type BidService struct {
	auctions  AuctionStore
	bids      BidStore
	items     ItemStore
	locks     Locker
	publisher events.Publisher
	hub       AuctionBroadcaster
	notifier  Notifier
	lockWait  time.Duration
	lockLease time.Duration
}

func NewBidService(
	auctions AuctionStore,
	bids BidStore,
	items ItemStore,
	locks Locker,
	publisher events.Publisher,
	hub AuctionBroadcaster,
	notifier Notifier,
	lockWait, lockLease time.Duration,
) *BidService {
	return &BidService{
		auctions:  auctions,
		bids:      bids,
		items:     items,
		locks:     locks,
		publisher: publisher,
		hub:       hub,
		notifier:  notifier,
		lockWait:  lockWait,
		lockLease: lockLease,
	}
}

// PlaceBidInput is one bid submission. ProxyMax, when set, authorises
// automatic bidding up to that ceiling.
type PlaceBidInput struct {
	ItemID   uuid.UUID
	BidderID uuid.UUID
	Amount   decimal.Decimal
	ProxyMax *decimal.Decimal
}

// PlaceBid validates and resolves one bid. The returned bid is the new
// highest bid, which belongs to another bidder when their standing proxy
// outbid the submission.
func (s *BidService) PlaceBid(ctx context.Context, in PlaceBidInput) (*models.Bid, error) {
	auction, err := s.auctions.GetByItemID(ctx, in.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load auction")
	}

	key := auctionLockKey(auction.ID)
	if !s.locks.AcquireWithRetry(ctx, key, s.lockWait, s.lockLease) {
		return nil, apperror.ErrSystemBusy
	}
	defer s.locks.Release(ctx, key)

	// Reload under the lock; the snapshot taken before it may be stale.
	auction, err = s.auctions.GetByID(ctx, auction.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to reload auction")
	}
	item, err := s.items.GetByID(ctx, auction.ItemID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load item")
	}

	if err := s.validateBiddable(auction, item, in); err != nil {
		return nil, err
	}

	opponent, err := s.findOpponent(ctx, auction.ID, in.BidderID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load proxy bids")
	}

	res, err := ResolveProxyBid(ProxyBidInput{
		BidderID:     in.BidderID,
		Amount:       in.Amount,
		ProxyMax:     in.ProxyMax,
		CurrentPrice: item.CurrentPrice,
		MinIncrement: auction.MinBidIncrement,
		ReservePrice: auction.ReservePrice,
		BidCount:     auction.BidCount,
		Opponent:     opponent,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]models.Bid, len(res.Bids))
	for i, rb := range res.Bids {
		status := models.BidStatusOutbid
		if rb.Winning {
			status = models.BidStatusActive
		}
		rows[i] = models.Bid{
			ID:         uuid.New(),
			AuctionID:  auction.ID,
			BidderID:   rb.BidderID,
			Amount:     rb.Amount,
			IsProxyBid: rb.IsProxyBid,
			IsAutoBid:  rb.IsAutoBid,
			Status:     status,
		}
	}
	winning := rows[len(rows)-1]

	err = s.bids.ApplyResolution(ctx, repository.ResolutionParams{
		AuctionID:  auction.ID,
		ItemID:     item.ID,
		BidderID:   in.BidderID,
		ProxyMax:   res.EffectiveMax,
		Bids:       rows,
		WinningBid: winning,
		NewPrice:   winning.Amount,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to record bid")
	}

	s.afterBid(ctx, auction, &winning)

	return &winning, nil
}

func (s *BidService) validateBiddable(auction *models.Auction, item *models.Item, in PlaceBidInput) error {
	now := time.Now()

	if auction.Status == models.AuctionStatusClosed {
		return apperror.New(apperror.ErrCodeConflict, "auction is closed")
	}
	if now.Before(auction.StartTime) {
		return apperror.New(apperror.ErrCodeConflict, "auction has not started yet")
	}
	if now.After(auction.EndTime) {
		return apperror.New(apperror.ErrCodeConflict, "auction has ended")
	}
	if item.Status != models.ItemStatusActive {
		return apperror.New(apperror.ErrCodeConflict, "item is not available for bidding")
	}
	if in.BidderID == item.SellerID {
		return apperror.New(apperror.ErrCodeForbidden, "sellers cannot bid on their own items")
	}
	if !in.Amount.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "bid amount must be positive")
	}
	if in.ProxyMax != nil && in.ProxyMax.LessThan(in.Amount) {
		return apperror.New(apperror.ErrCodeValidation, "proxy ceiling cannot be below the bid amount")
	}
	return nil
}

// findOpponent returns the strongest active proxy that belongs to someone
// other than the submitter. Proxies come back ordered by ceiling, ties by
// age, so the first foreign row is the one that matters.
func (s *BidService) findOpponent(ctx context.Context, auctionID, bidderID uuid.UUID) (*OpponentProxy, error) {
	proxies, err := s.bids.FindActiveProxyBids(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	for _, p := range proxies {
		if p.BidderID != bidderID {
			return &OpponentProxy{BidderID: p.BidderID, MaxAmount: p.MaxAmount}, nil
		}
	}
	return nil, nil
}

// afterBid runs the post-commit side effects. None of them can fail the bid:
// the resolution is already durable.
func (s *BidService) afterBid(ctx context.Context, auction *models.Auction, winning *models.Bid) {
	if s.hub != nil {
		s.hub.BroadcastToAuction(auction.ID, "new_bid", map[string]interface{}{
			"auction_id": auction.ID,
			"bidder_id":  winning.BidderID,
			"amount":     winning.Amount,
			"is_auto":    winning.IsAutoBid,
		})
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, events.BidPlaced{
			Envelope:  events.NewEnvelope(),
			AuctionID: auction.ID,
			BidderID:  winning.BidderID,
			Amount:    winning.Amount,
			IsAutoBid: winning.IsAutoBid,
		})
	}

	// The previous front-runner just lost the lead.
	if s.notifier != nil && auction.WinnerID != nil && *auction.WinnerID != winning.BidderID {
		s.notifier.Notify(ctx, *auction.WinnerID, "outbid", map[string]interface{}{
			"auction_id": auction.ID,
			"new_price":  winning.Amount,
		})
	}

	logger.Log.WithField("auction_id", auction.ID).
		WithField("bidder_id", winning.BidderID).
		WithField("amount", winning.Amount).
		Info("bid placed")
}

// ListAuctionBids returns an auction's bid history, highest first.
func (s *BidService) ListAuctionBids(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	if _, err := s.auctions.GetByID(ctx, auctionID); err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, apperror.ErrAuctionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load auction")
	}
	return s.bids.ListByAuction(ctx, auctionID, limit, offset)
}

// ListMyBids returns the caller's own bid history, newest first.
func (s *BidService) ListMyBids(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	return s.bids.ListByBidder(ctx, bidderID, limit, offset)
}
