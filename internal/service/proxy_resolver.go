package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// OpponentProxy is the strongest active proxy bid belonging to a different
// bidder. Weaker opponents are dominated and never matter.
type OpponentProxy struct {
	BidderID  uuid.UUID
	MaxAmount decimal.Decimal
}

// ProxyBidInput is the snapshot a single bid is resolved against. The caller
// must hold the auction lock so the snapshot cannot move underneath.
type ProxyBidInput struct {
	BidderID     uuid.UUID
	Amount       decimal.Decimal
	ProxyMax     *decimal.Decimal
	CurrentPrice decimal.Decimal
	MinIncrement decimal.Decimal
	ReservePrice *decimal.Decimal
	BidCount     int
	Opponent     *OpponentProxy
}

// ResolvedBid is one bid row the resolution produces.
type ResolvedBid struct {
	BidderID   uuid.UUID
	Amount     decimal.Decimal
	IsAutoBid  bool
	IsProxyBid bool
	Winning    bool
}

// BidResolution is the outcome of one resolution. Bids lists the rows to
// create in order; the last entry is always the new highest bid, which may
// belong to the opponent rather than the submitter.
type BidResolution struct {
	EffectiveMax decimal.Decimal
	Bids         []ResolvedBid
}

// WinningBid returns the bid that ends up on top.
func (r *BidResolution) WinningBid() ResolvedBid {
	return r.Bids[len(r.Bids)-1]
}

// ResolveProxyBid decides proxy-bid competition for one incoming bid. It is
// a pure function: no IO, no clock, no randomness beyond the inputs.
func ResolveProxyBid(in ProxyBidInput) (*BidResolution, error) {
	// The first bid may open at the reserve price; afterwards every bid must
	// clear the current price by the minimum increment.
	minBid := in.CurrentPrice.Add(in.MinIncrement)
	if in.BidCount == 0 && in.ReservePrice != nil {
		minBid = *in.ReservePrice
	}

	if in.Amount.LessThan(minBid) {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("bid must be at least %s", minBid.String()))
	}

	effectiveMax := in.Amount
	if in.ProxyMax != nil && in.ProxyMax.GreaterThan(effectiveMax) {
		effectiveMax = *in.ProxyMax
	}

	res := &BidResolution{EffectiveMax: effectiveMax}

	if in.Opponent == nil {
		// No proxy competition: the visible bid wins outright.
		res.Bids = []ResolvedBid{{
			BidderID:   in.BidderID,
			Amount:     in.Amount,
			IsProxyBid: in.ProxyMax != nil,
			Winning:    true,
		}}
		return res, nil
	}

	if effectiveMax.GreaterThan(in.Opponent.MaxAmount) {
		// The submitter outlasts the opponent's ceiling and pays one
		// increment above it, capped by their own ceiling.
		price := in.Opponent.MaxAmount.Add(in.MinIncrement)
		if price.GreaterThan(effectiveMax) {
			price = effectiveMax
		}
		res.Bids = []ResolvedBid{{
			BidderID:   in.BidderID,
			Amount:     price,
			IsAutoBid:  true,
			IsProxyBid: in.ProxyMax != nil,
			Winning:    true,
		}}
		return res, nil
	}

	// Ties favour the opponent: their earlier proxy holds. The submitter's
	// visible bid is recorded and immediately beaten by the opponent's
	// auto-fire at one increment above it, capped by the opponent's ceiling.
	price := in.Amount.Add(in.MinIncrement)
	if price.GreaterThan(in.Opponent.MaxAmount) {
		price = in.Opponent.MaxAmount
	}
	res.Bids = []ResolvedBid{
		{
			BidderID: in.BidderID,
			Amount:   in.Amount,
		},
		{
			BidderID:   in.Opponent.BidderID,
			Amount:     price,
			IsAutoBid:  true,
			IsProxyBid: true,
			Winning:    true,
		},
	}
	return res, nil
}
