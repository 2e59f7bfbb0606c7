package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/service"
)

type AuctionHandler struct {
	auctions *service.AuctionService
	bids     *service.BidService
}

func NewAuctionHandler(auctions *service.AuctionService, bids *service.BidService) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, bids: bids}
}

type createAuctionRequest struct {
	ItemID          string `json:"item_id" binding:"required,uuid"`
	StartTime       string `json:"start_time" binding:"required"`
	EndTime         string `json:"end_time" binding:"required"`
	MinBidIncrement string `json:"min_bid_increment" binding:"required"`
	ReservePrice    string `json:"reserve_price"`
}

func (h *AuctionHandler) Create(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req createAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		respondError(c, apperror.New(apperror.ErrCodeValidation, "invalid start_time format"))
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		respondError(c, apperror.New(apperror.ErrCodeValidation, "invalid end_time format"))
		return
	}
	increment, err := parseAmount(req.MinBidIncrement)
	if err != nil {
		respondError(c, err)
		return
	}
	reserve, err := parseOptionalAmount(req.ReservePrice)
	if err != nil {
		respondError(c, err)
		return
	}

	auction, err := h.auctions.CreateAuction(c.Request.Context(), service.CreateAuctionInput{
		ItemID:          mustParseUUID(req.ItemID),
		SellerID:        userID,
		StartTime:       startTime,
		EndTime:         endTime,
		MinBidIncrement: increment,
		ReservePrice:    reserve,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"auction": auction})
}

func (h *AuctionHandler) Get(c *gin.Context) {
	auction, err := h.auctions.GetAuction(c.Request.Context(), parseUUIDParam(c, "id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auction": auction})
}

// GetByItem resolves the auction attached to an item.
func (h *AuctionHandler) GetByItem(c *gin.Context) {
	auction, err := h.auctions.GetAuctionByItem(c.Request.Context(), parseUUIDParam(c, "id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auction": auction})
}

// ListBids returns an auction's bid history.
func (h *AuctionHandler) ListBids(c *gin.Context) {
	limit, offset := parsePagination(c)
	bids, err := h.bids.ListAuctionBids(c.Request.Context(), parseUUIDParam(c, "id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}
