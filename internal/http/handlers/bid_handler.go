package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/service"
)

type BidHandler struct {
	bids *service.BidService
}

func NewBidHandler(bids *service.BidService) *BidHandler {
	return &BidHandler{bids: bids}
}

type placeBidRequest struct {
	Amount   string `json:"amount" binding:"required"`
	ProxyMax string `json:"proxy_max"`
}

// Place submits a bid on the item's auction. proxy_max, when present,
// authorises automatic bidding up to that ceiling.
func (h *BidHandler) Place(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	proxyMax, err := parseOptionalAmount(req.ProxyMax)
	if err != nil {
		respondError(c, err)
		return
	}

	bid, err := h.bids.PlaceBid(c.Request.Context(), service.PlaceBidInput{
		ItemID:   parseUUIDParam(c, "id"),
		BidderID: userID,
		Amount:   amount,
		ProxyMax: proxyMax,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bid": bid})
}

// ListMine returns the caller's bid history.
func (h *BidHandler) ListMine(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	limit, offset := parsePagination(c)
	bids, err := h.bids.ListMyBids(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}
