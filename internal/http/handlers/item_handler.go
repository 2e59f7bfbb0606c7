package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/service"
)

type ItemHandler struct {
	items *service.ItemService
}

func NewItemHandler(items *service.ItemService) *ItemHandler {
	return &ItemHandler{items: items}
}

type createItemRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	StartingBid string `json:"starting_bid"`
	FixedPrice  string `json:"fixed_price"`
	BuyNowPrice string `json:"buy_now_price"`
}

func (h *ItemHandler) Create(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	startingBid, err := parseOptionalAmount(req.StartingBid)
	if err != nil {
		respondError(c, err)
		return
	}
	fixedPrice, err := parseOptionalAmount(req.FixedPrice)
	if err != nil {
		respondError(c, err)
		return
	}
	buyNowPrice, err := parseOptionalAmount(req.BuyNowPrice)
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := h.items.CreateItem(c.Request.Context(), service.CreateItemInput{
		SellerID:    userID,
		Title:       req.Title,
		Description: req.Description,
		StartingBid: startingBid,
		FixedPrice:  fixedPrice,
		BuyNowPrice: buyNowPrice,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.items.GetItem(c.Request.Context(), parseUUIDParam(c, "id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// ListActive is the public marketplace feed.
func (h *ItemHandler) ListActive(c *gin.Context) {
	limit, offset := parsePagination(c)
	items, err := h.items.ListActive(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListMine returns the caller's own listings, whatever their status.
func (h *ItemHandler) ListMine(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	limit, offset := parsePagination(c)
	items, err := h.items.ListBySeller(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ItemHandler) Cancel(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.items.CancelItem(c.Request.Context(), parseUUIDParam(c, "id"), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// Approve puts a pending listing on the market. Admin only.
func (h *ItemHandler) Approve(c *gin.Context) {
	if err := h.items.ApproveItem(c.Request.Context(), parseUUIDParam(c, "id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

// Reject declines a pending listing. Admin only.
func (h *ItemHandler) Reject(c *gin.Context) {
	if err := h.items.RejectItem(c.Request.Context(), parseUUIDParam(c, "id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// ListPending returns the moderation queue. Admin only.
func (h *ItemHandler) ListPending(c *gin.Context) {
	limit, offset := parsePagination(c)
	items, err := h.items.ListPendingApproval(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
