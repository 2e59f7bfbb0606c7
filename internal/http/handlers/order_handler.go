package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/service"
)

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type buyNowRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"required"`
}

// BuyNow opens an order at the item's buy-now price.
func (h *OrderHandler) BuyNow(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req buyNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orders.CreateBuyNow(c.Request.Context(), service.CreateBuyNowInput{
		ItemID:          parseUUIDParam(c, "id"),
		BuyerID:         userID,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (h *OrderHandler) Get(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), parseUUIDParam(c, "id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// List returns the caller's orders. ?role=seller switches to the sales view.
func (h *OrderHandler) List(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	limit, offset := parsePagination(c)

	var err error
	var orders interface{}
	if c.Query("role") == "seller" {
		orders, err = h.orders.ListBySeller(c.Request.Context(), userID, limit, offset)
	} else {
		orders, err = h.orders.ListByBuyer(c.Request.Context(), userID, limit, offset)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type shipRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
	Carrier        string `json:"carrier" binding:"required"`
}

// Ship records the seller handing the item to a carrier.
func (h *OrderHandler) Ship(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	info, err := h.orders.Ship(c.Request.Context(), service.ShipInput{
		OrderID:        parseUUIDParam(c, "id"),
		SellerID:       userID,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shipping": info})
}

// ConfirmDelivery is the buyer acknowledging receipt; it releases escrow.
func (h *OrderHandler) ConfirmDelivery(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	if err := h.orders.ConfirmDelivery(c.Request.Context(), parseUUIDParam(c, "id"), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "delivered"})
}

type disputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Dispute freezes the order's escrow funds pending resolution.
func (h *OrderHandler) Dispute(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.orders.OpenDispute(c.Request.Context(), parseUUIDParam(c, "id"), userID, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disputed"})
}

// MarkLost refunds the buyer for a shipment that never arrived.
func (h *OrderHandler) MarkLost(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	if err := h.orders.MarkAsLost(c.Request.Context(), parseUUIDParam(c, "id"), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refunded"})
}

// GetShipping returns tracking details to a participant.
func (h *OrderHandler) GetShipping(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	info, err := h.orders.GetShippingInfo(c.Request.Context(), parseUUIDParam(c, "id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shipping": info})
}
