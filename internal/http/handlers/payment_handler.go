package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/service"
)

type PaymentHandler struct {
	escrow *service.EscrowService
}

func NewPaymentHandler(escrow *service.EscrowService) *PaymentHandler {
	return &PaymentHandler{escrow: escrow}
}

type payOrderRequest struct {
	Amount        string `json:"amount" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
	ExternalTxID  string `json:"external_tx_id"`
}

// Pay captures the buyer's payment; the funds go into escrow custody.
func (h *PaymentHandler) Pay(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req payOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	tx, err := h.escrow.ProcessPayment(c.Request.Context(), service.PaymentInput{
		OrderID:       parseUUIDParam(c, "id"),
		BuyerID:       userID,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		ExternalTxID:  req.ExternalTxID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// GetTransaction returns the escrow transaction backing an order.
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	tx, err := h.escrow.GetTransaction(c.Request.Context(), parseUUIDParam(c, "id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// GetWallet returns the caller's escrow wallet balance.
func (h *PaymentHandler) GetWallet(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	wallet, err := h.escrow.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": wallet})
}

// Refund returns the full order amount to the buyer. Admin only: refunds are
// the dispute-resolution path, not a self-service button.
func (h *PaymentHandler) Refund(c *gin.Context) {
	if err := h.escrow.Refund(c.Request.Context(), parseUUIDParam(c, "id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refunded"})
}

// Release pays the seller out of custody ahead of the auto-release deadline.
// Admin only.
func (h *PaymentHandler) Release(c *gin.Context) {
	if err := h.escrow.Release(c.Request.Context(), parseUUIDParam(c, "id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "released"})
}
