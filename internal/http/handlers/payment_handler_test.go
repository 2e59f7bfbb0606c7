package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/marketplace-backend/internal/http/middleware"
)

func TestPaymentHandler_Pay_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{escrow: nil}
	r.POST("/orders/:id/pay", handler.Pay)

	req, _ := http.NewRequest("POST", "/orders/6f1c8a84-6f06-4f07-9159-9d78e4090266/pay", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_GetWallet_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{escrow: nil}
	r.GET("/wallet", handler.GetWallet)

	req, _ := http.NewRequest("GET", "/wallet", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_GetTransaction_InvalidOrderID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{escrow: nil}
	r.GET("/orders/:id/escrow", middleware.UUIDValidator("id"), handler.GetTransaction)

	req, _ := http.NewRequest("GET", "/orders/not-a-uuid/escrow", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
