package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/marketplace-backend/internal/http/middleware"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// currentUserID returns the authenticated user's ID from the request context.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := raw.(uuid.UUID)
	return id, ok
}

// mustUserID is currentUserID for routes behind AuthMiddleware; a missing
// user means the middleware chain is miswired, and we answer 401 anyway.
func mustUserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
	}
	return id, ok
}

// respondError translates a service error into the HTTP response. Anything
// that is not an AppError is masked as a 500.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Log.Errorf("request failed: %v", err)
		}
		c.JSON(appErr.HTTPStatus, gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
		return
	}

	logger.Log.Errorf("unhandled error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
		"code":  apperror.ErrCodeInternal,
	})
}

// parseUUIDParam reads a path parameter already vetted by UUIDValidator.
func parseUUIDParam(c *gin.Context, name string) uuid.UUID {
	id, _ := uuid.Parse(c.Param(name))
	return id
}

// mustParseUUID converts a string the binding layer already validated.
func mustParseUUID(raw string) uuid.UUID {
	id, _ := uuid.Parse(raw)
	return id
}

// parsePagination reads limit/offset query parameters with sane bounds.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = parseIntQuery(c, "limit", defaultPageLimit)
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	offset = parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// parseAmount converts a decimal string from a request body.
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "invalid amount format")
	}
	return amount, nil
}

// parseOptionalAmount converts an optional decimal string; empty means unset.
func parseOptionalAmount(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	amount, err := parseAmount(raw)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}
