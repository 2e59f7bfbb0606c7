package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/service"
)

type ReportHandler struct {
	reports *service.ReportService
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type fileReportRequest struct {
	ReportedUserID string `json:"reported_user_id" binding:"omitempty,uuid"`
	ItemID         string `json:"item_id" binding:"omitempty,uuid"`
	OrderID        string `json:"order_id" binding:"omitempty,uuid"`
	Reason         string `json:"reason" binding:"required"`
}

func (h *ReportHandler) File(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req fileReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	report, err := h.reports.FileReport(c.Request.Context(), service.FileReportInput{
		ReporterID:     userID,
		ReportedUserID: optionalUUID(req.ReportedUserID),
		ItemID:         optionalUUID(req.ItemID),
		OrderID:        optionalUUID(req.OrderID),
		Reason:         req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"report": report})
}

// ListOpen returns open reports. Admin only.
func (h *ReportHandler) ListOpen(c *gin.Context) {
	limit, offset := parsePagination(c)
	reports, err := h.reports.ListOpen(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func optionalUUID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
