package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

// ReportService takes in fraud reports for admin triage.
type ReportService struct {
	reports *repository.FraudReportRepository
}

func NewReportService(reports *repository.FraudReportRepository) *ReportService {
	return &ReportService{reports: reports}
}

// FileReportInput is one fraud report. At least one subject (user, item or
// order) must be named.
type FileReportInput struct {
	ReporterID     uuid.UUID
	ReportedUserID *uuid.UUID
	ItemID         *uuid.UUID
	OrderID        *uuid.UUID
	Reason         string
}

func (s *ReportService) FileReport(ctx context.Context, in FileReportInput) (*models.FraudReport, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "reason is required")
	}
	if in.ReportedUserID == nil && in.ItemID == nil && in.OrderID == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "report must name a user, item or order")
	}

	report := &models.FraudReport{
		ID:             uuid.New(),
		ReporterID:     in.ReporterID,
		ReportedUserID: in.ReportedUserID,
		ItemID:         in.ItemID,
		OrderID:        in.OrderID,
		Reason:         in.Reason,
		Status:         models.FraudReportStatusOpen,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to file report")
	}

	logger.Log.WithField("report_id", report.ID).
		WithField("reporter_id", in.ReporterID).
		Warn("fraud report filed")
	return report, nil
}

// ListOpen returns open reports for the admin queue.
func (s *ReportService) ListOpen(ctx context.Context, limit, offset int) ([]models.FraudReport, error) {
	return s.reports.ListByStatus(ctx, models.FraudReportStatusOpen, limit, offset)
}
