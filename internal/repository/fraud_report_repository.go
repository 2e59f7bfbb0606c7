package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

type FraudReportRepository struct {
	db *sqlx.DB
}

func NewFraudReportRepository(db *sqlx.DB) *FraudReportRepository {
	return &FraudReportRepository{db: db}
}

func (r *FraudReportRepository) Create(ctx context.Context, report *models.FraudReport) error {
	query := `
		INSERT INTO fraud_reports (id, reporter_id, reported_user_id, item_id, order_id, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		report.ID, report.ReporterID, report.ReportedUserID, report.ItemID, report.OrderID,
		report.Reason, report.Status).
		Scan(&report.CreatedAt)
	if err != nil {
		return fmt.Errorf("fraud report repository: create %w", err)
	}
	return nil
}

func (r *FraudReportRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.FraudReport, error) {
	var reports []models.FraudReport
	err := r.db.SelectContext(ctx, &reports, `
		SELECT * FROM fraud_reports WHERE status = $1
		ORDER BY created_at ASC LIMIT $2 OFFSET $3
	`, status, limit, offset)
	return reports, err
}
