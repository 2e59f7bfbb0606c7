package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	FraudReportStatusOpen      = "open"
	FraudReportStatusReviewed  = "reviewed"
	FraudReportStatusDismissed = "dismissed"
)

// FraudReport is the intake record for admin triage; triage itself happens
// outside this service.
type FraudReport struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ReporterID     uuid.UUID  `db:"reporter_id" json:"reporter_id"`
	ReportedUserID *uuid.UUID `db:"reported_user_id" json:"reported_user_id,omitempty"`
	ItemID         *uuid.UUID `db:"item_id" json:"item_id,omitempty"`
	OrderID        *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	Reason         string     `db:"reason" json:"reason"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
