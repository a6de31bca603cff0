package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// FinancialRecord is what a venue is owed for one check-in.
type FinancialRecord struct {
	bun.BaseModel `bun:"table:financial_records"`

	ID                string          `bun:"id,pk" json:"id"`
	CheckInID         string          `bun:"check_in_id,notnull,unique" json:"check_in_id"`
	VenueID           string          `bun:"venue_id,notnull" json:"venue_id"`
	PlanID            string          `bun:"plan_id,notnull" json:"plan_id"`
	TransferAmount    decimal.Decimal `bun:"transfer_amount,type:decimal(12,2),notnull" json:"transfer_amount"`
	PlanAmount        decimal.Decimal `bun:"plan_amount,type:decimal(12,2),notnull" json:"plan_amount"`
	PaymentStatus     PaymentStatus   `bun:"payment_status,notnull" json:"payment_status"`
	ProcessedAt       *time.Time      `bun:"processed_at,nullzero" json:"processed_at,omitempty"`
	TransferReference string          `bun:"transfer_reference,nullzero" json:"transfer_reference,omitempty"`
	FailureReason     string          `bun:"failure_reason,nullzero" json:"failure_reason,omitempty"`
	PayoutAttempt     int             `bun:"payout_attempt,notnull,default:0" json:"payout_attempt"`
	CreatedAt         time.Time       `bun:"created_at,notnull" json:"created_at"`
}
