package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckInRegisteredEvent is published once a code has been consumed.
type CheckInRegisteredEvent struct {
	CheckInID         string           `json:"check_in_id"`
	FinancialRecordID string           `json:"financial_record_id"`
	UserID            string           `json:"user_id"`
	VenueID           string           `json:"venue_id"`
	PlanID            string           `json:"plan_id"`
	ValidationMethod  ValidationMethod `json:"validation_method"`
	TransferAmount    decimal.Decimal  `json:"transfer_amount"`
	CheckInTime       time.Time        `json:"check_in_time"`
}

type CodeGeneratedEvent struct {
	CodeID    string    `json:"code_id"`
	UserID    string    `json:"user_id"`
	VenueID   string    `json:"venue_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CheckInSettledEvent struct {
	FinancialRecordID string          `json:"financial_record_id"`
	CheckInID         string          `json:"check_in_id"`
	VenueID           string          `json:"venue_id"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	TransferAmount    decimal.Decimal `json:"transfer_amount"`
	TransferReference string          `json:"transfer_reference,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	ProcessedAt       time.Time       `json:"processed_at"`
}
