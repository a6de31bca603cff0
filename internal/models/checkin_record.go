package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type ValidationMethod string

const (
	ValidationQRCode     ValidationMethod = "qr_code"
	ValidationManualCode ValidationMethod = "manual_code"
	ValidationToken      ValidationMethod = "token"
)

func (m ValidationMethod) Valid() bool {
	switch m {
	case ValidationQRCode, ValidationManualCode, ValidationToken:
		return true
	}
	return false
}

type CheckInRecord struct {
	bun.BaseModel `bun:"table:check_in_records"`

	ID               string           `bun:"id,pk" json:"id"`
	UserID           string           `bun:"user_id,notnull" json:"user_id"`
	VenueID          string           `bun:"venue_id,notnull" json:"venue_id"`
	CheckInCodeID    string           `bun:"check_in_code_id,notnull,unique" json:"check_in_code_id"`
	CheckInTime      time.Time        `bun:"check_in_time,notnull" json:"check_in_time"`
	CheckOutTime     *time.Time       `bun:"check_out_time,nullzero" json:"check_out_time,omitempty"`
	ValidationMethod ValidationMethod `bun:"validation_method,notnull" json:"validation_method"`
	TransferAmount   decimal.Decimal  `bun:"transfer_amount,type:decimal(12,2),notnull" json:"transfer_amount"`
	PlanID           string           `bun:"plan_id,notnull" json:"plan_id"`
	SubscriptionID   string           `bun:"subscription_id,notnull" json:"subscription_id"`
	CreatedAt        time.Time        `bun:"created_at,notnull" json:"created_at"`
}
