package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CodeStatus string

const (
	CodeStatusPending CodeStatus = "pending"
	CodeStatusActive  CodeStatus = "active"
	CodeStatusUsed    CodeStatus = "used"
	CodeStatusExpired CodeStatus = "expired"
	CodeStatusError   CodeStatus = "error"
)

// OpenCodeStatuses are the statuses from which a code can still be consumed.
var OpenCodeStatuses = []CodeStatus{CodeStatusPending, CodeStatusActive}

// CheckInCode is a short-lived code a member shows at a venue.
type CheckInCode struct {
	bun.BaseModel `bun:"table:check_in_codes"`

	ID        string     `bun:"id,pk" json:"id"`
	Code      string     `bun:"code,notnull" json:"code"`
	UserID    string     `bun:"user_id,notnull" json:"user_id"`
	VenueID   string     `bun:"venue_id,notnull" json:"venue_id"`
	Status    CodeStatus `bun:"status,notnull" json:"status"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	UsedAt    *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	QRPayload string     `bun:"qr_payload,notnull" json:"qr_payload"`
}

func (s CodeStatus) IsOpen() bool {
	return s == CodeStatusPending || s == CodeStatusActive
}

// ExpiredAt reports whether the code's window has closed at now, whatever its stored status.
func (c *CheckInCode) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ConsumableAt reports whether the code may still turn into a check-in.
func (c *CheckInCode) ConsumableAt(now time.Time) bool {
	return c.Status.IsOpen() && !c.ExpiredAt(now)
}

// EffectiveStatus folds computed expiry into the stored status.
func (c *CheckInCode) EffectiveStatus(now time.Time) CodeStatus {
	if c.Status.IsOpen() && c.ExpiredAt(now) {
		return CodeStatusExpired
	}
	return c.Status
}
