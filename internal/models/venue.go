package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Venue struct {
	bun.BaseModel `bun:"table:venues"`

	ID              string    `bun:"id,pk" json:"id"`
	Name            string    `bun:"name,notnull" json:"name"`
	Timezone        string    `bun:"timezone,nullzero" json:"timezone,omitempty"`
	PayoutAccountID string    `bun:"payout_account_id,nullzero" json:"-"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	DeletedAt       time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// Location resolves the venue timezone, falling back when it is unset or unknown.
func (v *Venue) Location(fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if v == nil || v.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
