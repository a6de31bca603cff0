package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PlanType string

const (
	PlanTypeMonthly    PlanType = "monthly"
	PlanTypeQuarterly  PlanType = "quarterly"
	PlanTypeSemiannual PlanType = "semiannual"
	PlanTypeAnnual     PlanType = "annual"
	PlanTypeCorporate  PlanType = "corporate"
)

type RevenueRuleKind string

const (
	RevenueRuleFlat      RevenueRuleKind = "flat"
	RevenueRulePlanShare RevenueRuleKind = "plan_share"
)

// RevenueRule decides how much of a visit's value goes to the venue.
// Flat uses FlatAmount; plan_share splits SharePercent of the plan amount over ExpectedVisits.
type RevenueRule struct {
	Kind           RevenueRuleKind `json:"kind"`
	FlatAmount     decimal.Decimal `json:"flat_amount,omitempty"`
	SharePercent   decimal.Decimal `json:"share_percent,omitempty"`
	ExpectedVisits int             `json:"expected_visits,omitempty"`
}

type Plan struct {
	bun.BaseModel `bun:"table:plans"`

	ID           string          `bun:"id,pk" json:"id"`
	Name         string          `bun:"name,notnull" json:"name"`
	Type         PlanType        `bun:"plan_type,notnull" json:"plan_type"`
	Amount       decimal.Decimal `bun:"amount,type:decimal(12,2),notnull" json:"amount"`
	DailyLimit   *int            `bun:"daily_limit" json:"daily_limit"`
	WeeklyLimit  *int            `bun:"weekly_limit" json:"weekly_limit"`
	MonthlyLimit *int            `bun:"monthly_limit" json:"monthly_limit"`
	RevenueRule  RevenueRule     `bun:"revenue_rule,type:jsonb" json:"revenue_rule"`
	Active       bool            `bun:"active,notnull" json:"active"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

type SubscriptionStatus string

const (
	SubscriptionActive         SubscriptionStatus = "active"
	SubscriptionPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionCancelled      SubscriptionStatus = "cancelled"
	SubscriptionExpired        SubscriptionStatus = "expired"
)

type Subscription struct {
	bun.BaseModel `bun:"table:plan_subscriptions"`

	ID        string             `bun:"id,pk" json:"id"`
	UserID    string             `bun:"user_id,notnull" json:"user_id"`
	PlanID    string             `bun:"plan_id,notnull" json:"plan_id"`
	Status    SubscriptionStatus `bun:"status,notnull" json:"status"`
	StartsAt  time.Time          `bun:"starts_at,notnull" json:"starts_at"`
	EndsAt    *time.Time         `bun:"ends_at,nullzero" json:"ends_at,omitempty"`
	CreatedAt time.Time          `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// ActiveAt reports whether the subscription entitles its user to check in at now.
func (s *Subscription) ActiveAt(now time.Time) bool {
	if s.Status != SubscriptionActive || now.Before(s.StartsAt) {
		return false
	}
	return s.EndsAt == nil || now.Before(*s.EndsAt)
}
