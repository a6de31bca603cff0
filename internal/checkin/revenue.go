package checkin

import (
	"fmt"

	"gym-checkin/internal/models"

	"github.com/shopspring/decimal"
)

// expectedVisits is the plan_share divisor used when a rule leaves it unset.
var expectedVisits = map[models.PlanType]int{
	models.PlanTypeMonthly:    12,
	models.PlanTypeQuarterly:  36,
	models.PlanTypeSemiannual: 72,
	models.PlanTypeAnnual:     144,
	models.PlanTypeCorporate:  20,
}

var hundred = decimal.NewFromInt(100)

// TransferAmount is what the venue is owed for one visit under the plan's revenue rule.
func TransferAmount(plan *models.Plan) (decimal.Decimal, error) {
	rule := plan.RevenueRule

	switch rule.Kind {
	case models.RevenueRuleFlat:
		if rule.FlatAmount.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: negative flat amount", ErrInvalidRevenueRule)
		}
		return rule.FlatAmount.Round(2), nil

	case models.RevenueRulePlanShare:
		if rule.SharePercent.IsNegative() || rule.SharePercent.GreaterThan(hundred) {
			return decimal.Zero, fmt.Errorf("%w: share percent out of range", ErrInvalidRevenueRule)
		}
		visits := rule.ExpectedVisits
		if visits <= 0 {
			visits = expectedVisits[plan.Type]
		}
		if visits <= 0 {
			return decimal.Zero, fmt.Errorf("%w: no expected visits for plan type %q", ErrInvalidRevenueRule, plan.Type)
		}
		return plan.Amount.
			Mul(rule.SharePercent).
			Div(hundred).
			Div(decimal.NewFromInt(int64(visits))).
			Round(2), nil
	}

	return decimal.Zero, fmt.Errorf("%w: unknown kind %q", ErrInvalidRevenueRule, rule.Kind)
}
