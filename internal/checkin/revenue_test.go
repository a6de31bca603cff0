package checkin_test

import (
	"testing"

	"gym-checkin/internal/checkin"
	"gym-checkin/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferAmount(t *testing.T) {
	tests := []struct {
		name string
		plan models.Plan
		want string
	}{
		{
			name: "flat",
			plan: models.Plan{Type: models.PlanTypeMonthly, Amount: decimal.NewFromInt(100),
				RevenueRule: models.RevenueRule{Kind: models.RevenueRuleFlat, FlatAmount: decimal.RequireFromString("8.25")}},
			want: "8.25",
		},
		{
			name: "plan share with default monthly visits",
			plan: models.Plan{Type: models.PlanTypeMonthly, Amount: decimal.NewFromInt(100),
				RevenueRule: models.RevenueRule{Kind: models.RevenueRulePlanShare, SharePercent: decimal.NewFromInt(60)}},
			want: "5",
		},
		{
			name: "plan share with default annual visits rounds to cents",
			plan: models.Plan{Type: models.PlanTypeAnnual, Amount: decimal.NewFromInt(1000),
				RevenueRule: models.RevenueRule{Kind: models.RevenueRulePlanShare, SharePercent: decimal.NewFromInt(50)}},
			want: "3.47",
		},
		{
			name: "plan share with explicit visits",
			plan: models.Plan{Type: models.PlanTypeCorporate, Amount: decimal.NewFromInt(300),
				RevenueRule: models.RevenueRule{Kind: models.RevenueRulePlanShare, SharePercent: decimal.NewFromInt(40), ExpectedVisits: 8}},
			want: "15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checkin.TransferAmount(&tt.plan)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestTransferAmountRejectsBadRules(t *testing.T) {
	bad := []models.RevenueRule{
		{Kind: "tiered"},
		{},
		{Kind: models.RevenueRuleFlat, FlatAmount: decimal.NewFromInt(-1)},
		{Kind: models.RevenueRulePlanShare, SharePercent: decimal.NewFromInt(150)},
	}
	for _, rule := range bad {
		_, err := checkin.TransferAmount(&models.Plan{Type: models.PlanTypeMonthly, Amount: decimal.NewFromInt(10), RevenueRule: rule})
		assert.ErrorIs(t, err, checkin.ErrInvalidRevenueRule)
	}
}
