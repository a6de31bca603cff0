package checkin

import (
	"context"
	"fmt"
	"time"

	"gym-checkin/internal/models"
	"gym-checkin/internal/utils"

	"github.com/shopspring/decimal"
)

type Limit string

const (
	LimitDaily   Limit = "daily"
	LimitWeekly  Limit = "weekly"
	LimitMonthly Limit = "monthly"
)

// Quotas holds remaining check-ins per period. Nil means the plan sets no limit.
type Quotas struct {
	Daily   *int `json:"daily"`
	Weekly  *int `json:"weekly"`
	Monthly *int `json:"monthly"`
}

type Evaluation struct {
	CanCheckIn      bool            `json:"can_check_in"`
	Reason          string          `json:"reason,omitempty"`
	LimitHit        Limit           `json:"limit_hit,omitempty"`
	QuotasRemaining Quotas          `json:"quotas_remaining"`
	TransferAmount  decimal.Decimal `json:"transfer_amount"`
	PlanAmount      decimal.Decimal `json:"plan_amount"`
	PlanID          string          `json:"plan_id"`
	SubscriptionID  string          `json:"subscription_id"`

	// Windows are the capped periods, recounted by the store when the check-in commits.
	Windows []models.QuotaWindow `json:"-"`
}

type periodCount struct {
	limit Limit
	max   *int
	count int
}

// Evaluate decides whether the member may check in at the venue at now. It
// never writes. Periods are the venue's local day, ISO week and calendar month.
func (s *CheckInService) Evaluate(ctx context.Context, userID, venueID string, now time.Time) (*Evaluation, error) {
	exists, err := s.Store.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	venue, err := s.Store.GetVenue(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("lookup venue: %w", err)
	}
	if venue == nil {
		return nil, ErrVenueNotFound
	}

	sub, err := s.Store.GetActiveSubscription(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("lookup subscription: %w", err)
	}
	if sub == nil {
		return nil, ErrNoActivePlan
	}

	plan, err := s.Store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("lookup plan: %w", err)
	}
	if plan == nil {
		return nil, ErrNoActivePlan
	}

	loc := venue.Location(s.DefaultLocation)
	dayStart := utils.StartOfDay(now, loc)
	weekStart := utils.StartOfISOWeek(now, loc)
	monthStart := utils.StartOfMonth(now, loc)

	from := weekStart
	if monthStart.Before(from) {
		from = monthStart
	}

	times, err := s.Store.CheckInTimes(ctx, userID, from.UTC(), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("load check-in history: %w", err)
	}

	periods := []periodCount{
		{limit: LimitDaily, max: plan.DailyLimit},
		{limit: LimitWeekly, max: plan.WeeklyLimit},
		{limit: LimitMonthly, max: plan.MonthlyLimit},
	}
	starts := []time.Time{dayStart, weekStart, monthStart}
	for _, t := range times {
		for i, start := range starts {
			if !t.Before(start) {
				periods[i].count++
			}
		}
	}

	eval := &Evaluation{
		PlanAmount:     plan.Amount,
		PlanID:         plan.ID,
		SubscriptionID: sub.ID,
	}
	for i, p := range periods {
		if p.max != nil {
			eval.Windows = append(eval.Windows, models.QuotaWindow{Period: string(p.limit), Since: starts[i].UTC(), Max: *p.max})
		}
	}

	for _, p := range periods {
		if p.max != nil && p.count >= *p.max {
			eval.Reason = fmt.Sprintf("%s check-in limit of %d reached", p.limit, *p.max)
			eval.LimitHit = p.limit
			eval.QuotasRemaining = remaining(periods)
			return eval, nil
		}
	}

	amount, err := TransferAmount(plan)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, err)
	}

	eval.CanCheckIn = true
	eval.TransferAmount = amount
	eval.QuotasRemaining = remaining(periods)
	return eval, nil
}

func remaining(periods []periodCount) Quotas {
	left := func(p periodCount) *int {
		if p.max == nil {
			return nil
		}
		n := *p.max - p.count
		if n < 0 {
			n = 0
		}
		return &n
	}
	return Quotas{
		Daily:   left(periods[0]),
		Weekly:  left(periods[1]),
		Monthly: left(periods[2]),
	}
}
