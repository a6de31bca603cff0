package checkin_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"gym-checkin/internal/checkin"
	"gym-checkin/internal/checkin/db"
	"gym-checkin/internal/models"
	"gym-checkin/internal/notifier"
	"gym-checkin/internal/sse"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readBarrierStore holds every history read until all expected readers have
// read, so each caller evaluates against the same count.
type readBarrierStore struct {
	*db.DB
	reads sync.WaitGroup
}

func (s *readBarrierStore) CheckInTimes(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error) {
	times, err := s.DB.CheckInTimes(ctx, userID, from, to)
	s.reads.Done()
	s.reads.Wait()
	return times, err
}

func TestConcurrentCheckInsAtTwoVenuesRespectDailyLimit(t *testing.T) {
	f := setup(t, &models.Plan{
		ID:          "p1",
		Name:        "Drop-in",
		Type:        models.PlanTypeMonthly,
		Amount:      decimal.RequireFromString("60.00"),
		DailyLimit:  intPtr(1),
		RevenueRule: models.RevenueRule{Kind: models.RevenueRuleFlat, FlatAmount: decimal.RequireFromString("7.50")},
		Active:      true,
	})
	ctx := context.Background()

	first, err := f.svc.GenerateCode(ctx, "u1", "v1")
	require.NoError(t, err)
	second, err := f.svc.GenerateCode(ctx, "u1", "v2")
	require.NoError(t, err)

	store := &readBarrierStore{DB: &db.DB{Bun: f.bun}}
	store.reads.Add(2)
	f.svc.Store = store

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, codeID := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, codeID string) {
			defer wg.Done()
			_, errs[i] = f.svc.RegisterCheckIn(ctx, codeID, models.ValidationManualCode)
		}(i, codeID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var notPermitted *checkin.NotPermittedError
		require.ErrorAs(t, err, &notPermitted)
		assert.Equal(t, checkin.LimitDaily, notPermitted.Limit)
		assert.Equal(t, "daily check-in limit of 1 reached", notPermitted.Reason)
	}
	assert.Equal(t, 1, succeeded)

	records, err := f.bun.NewSelect().Model((*models.CheckInRecord)(nil)).Where("user_id = ?", "u1").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, records)
	financials, err := f.bun.NewSelect().Model((*models.FinancialRecord)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, financials)

	// The losing code was rolled back to open, not burned.
	open := 0
	for _, id := range []string{first.ID, second.ID} {
		code, err := f.svc.GetCode(ctx, id)
		require.NoError(t, err)
		if code.Status == models.CodeStatusPending {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func setSubscriptionStatus(t *testing.T, f *fixture, status models.SubscriptionStatus) {
	t.Helper()
	_, err := f.bun.NewUpdate().
		Model((*models.Subscription)(nil)).
		Set("status = ?", status).
		Where("id = ?", "s1").
		Exec(context.Background())
	require.NoError(t, err)
}

func TestRefusedCheckInLeavesSubscriberWaiting(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	emitter := sse.NewStatusEventEmitter()
	n := notifier.NewNotifier(emitter, nil, time.Minute, nil)
	f.svc.Notifier = n

	code, err := f.svc.GenerateCode(ctx, "u1", "v1")
	require.NoError(t, err)

	events := n.Subscribe(ctx, code.ID)
	require.Eventually(t, func() bool {
		return emitter.ClientCount(notifier.CodeKey(code.ID)) == 1
	}, time.Second, 5*time.Millisecond)

	setSubscriptionStatus(t, f, models.SubscriptionCancelled)
	_, err = f.svc.RegisterCheckIn(ctx, code.ID, models.ValidationManualCode)
	require.ErrorIs(t, err, checkin.ErrNoActivePlan)

	setSubscriptionStatus(t, f, models.SubscriptionActive)
	record, err := f.svc.RegisterCheckIn(ctx, code.ID, models.ValidationManualCode)
	require.NoError(t, err)

	var got []models.StatusEvent
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case e, ok := <-events:
			if !ok {
				done = true
				continue
			}
			got = append(got, e)
		case <-timeout:
			t.Fatalf("subscription still open, got %d events", len(got))
		}
	}

	require.Len(t, got, 2)
	assert.Equal(t, models.StatusEventPending, got[0].Status)
	assert.Equal(t, "no active plan", got[0].Detail)
	assert.Equal(t, models.StatusEventActive, got[1].Status)
	assert.Equal(t, record.ID, got[1].CheckInID)
}
