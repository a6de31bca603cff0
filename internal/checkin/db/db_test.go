package db_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"gym-checkin/internal/checkin/db"
	"gym-checkin/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, db.CreateSchema(context.Background(), bunDB))
	t.Cleanup(func() { bunDB.Close() })

	return &db.DB{Bun: bunDB}, bunDB
}

func newCode(userID, venueID, value string, createdAt time.Time) *models.CheckInCode {
	return &models.CheckInCode{
		ID:        uuid.New().String(),
		Code:      value,
		UserID:    userID,
		VenueID:   venueID,
		Status:    models.CodeStatusPending,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(5 * time.Minute),
		QRPayload: `{"code":"` + value + `","venueId":"` + venueID + `"}`,
	}
}

func newRecords(code *models.CheckInCode, at time.Time) (*models.CheckInRecord, *models.FinancialRecord) {
	record := &models.CheckInRecord{
		ID:               uuid.New().String(),
		UserID:           code.UserID,
		VenueID:          code.VenueID,
		CheckInCodeID:    code.ID,
		CheckInTime:      at,
		ValidationMethod: models.ValidationManualCode,
		TransferAmount:   decimal.RequireFromString("12.50"),
		PlanID:           "plan-1",
		SubscriptionID:   "sub-1",
		CreatedAt:        at,
	}
	financial := &models.FinancialRecord{
		ID:             uuid.New().String(),
		CheckInID:      record.ID,
		VenueID:        code.VenueID,
		PlanID:         "plan-1",
		TransferAmount: record.TransferAmount,
		PlanAmount:     decimal.RequireFromString("150.00"),
		PaymentStatus:  models.PaymentStatusPending,
		CreatedAt:      at,
	}
	return record, financial
}

func TestLookupsReturnNilWhenMissing(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	venue, err := store.GetVenue(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, venue)

	code, err := store.GetCode(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, code)

	exists, err := store.UserExists(ctx, "nope")
	assert.NoError(t, err)
	assert.False(t, exists)

	_, err = bunDB.NewInsert().Model(&models.User{ID: "u1", Email: "a@b.c", FullName: "Ana"}).Exec(ctx)
	require.NoError(t, err)
	exists, err = store.UserExists(ctx, "u1")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestSoftDeletedVenueIsInvisible(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	_, err := bunDB.NewInsert().Model(&models.Venue{ID: "v1", Name: "Downtown", Timezone: "America/Sao_Paulo"}).Exec(ctx)
	require.NoError(t, err)

	venue, err := store.GetVenue(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, venue)
	assert.Equal(t, "America/Sao_Paulo", venue.Timezone)

	_, err = bunDB.NewDelete().Model((*models.Venue)(nil)).Where("id = ?", "v1").Exec(ctx)
	require.NoError(t, err)

	venue, err = store.GetVenue(ctx, "v1")
	assert.NoError(t, err)
	assert.Nil(t, venue)
}

func TestGetActiveSubscription(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	ended := t0.Add(-time.Hour)
	subs := []models.Subscription{
		{ID: "old", UserID: "u1", PlanID: "p1", Status: models.SubscriptionActive, StartsAt: t0.AddDate(0, -2, 0), EndsAt: &ended},
		{ID: "cancelled", UserID: "u1", PlanID: "p1", Status: models.SubscriptionCancelled, StartsAt: t0.AddDate(0, 0, -1)},
		{ID: "current", UserID: "u1", PlanID: "p2", Status: models.SubscriptionActive, StartsAt: t0.AddDate(0, 0, -10)},
		{ID: "future", UserID: "u1", PlanID: "p3", Status: models.SubscriptionActive, StartsAt: t0.AddDate(0, 0, 1)},
	}
	_, err := bunDB.NewInsert().Model(&subs).Exec(ctx)
	require.NoError(t, err)

	sub, err := store.GetActiveSubscription(ctx, "u1", t0)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "current", sub.ID)

	sub, err = store.GetActiveSubscription(ctx, "u2", t0)
	assert.NoError(t, err)
	assert.Nil(t, sub)
}

func TestPlanRevenueRuleRoundTrip(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	limit := 2
	plan := &models.Plan{
		ID:         "p1",
		Name:       "Monthly",
		Type:       models.PlanTypeMonthly,
		Amount:     decimal.RequireFromString("120.00"),
		DailyLimit: &limit,
		RevenueRule: models.RevenueRule{
			Kind:         models.RevenueRulePlanShare,
			SharePercent: decimal.NewFromInt(50),
		},
		Active: true,
	}
	_, err := bunDB.NewInsert().Model(plan).Exec(ctx)
	require.NoError(t, err)

	got, err := store.GetPlan(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.DailyLimit)
	assert.Equal(t, 2, *got.DailyLimit)
	assert.Nil(t, got.WeeklyLimit)
	assert.Equal(t, models.RevenueRulePlanShare, got.RevenueRule.Kind)
	assert.True(t, got.RevenueRule.SharePercent.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(120)))
}

func TestReplaceOpenCodeSupersedesSamePairOnly(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	first := newCode("u1", "v1", "AAAAAA", t0)
	superseded, err := store.ReplaceOpenCode(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, superseded)

	otherVenue := newCode("u1", "v2", "BBBBBB", t0)
	_, err = store.ReplaceOpenCode(ctx, otherVenue)
	require.NoError(t, err)

	second := newCode("u1", "v1", "CCCCCC", t0.Add(time.Minute))
	superseded, err = store.ReplaceOpenCode(ctx, second)
	require.NoError(t, err)
	require.Len(t, superseded, 1)
	assert.Equal(t, first.ID, superseded[0].ID)
	assert.Equal(t, models.CodeStatusExpired, superseded[0].Status)

	stored, err := store.GetCode(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStatusExpired, stored.Status)

	stored, err = store.GetCode(ctx, otherVenue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStatusPending, stored.Status, "codes for other venues are untouched")
}

func TestCodeInUseAndFindOpenCode(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	code := newCode("u1", "v1", "AB12CD", t0)
	_, err := store.ReplaceOpenCode(ctx, code)
	require.NoError(t, err)

	inUse, err := store.CodeInUse(ctx, "AB12CD", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = store.CodeInUse(ctx, "AB12CD", code.ExpiresAt)
	require.NoError(t, err)
	assert.False(t, inUse, "an expired code no longer reserves its value")

	found, err := store.FindOpenCode(ctx, "v1", "AB12CD", t0.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, code.ID, found.ID)

	found, err = store.FindOpenCode(ctx, "v2", "AB12CD", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, found, "codes are scoped to their venue")
}

func TestMarkCodeActiveAndError(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	code := newCode("u1", "v1", "AB12CD", t0)
	_, err := store.ReplaceOpenCode(ctx, code)
	require.NoError(t, err)

	ok, err := store.MarkCodeActive(ctx, code.ID, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkCodeActive(ctx, code.ID, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "only pending codes activate")

	ok, err = store.MarkCodeError(ctx, code.ID, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := store.GetCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStatusError, stored.Status)

	expired := newCode("u2", "v1", "ZZZZZZ", t0)
	_, err = store.ReplaceOpenCode(ctx, expired)
	require.NoError(t, err)
	ok, err = store.MarkCodeError(ctx, expired.ID, expired.ExpiresAt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeCodeWritesRecordsOnce(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	code := newCode("u1", "v1", "AB12CD", t0)
	_, err := store.ReplaceOpenCode(ctx, code)
	require.NoError(t, err)

	at := t0.Add(2 * time.Minute)
	record, financial := newRecords(code, at)
	ok, err := store.ConsumeCode(ctx, code.ID, at, nil, record, financial)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := store.GetCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStatusUsed, stored.Status)
	require.NotNil(t, stored.UsedAt)
	assert.True(t, stored.UsedAt.Equal(at))

	byCode, err := store.GetCheckInByCode(ctx, code.ID)
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, record.ID, byCode.ID)
	assert.True(t, byCode.TransferAmount.Equal(decimal.RequireFromString("12.50")))

	fin, err := store.GetFinancialRecord(ctx, financial.ID)
	require.NoError(t, err)
	require.NotNil(t, fin)
	assert.Equal(t, models.PaymentStatusPending, fin.PaymentStatus)

	again, againFin := newRecords(code, at)
	ok, err = store.ConsumeCode(ctx, code.ID, at, nil, again, againFin)
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := store.GetCheckInRecord(ctx, again.ID)
	require.NoError(t, err)
	assert.Nil(t, missing, "a rejected consume leaves no record behind")
}

func TestConsumeCodeRejectsExpiryInstant(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	code := newCode("u1", "v1", "AB12CD", t0)
	_, err := store.ReplaceOpenCode(ctx, code)
	require.NoError(t, err)

	record, financial := newRecords(code, code.ExpiresAt)
	ok, err := store.ConsumeCode(ctx, code.ID, code.ExpiresAt, nil, record, financial)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeCodeRecountsQuotaWindows(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()
	daily := []models.QuotaWindow{{Period: "daily", Since: t0.Truncate(24 * time.Hour), Max: 1}}

	atV1 := newCode("u1", "v1", "AAAAAA", t0)
	_, err := store.ReplaceOpenCode(ctx, atV1)
	require.NoError(t, err)
	atV2 := newCode("u1", "v2", "BBBBBB", t0)
	_, err = store.ReplaceOpenCode(ctx, atV2)
	require.NoError(t, err)

	at := t0.Add(time.Minute)
	record, financial := newRecords(atV1, at)
	ok, err := store.ConsumeCode(ctx, atV1.ID, at, daily, record, financial)
	require.NoError(t, err)
	assert.True(t, ok)

	second, secondFin := newRecords(atV2, at)
	ok, err = store.ConsumeCode(ctx, atV2.ID, at, daily, second, secondFin)
	assert.False(t, ok)
	var reached *models.QuotaReachedError
	require.ErrorAs(t, err, &reached)
	assert.Equal(t, "daily", reached.Window.Period)
	assert.Equal(t, 1, reached.Count)

	stored, err := store.GetCode(ctx, atV2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStatusPending, stored.Status, "a full window rolls the code back")

	count, err := bunDB.NewSelect().Model((*models.FinancialRecord)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConcurrentConsumeHasSingleWinner(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	code := newCode("u1", "v1", "AB12CD", t0)
	_, err := store.ReplaceOpenCode(ctx, code)
	require.NoError(t, err)

	const attempts = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := t0.Add(time.Minute)
			record, financial := newRecords(code, at)
			ok, err := store.ConsumeCode(ctx, code.ID, at, nil, record, financial)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	count, err := bunDB.NewSelect().Model((*models.CheckInRecord)(nil)).Where("check_in_code_id = ?", code.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckInTimesWindow(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	times := []time.Time{t0.AddDate(0, 0, -40), t0.AddDate(0, 0, -3), t0.Add(-time.Hour)}
	for i, at := range times {
		code := newCode("u1", "v1", "CODE0"+string(rune('A'+i)), at)
		record, _ := newRecords(code, at)
		_, err := bunDB.NewInsert().Model(record).Exec(ctx)
		require.NoError(t, err)
	}
	other, _ := newRecords(newCode("u2", "v1", "OTHER1", t0), t0.Add(-time.Minute))
	_, err := bunDB.NewInsert().Model(other).Exec(ctx)
	require.NoError(t, err)

	got, err := store.CheckInTimes(ctx, "u1", t0.AddDate(0, 0, -10), t0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(times[1]))
	assert.True(t, got[1].Equal(times[2]))
}

func TestExpireStaleCodes(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	stale := newCode("u1", "v1", "STALE1", t0)
	fresh := newCode("u2", "v1", "FRESH1", t0.Add(10*time.Minute))
	for _, c := range []*models.CheckInCode{stale, fresh} {
		_, err := store.ReplaceOpenCode(ctx, c)
		require.NoError(t, err)
	}

	expired, err := store.ExpireStaleCodes(ctx, t0.Add(6*time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)

	stored, err := store.GetCode(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStatusPending, stored.Status)

	expired, err = store.ExpireStaleCodes(ctx, t0.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestFinancialRecordTransitions(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	first, firstFin := newRecords(newCode("u1", "v1", "AAAAAA", t0), t0)
	second, secondFin := newRecords(newCode("u2", "v1", "BBBBBB", t0), t0.Add(time.Minute))
	for _, m := range []interface{}{first, firstFin, second, secondFin} {
		_, err := bunDB.NewInsert().Model(m).Exec(ctx)
		require.NoError(t, err)
	}

	pending, err := store.ListPendingFinancialRecords(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, firstFin.ID, pending[0].ID, "oldest first")

	ok, err := store.MarkFinancialRecordPaid(ctx, firstFin.ID, "tr_123", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkFinancialRecordFailed(ctx, firstFin.ID, "late failure", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "paid records are final")

	ok, err = store.MarkFinancialRecordFailed(ctx, secondFin.ID, "venue has no payout account", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	paid, err := store.GetFinancialRecord(ctx, firstFin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, "tr_123", paid.TransferReference)
	require.NotNil(t, paid.ProcessedAt)

	reset, err := store.ResetFailedFinancialRecords(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)

	pending, err = store.ListPendingFinancialRecords(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, secondFin.ID, pending[0].ID)
	assert.Empty(t, pending[0].FailureReason)
	assert.Equal(t, 1, pending[0].PayoutAttempt)
}
