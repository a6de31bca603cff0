package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gym-checkin/internal/models"

	"github.com/uptrace/bun"
)

// DB is the bun-backed check-in store. Lookups that may legitimately find
// nothing return (nil, nil) so callers can tell absence from failure.
type DB struct {
	Bun *bun.DB
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// UserExists ignores soft-deleted users.
func (d *DB) UserExists(ctx context.Context, userID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.User)(nil)).
		Where("id = ?", userID).
		Exists(ctx)
}

// GetVenue returns nil for unknown or soft-deleted venues.
func (d *DB) GetVenue(ctx context.Context, venueID string) (*models.Venue, error) {
	var venue models.Venue
	err := d.Bun.NewSelect().
		Model(&venue).
		Where("id = ?", venueID).
		Limit(1).
		Scan(ctx)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &venue, nil
}

func (d *DB) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	var plan models.Plan
	err := d.Bun.NewSelect().
		Model(&plan).
		Where("id = ?", planID).
		Limit(1).
		Scan(ctx)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetActiveSubscription picks the most recently started subscription active at now.
func (d *DB) GetActiveSubscription(ctx context.Context, userID string, now time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := d.Bun.NewSelect().
		Model(&sub).
		Where("user_id = ?", userID).
		Where("status = ?", models.SubscriptionActive).
		Where("starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at > ?", now).
		OrderExpr("starts_at DESC").
		Limit(1).
		Scan(ctx)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CheckInTimes lists the user's check-ins at any venue in [from, to].
func (d *DB) CheckInTimes(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error) {
	var times []time.Time
	err := d.Bun.NewSelect().
		Model((*models.CheckInRecord)(nil)).
		Column("check_in_time").
		Where("user_id = ?", userID).
		Where("check_in_time >= ?", from).
		Where("check_in_time <= ?", to).
		Order("check_in_time").
		Scan(ctx, &times)
	if err != nil {
		return nil, err
	}
	return times, nil
}
