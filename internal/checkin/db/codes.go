package db

import (
	"context"
	"errors"
	"time"

	"gym-checkin/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

var errCodeNotConsumable = errors.New("check-in code is no longer consumable")

func (d *DB) GetCode(ctx context.Context, id string) (*models.CheckInCode, error) {
	var code models.CheckInCode
	err := d.Bun.NewSelect().
		Model(&code).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// FindOpenCode resolves a human-entered code at a venue among codes still consumable at now.
func (d *DB) FindOpenCode(ctx context.Context, venueID, code string, now time.Time) (*models.CheckInCode, error) {
	var found models.CheckInCode
	err := d.Bun.NewSelect().
		Model(&found).
		Where("code = ?", code).
		Where("venue_id = ?", venueID).
		Where("status IN (?)", bun.In(models.OpenCodeStatuses)).
		Where("expires_at > ?", now).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// CodeInUse reports whether a non-expired open code already carries this value.
func (d *DB) CodeInUse(ctx context.Context, code string, now time.Time) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.CheckInCode)(nil)).
		Where("code = ?", code).
		Where("status IN (?)", bun.In(models.OpenCodeStatuses)).
		Where("expires_at > ?", now).
		Exists(ctx)
}

// ReplaceOpenCode expires every open code of the same (user, venue) pair and
// stores the new one in a single transaction. It returns the superseded codes.
func (d *DB) ReplaceOpenCode(ctx context.Context, code *models.CheckInCode) ([]models.CheckInCode, error) {
	var superseded []models.CheckInCode

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if d.Bun.Dialect().Name() == dialect.PG {
			// Serialises generations for one member so two racing requests cannot both leave an open code.
			if _, err := tx.NewRaw("SELECT id FROM users WHERE id = ? FOR UPDATE", code.UserID).Exec(ctx); err != nil {
				return err
			}
		}

		err := tx.NewSelect().
			Model(&superseded).
			Where("user_id = ?", code.UserID).
			Where("venue_id = ?", code.VenueID).
			Where("status IN (?)", bun.In(models.OpenCodeStatuses)).
			Scan(ctx)
		if err != nil {
			return err
		}

		if len(superseded) > 0 {
			ids := make([]string, len(superseded))
			for i := range superseded {
				ids[i] = superseded[i].ID
				superseded[i].Status = models.CodeStatusExpired
			}
			_, err = tx.NewUpdate().
				Model((*models.CheckInCode)(nil)).
				Set("status = ?", models.CodeStatusExpired).
				Where("id IN (?)", bun.In(ids)).
				Where("status IN (?)", bun.In(models.OpenCodeStatuses)).
				Exec(ctx)
			if err != nil {
				return err
			}
		}

		_, err = tx.NewInsert().Model(code).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return superseded, nil
}

// MarkCodeActive moves a pending, unexpired code to active. False means nothing changed.
func (d *DB) MarkCodeActive(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.CheckInCode)(nil)).
		Set("status = ?", models.CodeStatusActive).
		Where("id = ?", id).
		Where("status = ?", models.CodeStatusPending).
		Where("expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkCodeError records a staff refusal on an open, unexpired code.
func (d *DB) MarkCodeError(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.CheckInCode)(nil)).
		Set("status = ?", models.CodeStatusError).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(models.OpenCodeStatuses)).
		Where("expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ConsumeCode flips an open, unexpired code to used and writes the check-in and
// its financial record in one transaction. The status guard on the update
// serialises callers for one code: exactly one sees a row change, the others get
// false and nothing is written. Quota windows are recounted inside the same
// transaction under the member's row lock; a full window rolls everything back
// and is reported as *models.QuotaReachedError.
func (d *DB) ConsumeCode(ctx context.Context, codeID string, now time.Time, quotas []models.QuotaWindow, record *models.CheckInRecord, financial *models.FinancialRecord) (bool, error) {
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if d.Bun.Dialect().Name() == dialect.PG {
			// Check-ins for one member commit one at a time, across all their codes.
			if _, err := tx.NewRaw("SELECT id FROM users WHERE id = ? FOR UPDATE", record.UserID).Exec(ctx); err != nil {
				return err
			}
		}

		res, err := tx.NewUpdate().
			Model((*models.CheckInCode)(nil)).
			Set("status = ?", models.CodeStatusUsed).
			Set("used_at = ?", now).
			Where("id = ?", codeID).
			Where("status IN (?)", bun.In(models.OpenCodeStatuses)).
			Where("expires_at > ?", now).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errCodeNotConsumable
		}

		for _, w := range quotas {
			count, err := tx.NewSelect().
				Model((*models.CheckInRecord)(nil)).
				Where("user_id = ?", record.UserID).
				Where("check_in_time >= ?", w.Since).
				Where("check_in_time <= ?", now).
				Count(ctx)
			if err != nil {
				return err
			}
			if count >= w.Max {
				return &models.QuotaReachedError{Window: w, Count: count}
			}
		}

		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(financial).Exec(ctx)
		return err
	})
	if errors.Is(err, errCodeNotConsumable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExpireStaleCodes marks open codes whose window closed at or before now as expired.
func (d *DB) ExpireStaleCodes(ctx context.Context, now time.Time) ([]models.CheckInCode, error) {
	var stale []models.CheckInCode

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&stale).
			Where("status IN (?)", bun.In(models.OpenCodeStatuses)).
			Where("expires_at <= ?", now).
			Scan(ctx)
		if err != nil || len(stale) == 0 {
			return err
		}

		ids := make([]string, len(stale))
		for i := range stale {
			ids[i] = stale[i].ID
			stale[i].Status = models.CodeStatusExpired
		}
		_, err = tx.NewUpdate().
			Model((*models.CheckInCode)(nil)).
			Set("status = ?", models.CodeStatusExpired).
			Where("id IN (?)", bun.In(ids)).
			Where("status IN (?)", bun.In(models.OpenCodeStatuses)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}
