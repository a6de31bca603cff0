package db

import (
	"context"
	"time"

	"gym-checkin/internal/models"
)

func (d *DB) GetCheckInRecord(ctx context.Context, id string) (*models.CheckInRecord, error) {
	var record models.CheckInRecord
	err := d.Bun.NewSelect().
		Model(&record).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (d *DB) GetCheckInByCode(ctx context.Context, codeID string) (*models.CheckInRecord, error) {
	var record models.CheckInRecord
	err := d.Bun.NewSelect().
		Model(&record).
		Where("check_in_code_id = ?", codeID).
		Limit(1).
		Scan(ctx)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ---------------- FINANCIAL RECORDS ----------------

func (d *DB) GetFinancialRecord(ctx context.Context, id string) (*models.FinancialRecord, error) {
	var record models.FinancialRecord
	err := d.Bun.NewSelect().
		Model(&record).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListPendingFinancialRecords returns the oldest unsettled records first.
func (d *DB) ListPendingFinancialRecords(ctx context.Context, limit int) ([]models.FinancialRecord, error) {
	var records []models.FinancialRecord
	err := d.Bun.NewSelect().
		Model(&records).
		Where("payment_status = ?", models.PaymentStatusPending).
		OrderExpr("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkFinancialRecordPaid only advances records that are still pending.
func (d *DB) MarkFinancialRecordPaid(ctx context.Context, id, reference string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.FinancialRecord)(nil)).
		Set("payment_status = ?", models.PaymentStatusPaid).
		Set("transfer_reference = ?", reference).
		Set("processed_at = ?", now).
		Where("id = ?", id).
		Where("payment_status = ?", models.PaymentStatusPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *DB) MarkFinancialRecordFailed(ctx context.Context, id, reason string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.FinancialRecord)(nil)).
		Set("payment_status = ?", models.PaymentStatusFailed).
		Set("failure_reason = ?", reason).
		Set("processed_at = ?", now).
		Where("id = ?", id).
		Where("payment_status = ?", models.PaymentStatusPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ResetFailedFinancialRecords puts failed records back in the settlement queue
// under a new payout attempt.
func (d *DB) ResetFailedFinancialRecords(ctx context.Context) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.FinancialRecord)(nil)).
		Set("payment_status = ?", models.PaymentStatusPending).
		Set("payout_attempt = payout_attempt + 1").
		Set("failure_reason = NULL").
		Set("processed_at = NULL").
		Where("payment_status = ?", models.PaymentStatusFailed).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
