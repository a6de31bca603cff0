package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gym-checkin/internal/logger"
	"gym-checkin/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrFinancialRecordNotFound = errors.New("financial record not found")
	// ErrPayoutRejected marks payout failures that retrying will not fix.
	ErrPayoutRejected = errors.New("payout rejected")
)

const reasonNoPayoutAccount = "venue has no payout account"

type Store interface {
	GetVenue(ctx context.Context, venueID string) (*models.Venue, error)
	GetFinancialRecord(ctx context.Context, id string) (*models.FinancialRecord, error)
	ListPendingFinancialRecords(ctx context.Context, limit int) ([]models.FinancialRecord, error)
	MarkFinancialRecordPaid(ctx context.Context, id, reference string, now time.Time) (bool, error)
	MarkFinancialRecordFailed(ctx context.Context, id, reason string, now time.Time) (bool, error)
	ResetFailedFinancialRecords(ctx context.Context) (int64, error)
}

type TransferRequest struct {
	FinancialRecordID string
	CheckInID         string
	Destination       string
	Amount            decimal.Decimal
	// Attempt grows each time a failed record is reset for another try.
	Attempt int
}

// IdempotencyKey is stable for one payout attempt of one record.
func (r TransferRequest) IdempotencyKey() string {
	if r.Attempt == 0 {
		return "checkin-settlement-" + r.FinancialRecordID
	}
	return fmt.Sprintf("checkin-settlement-%s-retry-%d", r.FinancialRecordID, r.Attempt)
}

// Payouts moves money to a venue. Implementations must deduplicate on
// TransferRequest.IdempotencyKey.
type Payouts interface {
	Transfer(ctx context.Context, req TransferRequest) (reference string, err error)
}

type EventPublisher interface {
	PublishCheckInSettled(ctx context.Context, event models.CheckInSettledEvent) error
}

type SettlementService struct {
	Store   Store
	Payouts Payouts
	Events  EventPublisher
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewSettlementService(store Store, payouts Payouts, events EventPublisher, log *logger.Logger) *SettlementService {
	if log == nil {
		log = logger.NewWithWriters(nil, nil)
	}
	return &SettlementService{Store: store, Payouts: payouts, Events: events, Logger: log, Now: time.Now}
}

type Summary struct {
	Paid    int
	Failed  int
	Skipped int
	Errors  int
}

// HandleCheckInRegistered settles the financial record of a freshly registered check-in.
func (s *SettlementService) HandleCheckInRegistered(ctx context.Context, event models.CheckInRegisteredEvent) error {
	_, err := s.SettleRecord(ctx, event.FinancialRecordID)
	return err
}

// SettleRecord pays one pending record. Records already paid or failed are
// returned untouched. Transient payout errors leave the record pending.
func (s *SettlementService) SettleRecord(ctx context.Context, financialID string) (*models.FinancialRecord, error) {
	record, err := s.Store.GetFinancialRecord(ctx, financialID)
	if err != nil {
		return nil, fmt.Errorf("lookup financial record: %w", err)
	}
	if record == nil {
		return nil, ErrFinancialRecordNotFound
	}
	if record.PaymentStatus != models.PaymentStatusPending {
		s.Logger.Debug("SETTLEMENT", fmt.Sprintf("Record %s already %s", record.ID, record.PaymentStatus))
		return record, nil
	}

	venue, err := s.Store.GetVenue(ctx, record.VenueID)
	if err != nil {
		return nil, fmt.Errorf("lookup venue: %w", err)
	}
	if venue == nil {
		return s.fail(ctx, record, "venue not found")
	}
	if venue.PayoutAccountID == "" {
		return s.fail(ctx, record, reasonNoPayoutAccount)
	}

	reference := ""
	if record.TransferAmount.IsPositive() {
		reference, err = s.Payouts.Transfer(ctx, TransferRequest{
			FinancialRecordID: record.ID,
			CheckInID:         record.CheckInID,
			Destination:       venue.PayoutAccountID,
			Amount:            record.TransferAmount,
			Attempt:           record.PayoutAttempt,
		})
		if errors.Is(err, ErrPayoutRejected) {
			return s.fail(ctx, record, err.Error())
		}
		if err != nil {
			s.Logger.Error("SETTLEMENT", fmt.Sprintf("Transfer for %s failed, will retry: %v", record.ID, err))
			return nil, fmt.Errorf("transfer: %w", err)
		}
	}

	now := s.Now().UTC()
	ok, err := s.Store.MarkFinancialRecordPaid(ctx, record.ID, reference, now)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if ok {
		record.PaymentStatus = models.PaymentStatusPaid
		record.TransferReference = reference
		record.ProcessedAt = &now
		s.Logger.LogSettlement("PAID", record.ID, fmt.Sprintf("%s to %s (%s)", record.TransferAmount.StringFixed(2), venue.ID, reference))
		s.publish(ctx, record)
	}
	return record, nil
}

func (s *SettlementService) fail(ctx context.Context, record *models.FinancialRecord, reason string) (*models.FinancialRecord, error) {
	now := s.Now().UTC()
	ok, err := s.Store.MarkFinancialRecordFailed(ctx, record.ID, reason, now)
	if err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}
	if ok {
		record.PaymentStatus = models.PaymentStatusFailed
		record.FailureReason = reason
		record.ProcessedAt = &now
		s.Logger.Warn("SETTLEMENT", fmt.Sprintf("Record %s failed: %s", record.ID, reason))
		s.publish(ctx, record)
	}
	return record, nil
}

func (s *SettlementService) publish(ctx context.Context, record *models.FinancialRecord) {
	if s.Events == nil {
		return
	}
	event := models.CheckInSettledEvent{
		FinancialRecordID: record.ID,
		CheckInID:         record.CheckInID,
		VenueID:           record.VenueID,
		PaymentStatus:     record.PaymentStatus,
		TransferAmount:    record.TransferAmount,
		TransferReference: record.TransferReference,
		FailureReason:     record.FailureReason,
	}
	if record.ProcessedAt != nil {
		event.ProcessedAt = *record.ProcessedAt
	}
	if err := s.Events.PublishCheckInSettled(ctx, event); err != nil {
		s.Logger.Warn("KAFKA", "checkin.settled publish failed: "+err.Error())
	}
}

// SettlePending works through up to limit pending records, oldest first.
func (s *SettlementService) SettlePending(ctx context.Context, limit int) (Summary, error) {
	var summary Summary

	records, err := s.Store.ListPendingFinancialRecords(ctx, limit)
	if err != nil {
		return summary, fmt.Errorf("list pending records: %w", err)
	}

	for _, pending := range records {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		record, err := s.SettleRecord(ctx, pending.ID)
		switch {
		case err != nil:
			summary.Errors++
		case record.PaymentStatus == models.PaymentStatusPaid:
			summary.Paid++
		case record.PaymentStatus == models.PaymentStatusFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	s.Logger.LogSettlement("BATCH", fmt.Sprintf("%d records", len(records)),
		fmt.Sprintf("paid=%d failed=%d skipped=%d errors=%d", summary.Paid, summary.Failed, summary.Skipped, summary.Errors))
	return summary, nil
}

// RetryFailed puts failed records back to pending and settles them again.
func (s *SettlementService) RetryFailed(ctx context.Context, limit int) (Summary, error) {
	n, err := s.Store.ResetFailedFinancialRecords(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("reset failed records: %w", err)
	}
	s.Logger.LogSettlement("RETRY", fmt.Sprintf("%d records", n), "reset to pending")
	return s.SettlePending(ctx, limit)
}

// RunPeriodic settles pending records every interval until ctx ends. It backs
// up the event-driven path for records whose event was missed or whose payout
// failed transiently.
func (s *SettlementService) RunPeriodic(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.SettlePending(ctx, limit); err != nil && ctx.Err() == nil {
			s.Logger.Error("SETTLEMENT", fmt.Sprintf("Periodic settlement failed: %v", err))
		}
		select {
		case <-ctx.Done():
			s.Logger.Info("SETTLEMENT", "Periodic settlement stopped")
			return
		case <-ticker.C:
		}
	}
}
