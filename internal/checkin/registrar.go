package checkin

import (
	"context"
	"errors"
	"fmt"

	"gym-checkin/internal/models"

	"github.com/google/uuid"
)

// RegisterCheckIn consumes an open code and writes its check-in and financial
// records. Of several concurrent calls for one code, exactly one succeeds.
func (s *CheckInService) RegisterCheckIn(ctx context.Context, codeID string, method models.ValidationMethod) (*models.CheckInRecord, error) {
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}

	now := s.now()

	code, err := s.Store.GetCode(ctx, codeID)
	if err != nil {
		return nil, fmt.Errorf("lookup code: %w", err)
	}
	if code == nil || !code.ConsumableAt(now) {
		return nil, ErrCodeExpiredOrInvalid
	}

	eval, err := s.Evaluate(ctx, code.UserID, code.VenueID, now)
	if errors.Is(err, ErrNoActivePlan) {
		s.publishRefusal(ctx, code, "no active plan")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !eval.CanCheckIn {
		s.log().LogCheckIn("REFUSED", code.ID, eval.Reason)
		s.publishRefusal(ctx, code, eval.Reason)
		return nil, &NotPermittedError{Limit: eval.LimitHit, Reason: eval.Reason}
	}

	record := &models.CheckInRecord{
		ID:               uuid.New().String(),
		UserID:           code.UserID,
		VenueID:          code.VenueID,
		CheckInCodeID:    code.ID,
		CheckInTime:      now,
		ValidationMethod: method,
		TransferAmount:   eval.TransferAmount,
		PlanID:           eval.PlanID,
		SubscriptionID:   eval.SubscriptionID,
		CreatedAt:        now,
	}
	financial := &models.FinancialRecord{
		ID:             uuid.New().String(),
		CheckInID:      record.ID,
		VenueID:        code.VenueID,
		PlanID:         eval.PlanID,
		TransferAmount: eval.TransferAmount,
		PlanAmount:     eval.PlanAmount,
		PaymentStatus:  models.PaymentStatusPending,
		CreatedAt:      now,
	}

	ok, err := s.Store.ConsumeCode(ctx, code.ID, now, eval.Windows, record, financial)
	var reached *models.QuotaReachedError
	if errors.As(err, &reached) {
		reason := reached.Error()
		s.log().LogCheckIn("REFUSED", code.ID, reason+" at commit")
		s.publishRefusal(ctx, code, reason)
		return nil, &NotPermittedError{Limit: Limit(reached.Window.Period), Reason: reason}
	}
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	if !ok {
		return nil, ErrCodeExpiredOrInvalid
	}

	s.log().LogCheckIn("REGISTERED", record.ID, fmt.Sprintf("code %s via %s, venue owed %s", code.ID, method, record.TransferAmount.StringFixed(2)))
	s.releaseReservation(ctx, code.Code)

	s.publishStatus(ctx, models.StatusEvent{
		CodeID:    code.ID,
		UserID:    code.UserID,
		Status:    models.StatusEventActive,
		Detail:    record.ID,
		CheckInID: record.ID,
		At:        now,
	})

	if s.Events != nil {
		err := s.Events.PublishCheckInRegistered(ctx, models.CheckInRegisteredEvent{
			CheckInID:         record.ID,
			FinancialRecordID: financial.ID,
			UserID:            record.UserID,
			VenueID:           record.VenueID,
			PlanID:            record.PlanID,
			ValidationMethod:  method,
			TransferAmount:    record.TransferAmount,
			CheckInTime:       now,
		})
		if err != nil {
			s.log().Warn("KAFKA", "checkin.registered publish failed: "+err.Error())
		}
	}

	return record, nil
}

// publishRefusal tells the waiting client why a check-in was refused. The code
// is still open and may be retried, so the event is not terminal.
func (s *CheckInService) publishRefusal(ctx context.Context, code *models.CheckInCode, reason string) {
	s.publishStatus(ctx, models.StatusEvent{
		CodeID: code.ID,
		UserID: code.UserID,
		Status: models.StatusEventPending,
		Detail: reason,
	})
}

// publishRejection closes the client's wait: the code was refused for good.
func (s *CheckInService) publishRejection(ctx context.Context, code *models.CheckInCode, reason string) {
	s.publishStatus(ctx, models.StatusEvent{
		CodeID: code.ID,
		UserID: code.UserID,
		Status: models.StatusEventError,
		Detail: reason,
	})
}
