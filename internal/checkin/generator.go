package checkin

import (
	"context"
	"fmt"
	"time"

	"gym-checkin/internal/checkin/qr"
	"gym-checkin/internal/models"
	"gym-checkin/internal/utils"

	"github.com/google/uuid"
)

// GenerateCode issues a fresh pending code for the member at the venue and
// supersedes any code the member still holds there.
func (s *CheckInService) GenerateCode(ctx context.Context, userID, venueID string) (*models.CheckInCode, error) {
	now := s.now()

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

	ttl := s.codeTTL()
	value, err := s.allocateCode(ctx, now, ttl)
	if err != nil {
		return nil, err
	}

	payload, err := qr.EncodePayload(qr.Payload{Code: value, VenueID: venueID})
	if err != nil {
		s.releaseReservation(ctx, value)
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}

	code := &models.CheckInCode{
		ID:        uuid.New().String(),
		Code:      value,
		UserID:    userID,
		VenueID:   venueID,
		Status:    models.CodeStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		QRPayload: payload,
	}

	superseded, err := s.Store.ReplaceOpenCode(ctx, code)
	if err != nil {
		s.releaseReservation(ctx, value)
		return nil, fmt.Errorf("store check-in code: %w", err)
	}

	s.log().LogCode("GENERATED", code.ID, fmt.Sprintf("user %s venue %s expires %s", userID, venueID, code.ExpiresAt.Format(time.RFC3339)))

	for _, old := range superseded {
		s.log().LogCode("SUPERSEDED", old.ID, "replaced by "+code.ID)
		s.publishStatus(ctx, models.StatusEvent{
			CodeID: old.ID,
			UserID: old.UserID,
			Status: models.StatusEventError,
			Detail: "superseded",
			At:     now,
		})
	}

	s.publishStatus(ctx, models.StatusEvent{
		CodeID: code.ID,
		UserID: userID,
		Status: models.StatusEventPending,
		At:     now,
	})

	if s.Events != nil {
		err := s.Events.PublishCodeGenerated(ctx, models.CodeGeneratedEvent{
			CodeID:    code.ID,
			UserID:    userID,
			VenueID:   venueID,
			ExpiresAt: code.ExpiresAt,
		})
		if err != nil {
			s.log().Warn("KAFKA", "code_generated publish failed: "+err.Error())
		}
	}

	return code, nil
}

// allocateCode draws values until one is free both in the store and in the
// reservation set. A reservation outage degrades to the store check alone.
func (s *CheckInService) allocateCode(ctx context.Context, now time.Time, ttl time.Duration) (string, error) {
	attempts := s.MaxCodeAttempts
	if attempts <= 0 {
		attempts = 10
	}

	for i := 0; i < attempts; i++ {
		value, err := s.drawCode()
		if err != nil {
			return "", fmt.Errorf("draw code: %w", err)
		}

		inUse, err := s.Store.CodeInUse(ctx, value, now)
		if err != nil {
			return "", fmt.Errorf("check code collision: %w", err)
		}
		if inUse {
			continue
		}

		if s.Reserver == nil {
			return value, nil
		}
		ok, err := s.Reserver.Reserve(ctx, value, ttl)
		if err != nil {
			s.log().Warn("REDIS", "code reservation unavailable, relying on store check: "+err.Error())
			return value, nil
		}
		if ok {
			return value, nil
		}
	}

	s.log().Error("CODE", fmt.Sprintf("no free code after %d attempts", attempts))
	return "", ErrCodeSpaceExhausted
}

func (s *CheckInService) drawCode() (string, error) {
	if s.RandomCode != nil {
		return s.RandomCode()
	}
	return utils.GenerateAccessCode()
}
