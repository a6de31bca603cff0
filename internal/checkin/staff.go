package checkin

import (
	"context"
	"fmt"
	"strings"

	"gym-checkin/internal/checkin/qr"
	"gym-checkin/internal/models"
	"gym-checkin/internal/utils"
)

// ValidateManualCode handles a code typed in by venue staff.
func (s *CheckInService) ValidateManualCode(ctx context.Context, venueID, code string) (*models.CheckInRecord, error) {
	return s.validateByValue(ctx, venueID, code, models.ValidationManualCode)
}

// ValidateQRPayload handles a scanned member QR code.
func (s *CheckInService) ValidateQRPayload(ctx context.Context, venueID, payload string) (*models.CheckInRecord, error) {
	p, err := qr.DecodePayload(payload)
	if err != nil {
		return nil, ErrInvalidQRPayload
	}
	if p.VenueID != venueID {
		return nil, ErrVenueMismatch
	}
	return s.validateByValue(ctx, venueID, p.Code, models.ValidationQRCode)
}

// ValidateAccessToken handles a mobile access token presented at the venue.
func (s *CheckInService) ValidateAccessToken(ctx context.Context, venueID, token string) (*models.CheckInRecord, error) {
	if s.Tokens == nil {
		return nil, ErrInvalidAccessToken
	}
	codeID, tokenVenue, err := s.Tokens.Verify(token)
	if err != nil {
		s.log().LogSecurity("ACCESS_TOKEN", "rejected token at venue "+venueID+": "+err.Error())
		return nil, ErrInvalidAccessToken
	}
	if tokenVenue != venueID {
		return nil, ErrVenueMismatch
	}

	code, err := s.Store.GetCode(ctx, codeID)
	if err != nil {
		return nil, fmt.Errorf("lookup code: %w", err)
	}
	if code == nil {
		return nil, ErrCodeExpiredOrInvalid
	}
	if code.VenueID != venueID {
		return nil, ErrVenueMismatch
	}
	return s.activateAndRegister(ctx, code, models.ValidationToken)
}

// RejectCode records a staff refusal on an open code.
func (s *CheckInService) RejectCode(ctx context.Context, venueID, codeID, reason string) error {
	code, err := s.Store.GetCode(ctx, codeID)
	if err != nil {
		return fmt.Errorf("lookup code: %w", err)
	}
	if code == nil {
		return ErrCodeExpiredOrInvalid
	}
	if code.VenueID != venueID {
		return ErrVenueMismatch
	}

	ok, err := s.Store.MarkCodeError(ctx, code.ID, s.now())
	if err != nil {
		return fmt.Errorf("reject code: %w", err)
	}
	if !ok {
		return ErrCodeExpiredOrInvalid
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "rejected by venue staff"
	}
	s.log().LogCode("REJECTED", code.ID, reason)
	s.releaseReservation(ctx, code.Code)
	s.publishRejection(ctx, code, reason)
	return nil
}

func (s *CheckInService) validateByValue(ctx context.Context, venueID, value string, method models.ValidationMethod) (*models.CheckInRecord, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if !utils.IsAccessCode(value) {
		return nil, ErrCodeExpiredOrInvalid
	}

	code, err := s.Store.FindOpenCode(ctx, venueID, value, s.now())
	if err != nil {
		return nil, fmt.Errorf("lookup code: %w", err)
	}
	if code == nil {
		return nil, ErrCodeExpiredOrInvalid
	}
	return s.activateAndRegister(ctx, code, method)
}

// activateAndRegister marks the code as resolved by staff, then consumes it.
// A code already active stays active; RegisterCheckIn rechecks expiry.
func (s *CheckInService) activateAndRegister(ctx context.Context, code *models.CheckInCode, method models.ValidationMethod) (*models.CheckInRecord, error) {
	if code.Status == models.CodeStatusPending {
		if _, err := s.Store.MarkCodeActive(ctx, code.ID, s.now()); err != nil {
			return nil, fmt.Errorf("activate code: %w", err)
		}
	}
	return s.RegisterCheckIn(ctx, code.ID, method)
}
