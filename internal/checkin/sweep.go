package checkin

import (
	"context"
	"fmt"

	"gym-checkin/internal/models"
)

// SweepExpiredCodes persists expiry for open codes whose window has closed and
// tells waiting clients. Consumption never depends on it having run.
func (s *CheckInService) SweepExpiredCodes(ctx context.Context) (int, error) {
	now := s.now()

	expired, err := s.Store.ExpireStaleCodes(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale codes: %w", err)
	}

	for _, code := range expired {
		s.log().LogCode("EXPIRED", code.ID, "window closed at "+code.ExpiresAt.UTC().Format("15:04:05"))
		s.publishStatus(ctx, models.StatusEvent{
			CodeID: code.ID,
			UserID: code.UserID,
			Status: models.StatusEventError,
			Detail: "code expired",
			At:     now,
		})
	}
	return len(expired), nil
}
