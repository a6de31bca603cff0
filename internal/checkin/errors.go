package checkin

import (
	"errors"
	"fmt"
)

var (
	ErrNoActivePlan         = errors.New("user has no active plan")
	ErrCodeExpiredOrInvalid = errors.New("check-in code is expired or invalid")
	ErrCheckInNotPermitted  = errors.New("check-in not permitted")
	ErrUserNotFound         = errors.New("user not found")
	ErrVenueNotFound        = errors.New("venue not found")
	ErrInvalidQRPayload     = errors.New("invalid QR payload")
	ErrVenueMismatch        = errors.New("code belongs to another venue")
	ErrInvalidAccessToken   = errors.New("invalid access token")
	ErrInvalidMethod        = errors.New("unsupported validation method")
	ErrCodeSpaceExhausted   = errors.New("could not allocate a unique check-in code")
	ErrInvalidRevenueRule   = errors.New("invalid revenue rule")
)

// NotPermittedError carries the quota that blocked a check-in.
type NotPermittedError struct {
	Limit  Limit
	Reason string
}

func (e *NotPermittedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCheckInNotPermitted, e.Reason)
}

func (e *NotPermittedError) Is(target error) bool {
	return target == ErrCheckInNotPermitted
}
