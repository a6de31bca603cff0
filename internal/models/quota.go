package models

import (
	"fmt"
	"time"
)

// QuotaWindow caps a member's check-ins from Since onwards at Max.
type QuotaWindow struct {
	Period string
	Since  time.Time
	Max    int
}

// QuotaReachedError is returned by the store when a window is already full at
// commit time. Nothing from the attempted check-in is written.
type QuotaReachedError struct {
	Window QuotaWindow
	Count  int
}

func (e *QuotaReachedError) Error() string {
	return fmt.Sprintf("%s check-in limit of %d reached", e.Window.Period, e.Window.Max)
}
