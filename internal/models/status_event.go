package models

import "time"

type StatusEventType string

const (
	StatusEventPending StatusEventType = "pending"
	StatusEventActive  StatusEventType = "active"
	StatusEventError   StatusEventType = "error"
)

// StatusEvent is pushed to clients waiting on a check-in code.
type StatusEvent struct {
	CodeID    string          `json:"code_id"`
	UserID    string          `json:"user_id"`
	Status    StatusEventType `json:"status"`
	Detail    string          `json:"detail,omitempty"`
	CheckInID string          `json:"check_in_id,omitempty"`
	At        time.Time       `json:"at"`
}

// Terminal events end a per-code subscription.
func (e StatusEvent) Terminal() bool {
	return e.Status == StatusEventActive || e.Status == StatusEventError
}
