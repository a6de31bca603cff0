package utils

import "time"

// APIResponse is the envelope every check-in API JSON body uses.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func ErrorResponse(message, errMsg string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	}
}

// ErrorResponseWithData is an error that still carries machine-readable
// detail, such as the quota that refused a check-in.
func ErrorResponseWithData(message, errMsg string, data interface{}) APIResponse {
	resp := ErrorResponse(message, errMsg)
	resp.Data = data
	return resp
}
