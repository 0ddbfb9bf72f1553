package dto

import (
	"time"

	"github.com/omkarjtg/ecomm/internal/application/notice"
)

// Response is the envelope of every JSON response. Notices carries the
// toasts queued since the previous response.
type Response struct {
	Success bool            `json:"success"`
	Data    interface{}     `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
	Notices []notice.Notice `json:"notices,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail is the inline error of one form field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response. Domain codes are normalized.
func NewErrorResponse(code, message string) Response {
	return NewErrorResponseWithRequestID(code, message, "")
}

// NewErrorResponseWithRequestID creates an error response tagged with the request ID
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      NormalizeErrorCode(code),
			Message:   message,
			RequestID: requestID,
			Timestamp: time.Now(),
		},
	}
}

// NewValidationErrorResponse creates a validation error response with field details
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}

// WithNotices returns r carrying the given notices
func (r Response) WithNotices(notices []notice.Notice) Response {
	if len(notices) > 0 {
		r.Notices = notices
	}
	return r
}

// Redirect is the body of a navigation response
type Redirect struct {
	Location string `json:"location"`
}

// Pending is returned while the session is still being resolved
type Pending struct {
	State string `json:"state"`
}
