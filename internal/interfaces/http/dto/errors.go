package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeRemote is used when the store API failed or was unreachable
	ErrCodeRemote = "ERR_REMOTE"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when a signed-in user is required
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks the admin role
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenInvalid is used when a token handed to us cannot be decoded
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeInProgress is used when the same action is already running
	ErrCodeInProgress = "ERR_IN_PROGRESS"
	// ErrCodeConfirmationRequired is used for destructive actions sent without confirm
	ErrCodeConfirmationRequired = "ERR_CONFIRMATION_REQUIRED"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInsufficientStock is used when a cart line exceeds stock
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	// ErrCodeOutOfStock is used when an out of stock product is added
	ErrCodeOutOfStock = "ERR_OUT_OF_STOCK"
	// ErrCodeEmptyCart is used when checking out an empty cart
	ErrCodeEmptyCart = "ERR_EMPTY_CART"
	// ErrCodePaymentNotVerified is used when the gateway rejects a payment signature
	ErrCodePaymentNotVerified = "ERR_PAYMENT_NOT_VERIFIED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,
	ErrCodeRemote:   http.StatusBadGateway,

	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeInProgress:           http.StatusConflict,
	ErrCodeConfirmationRequired: http.StatusPreconditionRequired,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:  http.StatusUnprocessableEntity,
	ErrCodeOutOfStock:         http.StatusUnprocessableEntity,
	ErrCodeEmptyCart:          http.StatusUnprocessableEntity,
	ErrCodePaymentNotVerified: http.StatusPaymentRequired,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the codes served over HTTP
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"INVALID_INPUT":         ErrCodeInvalidInput,
	"INVALID_STATE":         ErrCodeInvalidState,
	"UNAUTHORIZED":          ErrCodeUnauthorized,
	"FORBIDDEN":             ErrCodeForbidden,
	"TOKEN_INVALID":         ErrCodeTokenInvalid,
	"INSUFFICIENT_STOCK":    ErrCodeInsufficientStock,
	"OUT_OF_STOCK":          ErrCodeOutOfStock,
	"EMPTY_CART":            ErrCodeEmptyCart,
	"PAYMENT_NOT_VERIFIED":  ErrCodePaymentNotVerified,
	"IN_PROGRESS":           ErrCodeInProgress,
	"CONFIRMATION_REQUIRED": ErrCodeConfirmationRequired,
	"REMOTE_ERROR":          ErrCodeRemote,
	"VALIDATION_ERROR":      ErrCodeValidation,
	"BAD_REQUEST":           ErrCodeBadRequest,
	"INTERNAL_ERROR":        ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the HTTP format.
// Codes already in that format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
