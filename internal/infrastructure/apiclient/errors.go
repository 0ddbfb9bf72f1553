package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// GenericMessage is shown when the server gave nothing usable
const GenericMessage = "Something went wrong. Please try again."

// ErrSessionExpired matches API errors whose 401/403 ended the session. The
// stored token is already removed when it is returned.
var ErrSessionExpired = errors.New("apiclient: session expired")

// APIError is a non-2xx response from the store API
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	// LoggedOut is set when the response forced a logout
	LoggedOut bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is(err, ErrSessionExpired) see through forced logouts.
// A rejected login keeps its token and does not match.
func (e *APIError) Unwrap() error {
	if e.LoggedOut {
		return ErrSessionExpired
	}
	return nil
}

// IsAuthStatus reports whether code forces a logout
func IsAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// maxTextMessage bounds raw text bodies surfaced to users; longer bodies are
// usually HTML error pages.
const maxTextMessage = 300

// newAPIError builds the error for a failed response. The message is the
// body's "message" (or "error") field when the body is a JSON object, the
// raw body when it is short text, and GenericMessage otherwise.
func newAPIError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Message: messageFromBody(body), Body: body}
}

func messageFromBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return GenericMessage
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			for _, k := range []string{"message", "error"} {
				if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
					return s
				}
			}
		}
		return GenericMessage
	}

	// A bare JSON string
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil && s != "" {
			return s
		}
	}

	if strings.HasPrefix(trimmed, "<") || !utf8.ValidString(trimmed) || len(trimmed) > maxTextMessage {
		return GenericMessage
	}
	return trimmed
}

// MessageOf returns the user-facing message for an error returned by the
// client: the server's message for API errors, fallback for anything else.
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusOf returns the HTTP status of an API error, or 0
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
