package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoChoices is returned when a 200 response carries no choices array.
// It is terminal: retrying a malformed success will not help.
var ErrNoChoices = errors.New("llm: response has no choices")

// APIError is a non-success HTTP response from the provider.
// Status 429 is retryable; everything else is terminal for that call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: provider returned %d: %s", e.StatusCode, e.Message)
}

// IsRateLimit reports whether err is a 429 from the provider.
func IsRateLimit(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsTerminal reports whether err is a provider error that retrying cannot fix:
// a non-429 HTTP error status or a success response with no choices.
func IsTerminal(err error) bool {
	if errors.Is(err, ErrNoChoices) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}
