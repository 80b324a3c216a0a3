package contentful

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/toothbrush/epi-contentful-sync/internal/httpx"
)

// ErrNotFound is returned (wrapped) when the CMA answers 404.  Existence checks rely on it.
var ErrNotFound = errors.New("contentful: not found")

// APIError is any other non-2xx answer from the CMA.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	// sys.id of the error body, e.g. ValidationFailed, VersionMismatch, RateLimitExceeded.
	ErrorID string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("contentful: %s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, e.ErrorID, e.Message)
}

// IsValidation reports whether the CMA rejected the payload (422).
func (e *APIError) IsValidation() bool {
	return e.StatusCode == http.StatusUnprocessableEntity
}

// IsVersionMismatch reports whether the update was based on a stale sys.version (409).
func (e *APIError) IsVersionMismatch() bool {
	return e.StatusCode == http.StatusConflict
}

// IsValidation reports whether err is, or wraps, a 422 from the CMA.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsValidation()
}

type errorBody struct {
	Sys     Sys             `json:"sys"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func toAPIError(statusErr *httpx.StatusError) error {
	if statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, statusErr.Method, statusErr.URL)
	}
	if statusErr.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("contentful: authentication failed, check your management token")
	}

	apiErr := &APIError{
		Method:     statusErr.Method,
		URL:        statusErr.URL,
		StatusCode: statusErr.StatusCode,
		Message:    httpx.Snippet(statusErr.Body, 300),
	}
	var body errorBody
	if err := json.Unmarshal(statusErr.Body, &body); err == nil {
		apiErr.ErrorID = body.Sys.ID
		if body.Message != "" {
			apiErr.Message = body.Message
		}
		apiErr.Details = body.Details
	}
	return apiErr
}
