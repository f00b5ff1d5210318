package sheets

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates the upstream did not answer in time or could not be reached.
var ErrTimeout = errors.New("google sheets request timed out")

// ErrAuthExpired indicates the credentials were rejected and must be renewed.
var ErrAuthExpired = errors.New("google credentials expired or revoked")

// ErrPermissionDenied indicates valid credentials without access to the spreadsheet.
var ErrPermissionDenied = errors.New("no permission to read spreadsheet")

// ErrUnsupportedSource indicates the reference is not a Google spreadsheet.
var ErrUnsupportedSource = errors.New("source is not a google spreadsheet")

// APIError is a non-2xx answer from the Sheets API. It unwraps to the
// sentinel matching its cause when there is one.
type APIError struct {
	StatusCode int
	Status     string // e.g. "PERMISSION_DENIED"
	Message    string
	cause      error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("google sheets API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("google sheets API error: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// Retryable reports whether the request may succeed if repeated unchanged.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// MalformedResponseError carries the raw payload of a body that could not be decoded.
type MalformedResponseError struct {
	Payload []byte
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed google sheets response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
