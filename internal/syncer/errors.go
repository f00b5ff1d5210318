package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrlokans/sheetsync/internal/sheets"
)

// ErrorKind classifies why a sync did not complete.
type ErrorKind string

const (
	// KindPermissionDenied is returned by the authorization gate before any mutation.
	KindPermissionDenied ErrorKind = "permission_denied"
	// KindMalformedReference means the source reference cannot be used as given.
	KindMalformedReference ErrorKind = "malformed_reference"
	// KindAuthExpired means the actor must reconnect their Google account.
	KindAuthExpired ErrorKind = "auth_expired"
	// KindUpstreamTimeout means the upstream did not answer in time.
	KindUpstreamTimeout ErrorKind = "upstream_timeout"
	// KindUpstreamRejected means the upstream refused the request (revoked access, missing sheet).
	KindUpstreamRejected ErrorKind = "upstream_rejected"
	// KindUpstreamUnavailable means the upstream kept failing with 5xx or 429.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindUpstreamMalformed means the upstream answered with an unreadable body.
	KindUpstreamMalformed ErrorKind = "upstream_malformed"
	// KindRowMapping marks a row that could not be turned into metrics.
	KindRowMapping ErrorKind = "row_mapping_error"
	// KindPersistence means the store could not be written.
	KindPersistence ErrorKind = "persistence_error"
	KindInternal    ErrorKind = "internal"
)

// Error is the typed failure carried by SyncResult.
type Error struct {
	Kind    ErrorKind
	Message string
	// Raw holds the offending input or upstream payload, if any.
	Raw string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later without
// anyone changing grants or input. AuthExpired is retryable once the actor
// has re-authenticated.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindAuthExpired, KindUpstreamTimeout, KindUpstreamUnavailable, KindPersistence:
		return true
	}
	return false
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      ErrorKind `json:"kind"`
		Message   string    `json:"message"`
		Retryable bool      `json:"retryable"`
		Raw       string    `json:"raw,omitempty"`
	}{e.Kind, e.Message, e.Retryable(), e.Raw})
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not a sync error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// classify maps collaborator errors to sync error kinds.
func classify(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	var malformed *sheets.MalformedResponseError
	var apiErr *sheets.APIError

	switch {
	case errors.Is(err, sheets.ErrAuthExpired):
		return &Error{Kind: KindAuthExpired, Message: "Google credentials expired or missing; reconnect the account", Err: err}
	case errors.Is(err, sheets.ErrPermissionDenied):
		return &Error{Kind: KindUpstreamRejected, Message: "Google denied access to the spreadsheet", Err: err}
	case errors.Is(err, sheets.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindUpstreamTimeout, Message: "Google Sheets did not respond in time", Err: err}
	case errors.Is(err, sheets.ErrUnsupportedSource):
		return &Error{Kind: KindMalformedReference, Message: err.Error(), Err: err}
	case errors.As(err, &malformed):
		return &Error{Kind: KindUpstreamMalformed, Message: malformed.Error(), Raw: string(malformed.Payload), Err: err}
	case errors.As(err, &apiErr):
		if apiErr.Retryable() {
			return &Error{Kind: KindUpstreamUnavailable, Message: apiErr.Error(), Err: err}
		}
		return &Error{Kind: KindUpstreamRejected, Message: apiErr.Error(), Err: err}
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}
