package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/sheetsync/internal/sheets"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      ErrorKind
		retryable bool
	}{
		{"expired credentials", fmt.Errorf("token lookup: %w", sheets.ErrAuthExpired), KindAuthExpired, true},
		{"no access", sheets.ErrPermissionDenied, KindUpstreamRejected, false},
		{"sheets timeout", sheets.ErrTimeout, KindUpstreamTimeout, true},
		{"deadline", context.DeadlineExceeded, KindUpstreamTimeout, true},
		{"not found", &sheets.APIError{StatusCode: 404, Message: "Requested entity was not found."}, KindUpstreamRejected, false},
		{"server error", &sheets.APIError{StatusCode: 503}, KindUpstreamUnavailable, true},
		{"rate limited", &sheets.APIError{StatusCode: 429}, KindUpstreamUnavailable, true},
		{"malformed", &sheets.MalformedResponseError{Payload: []byte("<html>"), Err: errors.New("invalid character")}, KindUpstreamMalformed, false},
		{"unknown", errors.New("boom"), KindInternal, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			assert.Equal(t, tc.want, got.Kind)
			assert.Equal(t, tc.retryable, got.Retryable())
			assert.ErrorIs(t, got, tc.err)
		})
	}
}

func TestClassify_KeepsSyncErrors(t *testing.T) {
	orig := newError(KindPersistence, "disk full")
	wrapped := fmt.Errorf("ingest: %w", orig)

	assert.Same(t, orig, classify(wrapped))
	assert.Equal(t, KindPersistence, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestClassify_MalformedKeepsPayload(t *testing.T) {
	got := classify(&sheets.MalformedResponseError{Payload: []byte("<html>"), Err: errors.New("invalid character")})
	assert.Equal(t, "<html>", got.Raw)
}
