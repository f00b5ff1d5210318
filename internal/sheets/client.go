// Package sheets talks to the Google Sheets REST API: tab discovery and
// range fetches for a resolved spreadsheet reference.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/sheetsync/internal/entities"
)

const (
	defaultBaseURL = "https://sheets.googleapis.com"

	defaultTimeout     = 5 * time.Second
	maxRetries         = 3
	initialRetryDelay  = 200 * time.Millisecond
	maxRetryDelay      = 2 * time.Second
	retryBackoffFactor = 2

	maxPayloadSnippet = 4096
)

// Credentials authenticate requests on behalf of an actor.
type Credentials struct {
	AccessToken string
	TokenType   string
}

func (c Credentials) header() string {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + c.AccessToken
}

// Client calls the Sheets API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

type Option func(*Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every single call, retries included. Zero disables the
// limit so only the caller's context applies.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a Sheets API client
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout is the per-call limit applied on top of the caller's context.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

type spreadsheetResponse struct {
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
			Index   int    `json:"index"`
		} `json:"properties"`
	} `json:"sheets"`
}

type valueRangeResponse struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// DiscoverTabs lists the worksheets of a spreadsheet in their display order.
func (c *Client) DiscoverTabs(ctx context.Context, ref entities.SourceReference, creds Credentials) ([]entities.SheetTab, error) {
	if ref.Kind != entities.SourceKindGoogleSheets {
		return nil, ErrUnsupportedSource
	}

	u := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=%s",
		c.baseURL, url.PathEscape(ref.ID), url.QueryEscape("sheets.properties(sheetId,title,index)"))

	body, err := c.get(ctx, u, creds)
	if err != nil {
		return nil, err
	}

	var resp spreadsheetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{Payload: snippet(body), Err: err}
	}
	if len(resp.Sheets) == 0 {
		return nil, &MalformedResponseError{Payload: snippet(body), Err: errors.New("response lists no sheets")}
	}

	tabs := make([]entities.SheetTab, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		gid := strconv.FormatInt(s.Properties.SheetID, 10)
		tabs = append(tabs, entities.SheetTab{
			Name:  s.Properties.Title,
			GID:   gid,
			URL:   TabURL(ref.ID, gid),
			Index: s.Properties.Index,
		})
	}
	sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].Index < tabs[j].Index })

	return tabs, nil
}

// FetchRange reads rng (A1 notation, e.g. "A1:ZZ") of tab. The first row is
// treated as the header; every following non-empty row becomes a RawRow.
func (c *Client) FetchRange(ctx context.Context, ref entities.SourceReference, tab, rng string, creds Credentials) ([]entities.RawRow, error) {
	if ref.Kind != entities.SourceKindGoogleSheets {
		return nil, ErrUnsupportedSource
	}

	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?majorDimension=ROWS",
		c.baseURL, url.PathEscape(ref.ID), url.PathEscape(A1Range(tab, rng)))

	body, err := c.get(ctx, u, creds)
	if err != nil {
		return nil, err
	}

	var resp valueRangeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{Payload: snippet(body), Err: err}
	}

	return rowsFromValues(resp.Values), nil
}

// TabURL returns the browser URL of one tab.
func TabURL(spreadsheetID, gid string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%s", spreadsheetID, gid)
}

// A1Range qualifies rng with a quoted tab name.
func A1Range(tab, rng string) string {
	quoted := "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	if rng == "" {
		return quoted
	}
	return quoted + "!" + rng
}

func (c *Client) get(ctx context.Context, u string, creds Credentials) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v (last error: %v)", ErrTimeout, ctx.Err(), lastErr)
			case <-time.After(calculateRetryDelay(attempt)):
			}
		}

		body, err := c.doRequest(ctx, u, creds)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, u string, creds Credentials) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", creds.header())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: reading body: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	return nil, classifyStatus(resp.StatusCode, body)
}

func classifyStatus(code int, body []byte) error {
	apiErr := &APIError{StatusCode: code}

	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) == nil {
		apiErr.Status = parsed.Error.Status
		apiErr.Message = parsed.Error.Message
	}

	switch code {
	case http.StatusUnauthorized:
		apiErr.cause = ErrAuthExpired
	case http.StatusForbidden:
		// Missing OAuth scopes are fixed by re-authenticating, not by a new grant
		if apiErr.Status == "UNAUTHENTICATED" || strings.Contains(strings.ToLower(apiErr.Message), "insufficient authentication scopes") {
			apiErr.cause = ErrAuthExpired
		} else {
			apiErr.cause = ErrPermissionDenied
		}
	}
	return apiErr
}

func rowsFromValues(values [][]any) []entities.RawRow {
	if len(values) == 0 {
		return nil
	}

	header := make([]string, len(values[0]))
	for i, cell := range values[0] {
		header[i] = strings.TrimSpace(cellString(cell))
	}

	rows := make([]entities.RawRow, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := make(entities.RawRow, len(header))
		empty := true
		for i, name := range header {
			if name == "" {
				continue
			}
			var v string
			if i < len(raw) {
				v = strings.TrimSpace(cellString(raw[i]))
			}
			if v != "" {
				empty = false
			}
			row[name] = v
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func snippet(body []byte) []byte {
	if len(body) <= maxPayloadSnippet {
		return body
	}
	return body[:maxPayloadSnippet]
}

func calculateRetryDelay(attempt int) time.Duration {
	delay := initialRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(retryBackoffFactor)
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func isRetryableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	// Refused or dropped connections; a spent deadline ends the loop on its own
	return errors.Is(err, ErrTimeout)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
