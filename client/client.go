package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/notifykit/notifykit/notification"
	"github.com/notifykit/notifykit/preferences"
)

// Filters narrows a paginated fetch. Zero values mean "no filter".
type Filters struct {
	Category   notification.Category
	Priority   notification.Priority
	Status     notification.Status
	UnreadOnly bool
}

// Page is one page of inbox records together with the server-side total.
type Page struct {
	Records    []notification.Record
	TotalCount int
}

// Client talks to the notification API. Zero value is not usable; use New.
type Client struct {
	baseURL string
	// client is reused across requests for connection pooling
	client  *http.Client
	headers map[string]string
}

// New creates a client for the given API base URL. The default HTTP client
// pools connections and applies a per-request timeout.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidBaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidBaseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type pageResponse struct {
	Results []notification.Record `json:"results"`
	Count   int                   `json:"count"`
}

// FetchPage retrieves one page of records. Safe to call repeatedly; the
// server performs no side effects on reads.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int, f Filters) (Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if f.Category != "" {
		q.Set("category", string(f.Category))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.UnreadOnly {
		q.Set("unread_only", "true")
	}

	var resp pageResponse
	if err := c.do(ctx, http.MethodGet, "/notifications/", q, nil, &resp); err != nil {
		return Page{}, &FetchError{Op: "fetch page", StatusCode: statusOf(err), Err: err}
	}
	return Page{Records: resp.Results, TotalCount: resp.Count}, nil
}

type markReadRequest struct {
	IDs []string `json:"ids,omitempty"`
	All bool     `json:"all,omitempty"`
}

type markReadResponse struct {
	ConfirmedCount int `json:"confirmed_count"`
}

// MarkRead marks the given records read on the server and returns how many
// the server confirmed. Marking an already-read record is a server-side no-op
// that still counts as confirmed.
func (c *Client) MarkRead(ctx context.Context, ids []string) (int, error) {
	var resp markReadResponse
	if err := c.do(ctx, http.MethodPost, "/notifications/mark-read/", nil, markReadRequest{IDs: ids}, &resp); err != nil {
		return 0, &CommandError{Op: "mark read", StatusCode: statusOf(err), Err: err}
	}
	return resp.ConfirmedCount, nil
}

// MarkAllRead marks the entire inbox read.
func (c *Client) MarkAllRead(ctx context.Context) (int, error) {
	var resp markReadResponse
	if err := c.do(ctx, http.MethodPost, "/notifications/mark-read/", nil, markReadRequest{All: true}, &resp); err != nil {
		return 0, &CommandError{Op: "mark all read", StatusCode: statusOf(err), Err: err}
	}
	return resp.ConfirmedCount, nil
}

type unreadResponse struct {
	UnreadCount int `json:"unread_count"`
}

// UnreadCount asks the server for its authoritative unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp unreadResponse
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count/", nil, nil, &resp); err != nil {
		return 0, &FetchError{Op: "unread count", StatusCode: statusOf(err), Err: err}
	}
	return resp.UnreadCount, nil
}

// GetPreferences retrieves the user's preferences singleton.
func (c *Client) GetPreferences(ctx context.Context) (preferences.Preferences, error) {
	var prefs preferences.Preferences
	if err := c.do(ctx, http.MethodGet, "/notifications/preferences/", nil, nil, &prefs); err != nil {
		return preferences.Preferences{}, &FetchError{Op: "get preferences", StatusCode: statusOf(err), Err: err}
	}
	return prefs, nil
}

// SavePreferences applies a partial update and returns the full resolved
// preferences object as the server now sees it.
func (c *Client) SavePreferences(ctx context.Context, u preferences.Update) (preferences.Preferences, error) {
	var prefs preferences.Preferences
	if err := c.do(ctx, http.MethodPatch, "/notifications/preferences/", nil, u, &prefs); err != nil {
		return preferences.Preferences{}, &CommandError{Op: "save preferences", StatusCode: statusOf(err), Err: err}
	}
	return prefs, nil
}

// statusError carries an HTTP status through the error chain.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("%v %d: %s", ErrUnexpectedStatus, e.code, e.body)
	}
	return fmt.Sprintf("%v %d", ErrUnexpectedStatus, e.code)
}

func (e *statusError) Unwrap() error { return ErrUnexpectedStatus }

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// 64KB cap keeps a misbehaving server from exhausting memory.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.ReplaceAll(string(raw), "\n", " ")
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return &statusError{code: resp.StatusCode, body: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
