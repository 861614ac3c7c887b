// Package backend provides an HTTP client for the focus session backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vthunder/focuspet/internal/filter"
	"github.com/vthunder/focuspet/internal/focus"
)

// ISOFormat is the timestamp layout the backend expects (UTC, milliseconds)
const ISOFormat = "2006-01-02T15:04:05.000Z07:00"

// Client is an HTTP client for the session backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new backend client.
// baseURL should be like "http://localhost:5185".
// token is sent as a Bearer token when non-empty.
func NewClient(baseURL, token string) *Client {
	token = strings.TrimPrefix(token, "Bearer ")
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// --- Types ---

// SessionPayload is the body for POST /api/session
type SessionPayload struct {
	UserID          string           `json:"userId"`
	StartTime       string           `json:"startTime"`
	EndTime         string           `json:"endTime"`
	DurationSession int64            `json:"durationSession"` // looking time, ms
	Activity        map[string]int64 `json:"activity"`
	FocusScore      int              `json:"focusScore"`
}

// RemoteSession is a session as stored by the backend
type RemoteSession struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	StartTime       time.Time        `json:"startTime"`
	EndTime         time.Time        `json:"endTime"`
	DurationSession int64            `json:"durationSession"`
	Activity        map[string]int64 `json:"activity"`
	FocusScore      int              `json:"focusScore"`
}

// Record converts a remote session for local analytics
func (s RemoteSession) Record() focus.Record {
	return focus.Record{
		ID:         s.ID,
		UserID:     s.UserID,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		LookingMs:  s.DurationSession,
		Activity:   s.Activity,
		FocusScore: s.FocusScore,
	}
}

// NewSessionPayload builds the POST body for a finished record
func NewSessionPayload(r focus.Record) SessionPayload {
	activity := r.Activity
	if activity == nil {
		activity = map[string]int64{}
	}
	return SessionPayload{
		UserID:          r.UserID,
		StartTime:       r.StartTime.UTC().Format(ISOFormat),
		EndTime:         r.EndTime.UTC().Format(ISOFormat),
		DurationSession: r.LookingMs,
		Activity:        activity,
		FocusScore:      r.FocusScore,
	}
}

// activeSession is the GET /api/session/active body. Lists may sit at the
// top level or under activity.
type activeSession struct {
	Allowlist []string `json:"allowlist"`
	Blacklist []string `json:"blacklist"`
	Activity  *struct {
		Allowlist []string `json:"allowlist"`
		Blacklist []string `json:"blacklist"`
	} `json:"activity"`
}

// userLists is the /api/users/lists body
type userLists struct {
	WhiteList []string `json:"whiteList"`
	BlackList []string `json:"blackList"`
}

// --- Sessions ---

// PostSession uploads a finished session
func (c *Client) PostSession(ctx context.Context, r focus.Record) (*RemoteSession, error) {
	var out RemoteSession
	if err := c.do(ctx, http.MethodPost, "/api/session", NewSessionPayload(r), &out); err != nil {
		return nil, fmt.Errorf("post session: %w", err)
	}
	return &out, nil
}

// HandleSession posts r, so a Client can be registered as a session sink
func (c *Client) HandleSession(ctx context.Context, r focus.Record) error {
	_, err := c.PostSession(ctx, r)
	return err
}

// GetSession fetches one session by backend id
func (c *Client) GetSession(ctx context.Context, id string) (*RemoteSession, error) {
	var out RemoteSession
	if err := c.do(ctx, http.MethodGet, "/api/session/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &out, nil
}

// SessionsByUser lists all sessions of a user
func (c *Client) SessionsByUser(ctx context.Context, userID string) ([]RemoteSession, error) {
	var out []RemoteSession
	if err := c.do(ctx, http.MethodGet, "/api/session/user/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// ActiveSession reports whether the user has a session running anywhere and
// returns its lists. A 204 means no session.
func (c *Client) ActiveSession(ctx context.Context) (filter.Lists, bool, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/session/active", nil)
	if err != nil {
		return filter.Lists{}, false, fmt.Errorf("active session: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return filter.Lists{}, false, nil
	case resp.StatusCode != http.StatusOK:
		return filter.Lists{}, false, fmt.Errorf("active session: %w", parseError(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return filter.Lists{}, false, fmt.Errorf("active session: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return filter.Lists{}, false, nil
	}
	var as activeSession
	if err := json.Unmarshal(body, &as); err != nil {
		return filter.Lists{}, false, fmt.Errorf("decode active session: %w", err)
	}
	lists := filter.Lists{Allow: as.Allowlist, Block: as.Blacklist}
	if as.Activity != nil {
		if len(as.Activity.Allowlist) > 0 {
			lists.Allow = as.Activity.Allowlist
		}
		if len(as.Activity.Blacklist) > 0 {
			lists.Block = as.Activity.Blacklist
		}
	}
	return lists, true, nil
}

// --- Lists ---

// Lists fetches the user's saved allow and block lists
func (c *Client) Lists(ctx context.Context) (filter.Lists, error) {
	var out userLists
	if err := c.do(ctx, http.MethodGet, "/api/users/lists", nil, &out); err != nil {
		return filter.Lists{}, fmt.Errorf("get lists: %w", err)
	}
	return filter.Lists{Allow: out.WhiteList, Block: out.BlackList}, nil
}

// UpdateLists replaces the user's saved lists
func (c *Client) UpdateLists(ctx context.Context, l filter.Lists) error {
	body := userLists{WhiteList: l.Allow, BlackList: l.Block}
	if err := c.do(ctx, http.MethodPut, "/api/users/lists", body, nil); err != nil {
		return fmt.Errorf("update lists: %w", err)
	}
	return nil
}

// --- HTTP ---

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	// some endpoints answer with a bare string
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend error [%d]: %s", e.Status, e.Body)
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &StatusError{Status: resp.StatusCode, Body: msg}
}
