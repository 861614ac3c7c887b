package nativehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/vthunder/focuspet/internal/activity"
	"github.com/vthunder/focuspet/internal/filter"
	"github.com/vthunder/focuspet/internal/lists"
	"github.com/vthunder/focuspet/internal/logging"
)

// Message types
const (
	TypeGetFilters      = "GET_FILTERS"
	TypeFilters         = "FILTERS"
	TypeSetFilters      = "SET_FILTERS"
	TypePing            = "PING"
	TypePong            = "PONG"
	TypeGetRules        = "GET_RULES"
	TypeRules           = "RULES"
	TypeCheckNavigation = "CHECK_NAVIGATION"
	TypeNavigation      = "NAVIGATION"
	TypeSetBypass       = "SET_BYPASS"
	TypeTabClosed       = "TAB_CLOSED"
	TypeError           = "ERROR"
)

// InterstitialPage is the extension page soft-blocked tabs are sent to
const InterstitialPage = "interstitial.html"

// FilterState is the payload of FILTERS and SET_FILTERS
type FilterState struct {
	Allowlist []string `json:"allowlist"`
	Blacklist []string `json:"blacklist"`
	SessionOn bool     `json:"sessionOn"`
}

// Request is any message the extension sends
type Request struct {
	Type    string       `json:"type"`
	Payload *FilterState `json:"payload,omitempty"`
	TabID   int          `json:"tabId,omitempty"`
	URL     string       `json:"url,omitempty"`
	// ExistingRuleIDs lets GET_RULES return a full-replace update
	ExistingRuleIDs []int `json:"existingRuleIds,omitempty"`
}

// Response is any message the host sends back
type Response struct {
	Type      string       `json:"type,omitempty"`
	OK        *bool        `json:"ok,omitempty"`
	Payload   *FilterState `json:"payload,omitempty"`
	SoftBlock *bool        `json:"softBlock,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Redirect  string       `json:"redirect,omitempty"`
	URL       *string      `json:"url,omitempty"`
	Error     string       `json:"error,omitempty"`

	// RULES carries removeRuleIds and addRules inline
	*filter.Update
}

// Host answers extension messages from shared list state
type Host struct {
	State    *lists.State
	Bypasses *filter.Bypasses
	Now      func() time.Time
	// Log records soft blocks and bypasses when set
	Log *activity.Log

	mu sync.Mutex // serializes writes
}

// New creates a host over state
func New(state *lists.State) *Host {
	return &Host{State: state, Bypasses: filter.NewBypasses(), Now: time.Now}
}

// Serve reads requests from r and writes responses to w until r ends or ctx
// is cancelled. Undecodable messages get an ERROR response.
func (h *Host) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		data, err := ReadMessage(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var req Request
		var resp *Response
		if err := json.Unmarshal(data, &req); err != nil {
			logging.Warn("nativehost", "bad message: %v", err)
			resp = &Response{Type: TypeError, Error: "invalid json"}
		} else {
			resp = h.Handle(req)
		}
		if resp == nil {
			continue
		}
		if err := h.write(w, resp); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
	}
}

func (h *Host) write(w io.Writer, v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return WriteMessage(w, v)
}

// Handle answers one request. Unknown types yield nil (no reply), as the
// extension ignores silence.
func (h *Host) Handle(req Request) *Response {
	now := h.Now()
	switch req.Type {
	case TypeGetFilters:
		sn := h.State.Snapshot()
		return &Response{Type: TypeFilters, Payload: &FilterState{
			Allowlist: nonNil(sn.Lists.Allow),
			Blacklist: nonNil(sn.Lists.Block),
			SessionOn: sn.SessionOn,
		}}

	case TypeSetFilters:
		if req.Payload == nil {
			return &Response{Type: TypeError, Error: "missing payload"}
		}
		p := req.Payload
		h.State.Set(filter.Lists{Allow: p.Allowlist, Block: p.Blacklist}, p.SessionOn)
		return &Response{OK: boolPtr(true)}

	case TypePing:
		return &Response{Type: TypePong}

	case TypeGetRules:
		u := h.State.Snapshot().Batch().Update(req.ExistingRuleIDs)
		return &Response{Type: TypeRules, Update: &u}

	case TypeCheckNavigation:
		sn := h.State.Snapshot()
		d := h.Bypasses.Check(sn.Matcher, req.TabID, req.URL, sn.SessionOn, now)
		resp := &Response{Type: TypeNavigation, SoftBlock: boolPtr(d.SoftBlock), Reason: d.Reason}
		if d.SoftBlock {
			resp.Redirect = InterstitialURL(req.TabID, req.URL)
			logging.Debug("nativehost", "soft block tab %d: %s", req.TabID, logging.Truncate(req.URL, 80))
			if h.Log != nil {
				if err := h.Log.LogSoftBlock(req.TabID, req.URL, d.Reason); err != nil {
					logging.Warn("nativehost", "activity log: %v", err)
				}
			}
		}
		return resp

	case TypeSetBypass:
		target := h.Bypasses.Grant(req.TabID, now)
		logging.Debug("nativehost", "bypass tab %d for %v", req.TabID, filter.BypassWindow)
		if h.Log != nil {
			if err := h.Log.LogBypass(req.TabID, target); err != nil {
				logging.Warn("nativehost", "activity log: %v", err)
			}
		}
		return &Response{OK: boolPtr(true), URL: &target}

	case TypeTabClosed:
		h.Bypasses.Forget(req.TabID)
		return nil
	}

	logging.Debug("nativehost", "ignoring message type %q", req.Type)
	return nil
}

// InterstitialURL is the extension-relative redirect for a soft block
func InterstitialURL(tabID int, blocked string) string {
	q := url.Values{}
	q.Set("tabId", strconv.Itoa(tabID))
	q.Set("url", blocked)
	return InterstitialPage + "?" + q.Encode()
}

func boolPtr(b bool) *bool { return &b }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
