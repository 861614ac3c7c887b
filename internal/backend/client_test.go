package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vthunder/focuspet/internal/filter"
	"github.com/vthunder/focuspet/internal/focus"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "Bearer test-token")
}

func TestPostSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	r := focus.Record{
		ID:         "local-id",
		UserID:     "u1",
		StartTime:  start,
		EndTime:    start.Add(25*time.Minute + 500*time.Millisecond),
		LookingMs:  1200000,
		AwayMs:     300000,
		Activity:   map[string]int64{"Code": 1500000},
		FocusScore: 80,
	}

	c := newTestServer(t, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost || req.URL.Path != "/api/session" {
			t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
		}
		if req.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("auth header = %q", req.Header.Get("Authorization"))
		}
		var raw map[string]any
		if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		want := map[string]any{
			"userId":          "u1",
			"startTime":       "2026-03-01T08:00:00.000Z",
			"endTime":         "2026-03-01T08:25:00.500Z",
			"durationSession": float64(1200000),
			"focusScore":      float64(80),
		}
		for k, v := range want {
			if raw[k] != v {
				t.Errorf("%s = %v, want %v", k, raw[k], v)
			}
		}
		if len(raw) != 6 {
			t.Errorf("unexpected fields: %v", raw)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "remote-1", "userId": "u1", "focusScore": 80})
	})

	got, err := c.PostSession(context.Background(), r)
	if err != nil {
		t.Fatalf("PostSession: %v", err)
	}
	if got.ID != "remote-1" {
		t.Errorf("id = %q", got.ID)
	}
}

func TestPostSession_Error(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})
	err := c.HandleSession(context.Background(), focus.Record{})
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized || se.Body != "token expired" {
		t.Fatalf("err = %v", err)
	}
}

func TestActiveSession(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		active bool
		lists  filter.Lists
	}{
		{"no session", http.StatusNoContent, "", false, filter.Lists{}},
		{"top level", http.StatusOK, `{"allowlist":["github.com"],"blacklist":["reddit.com"]}`, true,
			filter.Lists{Allow: []string{"github.com"}, Block: []string{"reddit.com"}}},
		{"under activity", http.StatusOK, `{"allowlist":["x.com"],"activity":{"allowlist":["docs.go.dev"],"blacklist":["youtube.com"]}}`, true,
			filter.Lists{Allow: []string{"docs.go.dev"}, Block: []string{"youtube.com"}}},
		{"empty body", http.StatusOK, "", false, filter.Lists{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, req *http.Request) {
				if req.URL.Path != "/api/session/active" {
					t.Errorf("path = %s", req.URL.Path)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			lists, active, err := c.ActiveSession(context.Background())
			if err != nil {
				t.Fatalf("ActiveSession: %v", err)
			}
			if active != tt.active {
				t.Errorf("active = %v", active)
			}
			if len(lists.Allow) != len(tt.lists.Allow) || len(lists.Block) != len(tt.lists.Block) {
				t.Fatalf("lists = %+v, want %+v", lists, tt.lists)
			}
			for i := range lists.Allow {
				if lists.Allow[i] != tt.lists.Allow[i] {
					t.Errorf("allow = %v", lists.Allow)
				}
			}
			for i := range lists.Block {
				if lists.Block[i] != tt.lists.Block[i] {
					t.Errorf("block = %v", lists.Block)
				}
			}
		})
	}
}

func TestActiveSession_ServerError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, _, err := c.ActiveSession(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetSession(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/api/session/s%201", "/api/session/s 1":
			w.Write([]byte(`{"id":"s 1","userId":"u1","startTime":"2026-03-01T08:00:00Z","endTime":"2026-03-01T08:30:00Z","durationSession":1200000,"activity":{"Code":1200000},"focusScore":66}`))
		default:
			http.Error(w, "session not found", http.StatusNotFound)
		}
	})

	rs, err := c.GetSession(context.Background(), "s 1")
	if err != nil {
		t.Fatal(err)
	}
	if rs.ID != "s 1" || rs.FocusScore != 66 || rs.Record().Duration() != 30*time.Minute {
		t.Errorf("session = %+v", rs)
	}

	_, err = c.GetSession(context.Background(), "missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Errorf("err = %v", err)
	}
}

func TestSessionsByUser(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/api/session/user/u1" {
			t.Errorf("path = %s", req.URL.Path)
		}
		w.Write([]byte(`[{"id":"a","userId":"u1","startTime":"2026-03-01T08:00:00.000Z","endTime":"2026-03-01T09:00:00Z","durationSession":60000,"activity":{"Code":1},"focusScore":70}]`))
	})
	sessions, err := c.SessionsByUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %+v", sessions)
	}
	r := sessions[0].Record()
	if r.FocusScore != 70 || r.LookingMs != 60000 || r.Duration() != time.Hour {
		t.Errorf("record = %+v", r)
	}
}

func TestLists(t *testing.T) {
	var saved userLists
	c := newTestServer(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(userLists{WhiteList: []string{"a.com"}, BlackList: []string{"b.com"}})
		case http.MethodPut:
			json.NewDecoder(req.Body).Decode(&saved)
			w.Write([]byte(`"Lists updated"`))
		}
	})
	ctx := context.Background()
	l, err := c.Lists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Allow) != 1 || l.Allow[0] != "a.com" || l.Block[0] != "b.com" {
		t.Errorf("lists = %+v", l)
	}
	if err := c.UpdateLists(ctx, filter.Lists{Allow: []string{"c.com"}}); err != nil {
		t.Fatal(err)
	}
	if len(saved.WhiteList) != 1 || saved.WhiteList[0] != "c.com" {
		t.Errorf("saved = %+v", saved)
	}
}
