package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/lists"
	"github.com/vthunder/focuspet/internal/store"
)

var now = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

func newTools(t *testing.T) *tools {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "focus.db"), store.DriverPureGo)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &tools{
		store:     db,
		listsFile: filepath.Join(dir, "lists.yaml"),
		now:       func() time.Time { return now },
	}
}

func request(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	if err := json.Unmarshal([]byte(text.Text), v); err != nil {
		t.Fatalf("bad json: %v\n%s", err, text.Text)
	}
}

func seed(t *testing.T, tl *tools, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		start := now.Add(-time.Duration(i+1) * time.Hour)
		r := focus.Record{
			ID:         focus.NewRecordID(),
			StartTime:  start,
			EndTime:    start.Add(10 * time.Minute),
			LookingMs:  480_000,
			AwayMs:     120_000,
			Activity:   map[string]int64{"Code": 600_000},
			FocusScore: 80,
		}
		if err := tl.store.HandleSession(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFocusStats(t *testing.T) {
	tl := newTools(t)
	seed(t, tl, 3)

	res, err := tl.handleFocusStats(context.Background(), request(nil))
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Sessions     int              `json:"sessions"`
		AverageScore int              `json:"averageScore"`
		StreakDays   int              `json:"streakDays"`
		AppTotals    map[string]int64 `json:"appTotalsMs"`
	}
	resultJSON(t, res, &got)
	if got.Sessions != 3 || got.AverageScore != 80 || got.StreakDays != 1 {
		t.Errorf("stats: %+v", got)
	}
	if got.AppTotals["Code"] != 1_800_000 {
		t.Errorf("Code total = %d", got.AppTotals["Code"])
	}
}

func TestRecentSessions(t *testing.T) {
	tl := newTools(t)
	seed(t, tl, 7)

	res, _ := tl.handleRecentSessions(context.Background(), request(nil))
	var records []focus.Record
	resultJSON(t, res, &records)
	if len(records) != 5 {
		t.Errorf("default limit: %d", len(records))
	}

	res, _ = tl.handleRecentSessions(context.Background(), request(map[string]any{"limit": float64(2)}))
	records = nil
	resultJSON(t, res, &records)
	if len(records) != 2 || !records[0].StartTime.After(records[1].StartTime) {
		t.Errorf("limit 2: %+v", records)
	}
}

func TestCompileRules(t *testing.T) {
	tl := newTools(t)
	res, _ := tl.handleCompileRules(context.Background(), request(map[string]any{
		"allowlist": []any{"github.com"},
		"blacklist": []any{"re:/(bad/", "reddit.com"},
	}))
	var got struct {
		AddRules []map[string]any `json:"addRules"`
		Skipped  []map[string]any `json:"skipped"`
	}
	resultJSON(t, res, &got)
	if len(got.AddRules) != 2 || len(got.Skipped) != 1 {
		t.Errorf("compile: %+v", got)
	}
}

func TestCheckNavigation(t *testing.T) {
	tl := newTools(t)
	if err := lists.SaveFile(tl.listsFile, lists.File{SessionOn: true, Allowlist: []string{"github.com"}}); err != nil {
		t.Fatal(err)
	}

	var d struct {
		SoftBlock bool   `json:"softBlock"`
		Reason    string `json:"reason"`
	}
	res, _ := tl.handleCheckNavigation(context.Background(), request(map[string]any{"url": "https://twitter.com/home"}))
	resultJSON(t, res, &d)
	if !d.SoftBlock || d.Reason != "not_allowed" {
		t.Errorf("file lists: %+v", d)
	}

	res, _ = tl.handleCheckNavigation(context.Background(), request(map[string]any{"url": "https://twitter.com/home", "session_on": false}))
	resultJSON(t, res, &d)
	if d.SoftBlock || d.Reason != "session_off" {
		t.Errorf("session off: %+v", d)
	}

	res, _ = tl.handleCheckNavigation(context.Background(), request(nil))
	if !res.IsError {
		t.Error("missing url should be a tool error")
	}
}
