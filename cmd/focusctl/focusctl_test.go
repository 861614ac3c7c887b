package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vthunder/focuspet/internal/activity"
	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/lists"
)

func executeCommand(args ...string) (stdout, stderr string, err error) {
	root := newRootCmd()
	out, errBuf := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(errBuf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return out.String(), errBuf.String(), err
}

// isolate points all state at a temp dir and returns it
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FOCUS_CONFIG", "")
	t.Setenv("FOCUS_STATE_PATH", dir)
	t.Setenv("FOCUS_DB_DRIVER", "sqlite")
	t.Setenv("FOCUS_DB_PATH", "")
	t.Setenv("FOCUS_LISTS_FILE", "")
	t.Setenv("FOCUS_BACKEND_URL", "")
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_CHANNEL_ID", "")
	return dir
}

func TestRulesCompile(t *testing.T) {
	isolate(t)
	out, _, err := executeCommand("rules", "compile", "--allow", "github.com", "--block", "reddit.com", "--existing", "3,4")
	if err != nil {
		t.Fatal(err)
	}
	var u struct {
		RemoveRuleIDs []int            `json:"removeRuleIds"`
		AddRules      []map[string]any `json:"addRules"`
	}
	if err := json.Unmarshal([]byte(out), &u); err != nil {
		t.Fatalf("bad json %v:\n%s", err, out)
	}
	if len(u.RemoveRuleIDs) != 2 || len(u.AddRules) != 2 {
		t.Errorf("update: %+v", u)
	}
	if u.AddRules[0]["id"].(float64) != 10000 {
		t.Errorf("first id: %v", u.AddRules[0]["id"])
	}
}

func TestRulesCompileReportsSkipped(t *testing.T) {
	isolate(t)
	out, errOut, err := executeCommand("rules", "compile", "--block", "re:/(unclosed/")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut, "skipped") {
		t.Errorf("stderr: %q", errOut)
	}
	if strings.Contains(out, "addRules") {
		t.Errorf("no rules expected:\n%s", out)
	}
}

func TestRulesCheck(t *testing.T) {
	isolate(t)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--allow", "docs.go.dev", "https://news.ycombinator.com/"}, "soft-block (not_allowed)"},
		{[]string{"--allow", "docs.go.dev", "https://docs.go.dev/doc/effective_go"}, "allow (allowed)"},
		{[]string{"--allow", "docs.go.dev", "--block", "youtube.com", "https://youtube.com/"}, "block (hard_block)"},
		{[]string{"--allow", "docs.go.dev", "--session-off", "https://x.com/"}, "allow (session_off)"},
		{[]string{"--allow", "docs.go.dev", "--bypass-age", "30s", "https://x.com/"}, "allow (bypass)"},
		{[]string{"--allow", "docs.go.dev", "--bypass-age", "61s", "https://x.com/"}, "soft-block (not_allowed)"},
	}
	for _, tt := range tests {
		out, _, err := executeCommand(append([]string{"rules", "check"}, tt.args...)...)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if strings.TrimSpace(out) != tt.want {
			t.Errorf("%v: got %q, want %q", tt.args, strings.TrimSpace(out), tt.want)
		}
	}
}

func TestRulesCheckFromFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "lists.yaml")
	if err := lists.SaveFile(path, lists.File{SessionOn: true, Allowlist: []string{"github.com"}}); err != nil {
		t.Fatal(err)
	}
	out, _, err := executeCommand("rules", "check", "-o", "json", "https://gitlab.com/")
	if err != nil {
		t.Fatal(err)
	}
	var d struct {
		SoftBlock bool   `json:"softBlock"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatal(err)
	}
	if !d.SoftBlock || d.Reason != "not_allowed" {
		t.Errorf("decision: %+v", d)
	}
}

// absentStream starts a session, focuses Code and sends faceless frames for
// two seconds without stopping.
func absentStream(t *testing.T, dir string) string {
	t.Helper()
	const base = int64(1_700_000_000_000)
	var b strings.Builder
	fmt.Fprintf(&b, `{"type":"start","ts":%d}`+"\n", base)
	fmt.Fprintf(&b, `{"type":"window","ts":%d,"owner":{"name":"Code","processId":1}}`+"\n", base)
	for ms := int64(100); ms <= 2000; ms += 100 {
		fmt.Fprintf(&b, `{"type":"frame","ts":%d,"width":640,"height":480}`+"\n", base+ms)
	}
	path := filepath.Join(dir, "stream.jsonl")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplay(t *testing.T) {
	dir := isolate(t)
	path := absentStream(t, dir)

	out, errOut, err := executeCommand("replay", "-o", "json", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut, "20 frames, 1 windows, 1 controls, 0 malformed") {
		t.Errorf("stderr: %q", errOut)
	}
	var records []focus.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("bad json %v:\n%s", err, out)
	}
	if len(records) != 1 {
		t.Fatalf("records: %d", len(records))
	}
	r := records[0]
	if r.LookingMs != 0 || r.AwayMs != 1200 || r.FocusScore != 0 {
		t.Errorf("record: looking=%d away=%d score=%d", r.LookingMs, r.AwayMs, r.FocusScore)
	}
	if r.Activity["Code"] != 2000 {
		t.Errorf("Code = %d", r.Activity["Code"])
	}
}

func TestReplaySaveThenList(t *testing.T) {
	dir := isolate(t)
	path := absentStream(t, dir)

	if _, _, err := executeCommand("replay", "--save", path); err != nil {
		t.Fatal(err)
	}

	out, _, err := executeCommand("sessions", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var records []focus.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("bad json %v:\n%s", err, out)
	}
	if len(records) != 1 {
		t.Fatalf("stored sessions: %d", len(records))
	}

	out, _, err = executeCommand("sessions", "show", records[0].ID, "-o", "plain")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, records[0].ID) || !strings.Contains(out, "Code") {
		t.Errorf("show:\n%s", out)
	}

	out, _, err = executeCommand("stats", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var stats struct {
		Summary   focus.Summary    `json:"summary"`
		AppTotals map[string]int64 `json:"appTotals"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Summary.Sessions != 1 || stats.AppTotals["Code"] != 2000 {
		t.Errorf("stats: %+v", stats)
	}

	if _, _, err := executeCommand("sessions", "delete", records[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, _, err := executeCommand("sessions", "show", records[0].ID); err == nil {
		t.Error("deleted session should not be found")
	}
}

func TestSessionsRemoteNeedsBackend(t *testing.T) {
	isolate(t)
	if _, _, err := executeCommand("sessions", "--remote"); err == nil {
		t.Error("expected error without backend")
	}
}

func TestSessionsRemoteByID(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/api/session/abc" {
			http.NotFound(w, req)
			return
		}
		w.Write([]byte(`{"id":"abc","userId":"u1","startTime":"2026-03-01T08:00:00Z","endTime":"2026-03-01T09:00:00Z","durationSession":3000000,"activity":{"Code":2400000,"Slack":600000},"focusScore":83}`))
	}))
	defer srv.Close()
	t.Setenv("FOCUS_BACKEND_URL", srv.URL)

	out, _, err := executeCommand("sessions", "--remote", "abc", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var records []focus.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("bad json %v:\n%s", err, out)
	}
	if len(records) != 1 || records[0].ID != "abc" || records[0].FocusScore != 83 {
		t.Errorf("records = %+v", records)
	}

	out, _, err = executeCommand("sessions", "--remote", "abc", "-o", "plain")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Code") || !strings.Contains(out, "40m") {
		t.Errorf("missing app breakdown:\n%s", out)
	}

	if _, _, err := executeCommand("sessions", "--remote", "nope"); err == nil {
		t.Error("expected error for unknown remote session")
	}
	if _, _, err := executeCommand("sessions", "abc"); err == nil {
		t.Error("an id without --remote should be rejected")
	}
}

func TestActivityLog(t *testing.T) {
	dir := isolate(t)
	log := activity.NewLog(filepath.Join(dir, "system"))
	log.LogSessionStart(time.Now().Add(-time.Minute), "s1")
	log.LogSoftBlock(4, "https://reddit.com/r/golang", "not_allowed")
	log.LogBypass(4, "https://reddit.com/r/golang")
	log.LogSoftBlock(5, "https://news.ycombinator.com/", "not_allowed")

	decode := func(out string) []activity.Entry {
		t.Helper()
		var entries []activity.Entry
		if err := json.Unmarshal([]byte(out), &entries); err != nil {
			t.Fatalf("bad json %v:\n%s", err, out)
		}
		return entries
	}

	out, _, err := executeCommand("activity", "--type", "soft_block", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	entries := decode(out)
	if len(entries) != 2 || entries[0].Data["url"] != "https://news.ycombinator.com/" {
		t.Errorf("soft blocks newest first: %+v", entries)
	}

	out, _, err = executeCommand("activity", "--search", "REDDIT", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if entries := decode(out); len(entries) != 2 || entries[0].Type != activity.TypeBypass {
		t.Errorf("search: %+v", entries)
	}

	out, _, err = executeCommand("activity", "--session", "s1", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if entries := decode(out); len(entries) != 1 || entries[0].Type != activity.TypeSessionStart {
		t.Errorf("by session: %+v", entries)
	}

	out, _, err = executeCommand("activity", "-n", "2", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if entries := decode(out); len(entries) != 2 {
		t.Errorf("recent: %+v", entries)
	}

	if _, _, err := executeCommand("activity", "--type", "bypass", "--today"); err == nil {
		t.Error("filters should be exclusive")
	}
}
