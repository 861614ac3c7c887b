package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/focuspet/internal/filter"
	"github.com/vthunder/focuspet/internal/lists"
	"github.com/vthunder/focuspet/internal/store"
)

type tools struct {
	store     *store.Store
	listsFile string
	now       func() time.Time
}

func (t *tools) register(s *server.MCPServer) {
	s.AddTool(focusStatsTool(), t.handleFocusStats)
	s.AddTool(recentSessionsTool(), t.handleRecentSessions)
	s.AddTool(compileRulesTool(), t.handleCompileRules)
	s.AddTool(checkNavigationTool(), t.handleCheckNavigation)
}

func (t *tools) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func focusStatsTool() mcp.Tool {
	return mcp.NewTool("focus_stats",
		mcp.WithDescription("Average focus score, session count, current daily streak and per-app totals across all stored sessions."),
	)
}

func (t *tools) handleFocusStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := t.store.Stats(ctx, t.clock())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute stats: %v", err)), nil
	}
	totals, err := t.store.AppTotals(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load app totals: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"sessions":     summary.Sessions,
		"averageScore": summary.AverageScore,
		"streakDays":   summary.StreakDays,
		"appTotalsMs":  totals,
	})
}

func recentSessionsTool() mcp.Tool {
	return mcp.NewTool("recent_sessions",
		mcp.WithDescription("Most recent focus sessions, newest first, with looking/away time, score and app usage."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of sessions. Default: 5"),
		),
	)
}

func (t *tools) handleRecentSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	limit := 5
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	records, err := t.store.Recent(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load sessions: %v", err)), nil
	}
	return jsonResult(records)
}

func listArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithArray("allowlist",
			mcp.Description("Allow-list patterns. Default: the configured lists file"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("blacklist",
			mcp.Description("Block-list patterns. Default: the configured lists file"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	}
}

func compileRulesTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Compile allow/block patterns into declarative network rules (full-replace update) and report skipped patterns."),
	}, listArgs()...)
	return mcp.NewTool("compile_rules", opts...)
}

func (t *tools) handleCompileRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f, err := t.lists(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	batch := filter.Compile(f.Allowlist, f.Blacklist)
	u := batch.Update(nil)
	return jsonResult(map[string]any{
		"removeRuleIds": u.RemoveRuleIDs,
		"addRules":      batch.Rules,
		"skipped":       batch.Skipped,
	})
}

func checkNavigationTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Decide whether navigating to a URL would be soft-blocked during a focus session."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The navigation URL"),
		),
		mcp.WithBoolean("session_on",
			mcp.Description("Whether a session is running. Default: the lists file's session_on, or true when lists are given"),
		),
	}, listArgs()...)
	return mcp.NewTool("check_navigation", opts...)
}

func (t *tools) handleCheckNavigation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return mcp.NewToolResultError("url is required"), nil
	}
	f, err := t.lists(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sessionOn := f.SessionOn
	if on, ok := args["session_on"].(bool); ok {
		sessionOn = on
	}
	return jsonResult(filter.Decide(t.clock(), rawURL, f.Lists(), sessionOn, nil))
}

// lists takes patterns from the request, or the lists file when none given
func (t *tools) lists(req mcp.CallToolRequest) (lists.File, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	allow := stringSlice(args["allowlist"])
	block := stringSlice(args["blacklist"])
	if len(allow) > 0 || len(block) > 0 {
		return lists.File{SessionOn: true, Allowlist: allow, Blacklist: block}, nil
	}
	return lists.LoadFile(t.listsFile)
}

func stringSlice(v any) []string {
	items, _ := v.([]any)
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
