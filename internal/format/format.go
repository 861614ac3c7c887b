// Package format renders sessions and stats for terminals and chat.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/vthunder/focuspet/internal/activity"
	"github.com/vthunder/focuspet/internal/focus"
)

// Duration renders d compactly: "1h5m", "12m" or "42s". Sub-second and
// negative values render as "0s".
func Duration(d time.Duration) string {
	s := int64(d / time.Second)
	if s < 0 {
		s = 0
	}
	h := s / 3600
	m := (s % 3600) / 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s%60)
}

// Millis is Duration for a millisecond count
func Millis(ms int64) string {
	return Duration(time.Duration(ms) * time.Millisecond)
}

func stripTime(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SessionTitle describes when a session started relative to now:
// "Today, 3:04 PM", "Yesterday, 9:10 AM" or "4 days ago, 8:00 PM".
func SessionTitle(start, now time.Time) string {
	start = start.In(now.Location())
	days := int(stripTime(now).Sub(stripTime(start)).Hours() / 24)
	clock := start.Format("3:04 PM")
	switch days {
	case 0:
		return "Today, " + clock
	case 1:
		return "Yesterday, " + clock
	}
	return fmt.Sprintf("%d days ago, %s", days, clock)
}

// IsTerminal reports whether f is an interactive terminal
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Options control table rendering
type Options struct {
	Header bool
	Color  bool
	Now    time.Time
}

// DefaultOptions styles output for w: color only on a terminal
func DefaultOptions(w io.Writer) Options {
	opts := Options{Header: true, Now: time.Now()}
	if f, ok := w.(*os.File); ok {
		opts.Color = IsTerminal(f)
	}
	return opts
}

// WriteSessions writes records to w as "table", "plain", "json" or "jsonl"
func WriteSessions(w io.Writer, records []focus.Record, format string, opts Options) error {
	switch strings.ToLower(format) {
	case "", "table":
		return writeSessionsTable(w, records, opts)
	case "plain":
		return writeSessionsPlain(w, records, opts)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported format: %s", format)
}

func writeSessionsPlain(w io.Writer, records []focus.Record, opts Options) error {
	if opts.Header {
		if _, err := fmt.Fprintln(w, "start\tid\tduration\tlooking\taway\tscore\ttop_app"); err != nil {
			return err
		}
	}
	for _, r := range records {
		app, _ := r.TopApp()
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.StartTime.Format(time.RFC3339), r.ID, Duration(r.Duration()),
			Duration(r.Looking()), Duration(r.Away()), r.FocusScore, app)
		if err != nil {
			return err
		}
	}
	return nil
}

func newTable(w io.Writer, opts Options) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	if !opts.Color {
		tw.Style().Color = table.ColorOptions{}
		tw.Style().Format.Header = text.FormatUpper
	}
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	return tw
}

func scoreCell(score int, color bool) string {
	s := fmt.Sprintf("%d", score)
	if !color {
		return s
	}
	switch {
	case score >= 80:
		return text.FgGreen.Sprint(s)
	case score >= 50:
		return text.FgYellow.Sprint(s)
	}
	return text.FgRed.Sprint(s)
}

func writeSessionsTable(w io.Writer, records []focus.Record, opts Options) error {
	tw := newTable(w, opts)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignLeft, WidthMax: 30},
	})
	if opts.Header {
		tw.AppendHeader(table.Row{"When", "Duration", "Looking", "Away", "Score", "Top app"})
	}
	for _, r := range records {
		app, _ := r.TopApp()
		if app == "" {
			app = "-"
		}
		tw.AppendRow(table.Row{
			SessionTitle(r.StartTime, opts.Now),
			Duration(r.Duration()),
			Duration(r.Looking()),
			Duration(r.Away()),
			scoreCell(r.FocusScore, opts.Color),
			app,
		})
	}
	if len(records) == 0 {
		tw.AppendRow(table.Row{"(no sessions)", "-", "-", "-", "-", "-"})
	}
	tw.Render()
	return nil
}

// WriteSummary renders aggregate stats as a two-column table
func WriteSummary(w io.Writer, s focus.Summary, opts Options) error {
	tw := newTable(w, opts)
	tw.AppendRow(table.Row{"Sessions", s.Sessions})
	tw.AppendRow(table.Row{"Average score", scoreCell(s.AverageScore, opts.Color)})
	tw.AppendRow(table.Row{"Streak", fmt.Sprintf("%d days", s.StreakDays)})
	tw.Render()
	return nil
}

// WriteUsage renders per-app totals, largest first
func WriteUsage(w io.Writer, title string, totals map[string]int64, opts Options) error {
	tw := newTable(w, opts)
	if opts.Header {
		tw.AppendHeader(table.Row{title, "Time"})
	}
	for _, name := range SortedKeys(totals) {
		tw.AppendRow(table.Row{name, Millis(totals[name])})
	}
	if len(totals) == 0 {
		tw.AppendRow(table.Row{"-", "-"})
	}
	tw.Render()
	return nil
}

// WriteEntries writes activity log entries to w in the given format
func WriteEntries(w io.Writer, entries []activity.Entry, format string, opts Options) error {
	switch strings.ToLower(format) {
	case "", "table":
		tw := newTable(w, opts)
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 3, WidthMax: 50},
		})
		if opts.Header {
			tw.AppendHeader(table.Row{"Time", "Type", "Summary", "Session"})
		}
		for _, e := range entries {
			tw.AppendRow(table.Row{e.Timestamp.Local().Format("Jan 2 15:04:05"), e.Type, e.Summary, shortID(e.SessionID)})
		}
		if len(entries) == 0 {
			tw.AppendRow(table.Row{"(no events)", "-", "-", "-"})
		}
		tw.Render()
		return nil
	case "plain":
		for _, e := range entries {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.Timestamp.Format(time.RFC3339), e.Type, e.Summary, e.SessionID); err != nil {
				return err
			}
		}
		return nil
	case "json":
		if entries == nil {
			entries = []activity.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported format: %s", format)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

// SortedKeys orders m's keys by value descending, then name
func SortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// SessionMessage is a short chat summary of a finished session
func SessionMessage(r focus.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Focus session done: **%d/100** over %s (looking %s, away %s)",
		r.FocusScore, Duration(r.Duration()), Duration(r.Looking()), Duration(r.Away()))
	keys := SortedKeys(r.Activity)
	if len(keys) > 3 {
		keys = keys[:3]
	}
	for _, app := range keys {
		fmt.Fprintf(&b, "\n- %s: %s", app, Millis(r.Activity[app]))
	}
	return b.String()
}
