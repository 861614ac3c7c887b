package activity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Type identifies what kind of event this is
type Type string

const (
	TypeSessionStart Type = "session_start" // Session started
	TypeSessionStop  Type = "session_stop"  // Session finished and scored
	TypePause        Type = "pause"         // Session paused
	TypeResume       Type = "resume"        // Session resumed
	TypeStateChange  Type = "state_change"  // Attention state transition
	TypeAppSwitch    Type = "app_switch"    // Foreground application changed
	TypeSoftBlock    Type = "soft_block"    // Navigation sent to the interstitial
	TypeBypass       Type = "bypass"        // User chose to continue past the interstitial
	TypeError        Type = "error"         // Something went wrong
)

// Entry represents a single event log entry
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Type      Type           `json:"type"`
	Summary   string         `json:"summary"`
	SessionID string         `json:"session_id,omitempty"`
	Source    string         `json:"source,omitempty"` // What triggered this
	Data      map[string]any `json:"data,omitempty"`   // Structured details
}

// Log is an append-only JSONL event log
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates an event log at dataDir/activity.jsonl
func NewLog(dataDir string) *Log {
	return &Log{
		path: filepath.Join(dataDir, "activity.jsonl"),
	}
}

// Path returns the log file location
func (l *Log) Path() string { return l.path }

// Log appends an entry to the event log
func (l *Log) Log(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Helper methods for common event types

// LogSessionStart logs the start of a session
func (l *Log) LogSessionStart(at time.Time, sessionID string) error {
	return l.Log(Entry{
		Timestamp: at,
		Type:      TypeSessionStart,
		Summary:   "session started",
		SessionID: sessionID,
	})
}

// LogSessionStop logs a finished session and its score
func (l *Log) LogSessionStop(at time.Time, sessionID string, score int, looking, away time.Duration) error {
	return l.Log(Entry{
		Timestamp: at,
		Type:      TypeSessionStop,
		Summary:   fmt.Sprintf("session finished, focus %d%%", score),
		SessionID: sessionID,
		Data: map[string]any{
			"focus_score": score,
			"looking_ms":  looking.Milliseconds(),
			"away_ms":     away.Milliseconds(),
		},
	})
}

// LogStateChange logs an attention transition
func (l *Log) LogStateChange(at time.Time, sessionID, from, to, reason string) error {
	return l.Log(Entry{
		Timestamp: at,
		Type:      TypeStateChange,
		Summary:   from + " -> " + to,
		SessionID: sessionID,
		Source:    reason,
	})
}

// LogAppSwitch logs a foreground application change
func (l *Log) LogAppSwitch(at time.Time, sessionID, app, host string) error {
	data := map[string]any{"app": app}
	if host != "" {
		data["host"] = host
	}
	return l.Log(Entry{
		Timestamp: at,
		Type:      TypeAppSwitch,
		Summary:   "switched to " + app,
		SessionID: sessionID,
		Data:      data,
	})
}

// LogSoftBlock logs a navigation redirected to the interstitial
func (l *Log) LogSoftBlock(tabID int, rawURL, reason string) error {
	return l.Log(Entry{
		Type:    TypeSoftBlock,
		Summary: "soft-blocked " + rawURL,
		Source:  reason,
		Data: map[string]any{
			"tab_id": tabID,
			"url":    rawURL,
		},
	})
}

// LogBypass logs a granted bypass
func (l *Log) LogBypass(tabID int, rawURL string) error {
	return l.Log(Entry{
		Type:    TypeBypass,
		Summary: "bypass granted",
		Data: map[string]any{
			"tab_id": tabID,
			"url":    rawURL,
		},
	})
}

// LogError logs an error
func (l *Log) LogError(summary string, err error, data map[string]any) error {
	if data == nil {
		data = make(map[string]any)
	}
	data["error"] = err.Error()
	return l.Log(Entry{
		Type:    TypeError,
		Summary: summary,
		Data:    data,
	})
}

// Query methods

// Recent returns the last n entries
func (l *Log) Recent(n int) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	if n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// Today returns entries since local midnight of now
func (l *Log) Today(now time.Time) ([]Entry, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return l.Range(today, now)
}

// Search searches entries by text in summary and data, most recent first
func (l *Log) Search(query string, limit int) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var result []Entry
	for i := len(entries) - 1; i >= 0 && len(result) < limit; i-- {
		e := entries[i]
		if strings.Contains(strings.ToLower(e.Summary), query) {
			result = append(result, e)
			continue
		}
		if e.Data != nil {
			dataJSON, _ := json.Marshal(e.Data)
			if strings.Contains(strings.ToLower(string(dataJSON)), query) {
				result = append(result, e)
			}
		}
	}
	return result, nil
}

// ByType returns entries of a specific type, most recent first
func (l *Log) ByType(t Type, limit int) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	var result []Entry
	for i := len(entries) - 1; i >= 0 && len(result) < limit; i-- {
		if entries[i].Type == t {
			result = append(result, entries[i])
		}
	}
	return result, nil
}

// BySession returns all entries of one session in write order
func (l *Log) BySession(sessionID string) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	var result []Entry
	for _, e := range entries {
		if e.SessionID == sessionID {
			result = append(result, e)
		}
	}
	return result, nil
}

// Range returns entries in a time range (inclusive)
func (l *Log) Range(start, end time.Time) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	var result []Entry
	for _, e := range entries {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			result = append(result, e)
		}
	}
	return result, nil
}

// readAll reads all entries from the log file
func (l *Log) readAll() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
