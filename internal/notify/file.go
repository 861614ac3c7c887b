package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/format"
)

// FileEntry is one line written by File
type FileEntry struct {
	Timestamp time.Time `json:"ts"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
}

// File appends summaries to a JSONL file instead of sending them, for
// headless runs and tests.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a file notifier writing to path
func NewFile(path string) *File {
	return &File{path: path}
}

// HandleSession appends r's summary
func (f *File) HandleSession(_ context.Context, r focus.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	return json.NewEncoder(out).Encode(FileEntry{
		Timestamp: r.EndTime,
		SessionID: r.ID,
		Message:   format.SessionMessage(r),
	})
}
