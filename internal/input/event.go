// Package input decodes the daemon's JSON-lines event stream (camera frames,
// foreground window changes and session controls) and feeds it to a session.
package input

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vthunder/focuspet/internal/landmarks"
)

// Event types
const (
	TypeFrame  = "frame"
	TypeWindow = "window"
	TypeStart  = "start"
	TypeStop   = "stop"
	TypePause  = "pause"
	TypeResume = "resume"
)

// maxLine bounds one JSON line; a full mesh is ~40KB
const maxLine = 4 << 20

// Frame size assumed when a frame event omits it
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Owner is the application owning the foreground window
type Owner struct {
	Name      string `json:"name"`
	ProcessID int32  `json:"processId,omitempty"`
}

// Event is one line of the input stream
type Event struct {
	Type string `json:"type"`
	TS   int64  `json:"ts,omitempty"` // unix milliseconds

	// frame
	Width         float64             `json:"width,omitempty"`
	Height        float64             `json:"height,omitempty"`
	FaceLandmarks [][]landmarks.Point `json:"faceLandmarks,omitempty"`

	// window
	Owner *Owner `json:"owner,omitempty"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// Time returns the event timestamp, or fallback if none was sent
func (e Event) Time(fallback time.Time) time.Time {
	if e.TS <= 0 {
		return fallback
	}
	return time.UnixMilli(e.TS)
}

// Sample extracts the gaze sample of the first detected face. ok is false
// when no usable face was found, which the caller treats as absence.
func (e Event) Sample() (landmarks.GazeSample, bool) {
	if len(e.FaceLandmarks) == 0 {
		return landmarks.GazeSample{}, false
	}
	face, ok := landmarks.FromMesh(e.FaceLandmarks[0])
	if !ok {
		return landmarks.GazeSample{}, false
	}
	w, h := e.Width, e.Height
	if w <= 0 || h <= 0 {
		w, h = DefaultWidth, DefaultHeight
	}
	return landmarks.Analyze(face, w, h), true
}

// ErrMalformed wraps lines that are not valid events
var ErrMalformed = errors.New("malformed event")

// Decoder reads events from a JSON-lines stream
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

// NewDecoder creates a decoder over r
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	return &Decoder{sc: sc}
}

// Next returns the next event. Blank lines are skipped. A malformed line
// yields an error wrapping ErrMalformed; decoding may continue after it.
// io.EOF is returned at end of input.
func (d *Decoder) Next() (Event, error) {
	for d.sc.Scan() {
		d.line++
		line := strings.TrimSpace(d.sc.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return Event{}, fmt.Errorf("line %d: %w: %v", d.line, ErrMalformed, err)
		}
		if ev.Type == "" {
			return Event{}, fmt.Errorf("line %d: %w: missing type", d.line, ErrMalformed)
		}
		return ev, nil
	}
	if err := d.sc.Err(); err != nil {
		return Event{}, fmt.Errorf("read events: %w", err)
	}
	return Event{}, io.EOF
}
