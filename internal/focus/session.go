package focus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vthunder/focuspet/internal/activity"
	"github.com/vthunder/focuspet/internal/attention"
	"github.com/vthunder/focuspet/internal/landmarks"
	"github.com/vthunder/focuspet/internal/logging"
)

var (
	// ErrNotRunning is returned for controls that need an active session
	ErrNotRunning = errors.New("focus: no active session")
	// ErrAlreadyRunning is returned by Start while a session is active
	ErrAlreadyRunning = errors.New("focus: session already running")
	// ErrClosed is returned once Run has exited
	ErrClosed = errors.New("focus: session loop stopped")
)

// Kind identifies an event on the session loop
type Kind int

const (
	KindFrame Kind = iota
	KindWindow
	KindStart
	KindStop
	KindPause
	KindResume
	kindSnapshot
)

// Event is one input to the session loop
type Event struct {
	Kind    Kind
	At      time.Time
	Present bool                 // frames
	Sample  landmarks.GazeSample // frames
	Window  activity.Window      // window changes

	reply chan result
}

type result struct {
	record   Record
	snapshot Snapshot
	err      error
}

// Snapshot is the live view of the current session
type Snapshot struct {
	ID      string                   `json:"id,omitempty"`
	Running bool                     `json:"running"`
	Paused  bool                     `json:"paused"`
	State   string                   `json:"state"`
	Elapsed time.Duration            `json:"elapsed"`
	Looking time.Duration            `json:"looking"`
	Away    time.Duration            `json:"away"`
	Score   int                      `json:"score"`
	Apps    map[string]time.Duration `json:"apps,omitempty"`
}

// Sink receives each finished session record
type Sink interface {
	HandleSession(ctx context.Context, r Record) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, r Record) error

// HandleSession calls f
func (f SinkFunc) HandleSession(ctx context.Context, r Record) error { return f(ctx, r) }

// Config configures a Session
type Config struct {
	UserID     string
	Thresholds attention.Thresholds
	Browsers   []string
	Buffer     int // event channel capacity
}

// Session runs one user's tracking sessions. All state is owned by the Run
// goroutine; other goroutines talk to it only through the event channel.
type Session struct {
	cfg     Config
	events  chan Event
	done    chan struct{}
	machine *attention.Machine
	tracker *activity.Tracker
	log     *activity.Log
	sinks   []Sink

	id        string
	startedAt time.Time
	pausedFor time.Duration
	pausedAt  time.Time
	lastApp   string
}

// NewSession creates a session. log may be nil.
func NewSession(cfg Config, log *activity.Log) *Session {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	s := &Session{
		cfg:     cfg,
		events:  make(chan Event, cfg.Buffer),
		done:    make(chan struct{}),
		machine: attention.New(cfg.Thresholds),
		tracker: activity.NewTracker(cfg.Browsers),
		log:     log,
	}
	s.machine.AddListener(s.onTransition)
	return s
}

// AddSink registers a receiver for finished records. Call before Run.
func (s *Session) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// Run drains events until ctx is cancelled. A session still running at that
// point is stopped and delivered to the sinks.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			if s.tracker.Running() {
				now := time.Now()
				logging.Info("focus", "shutting down, finishing session %s", s.id)
				if r, err := s.stop(now); err == nil {
					// sinks get a fresh context since ctx is already done
					s.deliver(context.Background(), r)
				}
			}
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev Event) {
	var res result
	switch ev.Kind {
	case KindFrame:
		if s.tracker.Running() && !s.tracker.Paused() {
			s.machine.Tick(ev.At, ev.Present, ev.Sample)
		}
	case KindWindow:
		s.window(ev.At, ev.Window)
	case KindStart:
		res.err = s.start(ev.At)
	case KindStop:
		res.record, res.err = s.stop(ev.At)
		if res.err == nil {
			// sinks finish before Stop returns, even if the caller
			// cancels right after
			s.deliver(context.WithoutCancel(ctx), res.record)
		}
	case KindPause:
		res.err = s.pause(ev.At)
	case KindResume:
		res.err = s.resume(ev.At)
	case kindSnapshot:
		res.snapshot = s.snapshot(ev.At)
	}
	if ev.reply != nil {
		ev.reply <- res
	}
}

func (s *Session) start(now time.Time) error {
	if s.tracker.Running() {
		return ErrAlreadyRunning
	}
	s.id = NewRecordID()
	s.startedAt = now
	s.pausedFor = 0
	s.pausedAt = time.Time{}
	s.lastApp = ""
	s.machine.Reset(now)
	s.tracker.Start(now)
	logging.Info("focus", "session %s started", s.id)
	if s.log != nil {
		if err := s.log.LogSessionStart(now, s.id); err != nil {
			logging.Warn("focus", "activity log: %v", err)
		}
	}
	return nil
}

func (s *Session) stop(now time.Time) (Record, error) {
	apps, err := s.tracker.Stop(now)
	if err != nil {
		return Record{}, ErrNotRunning
	}
	d := s.machine.Finish(now)
	r := Record{
		ID:         s.id,
		UserID:     s.cfg.UserID,
		StartTime:  s.startedAt,
		EndTime:    now,
		LookingMs:  d.Looking.Milliseconds(),
		AwayMs:     d.Away.Milliseconds(),
		Activity:   toMillis(apps),
		Sites:      toMillis(s.tracker.Sites(now)),
		FocusScore: Score(d.Looking, d.Away),
	}
	logging.Info("focus", "session %s finished: looking=%dms away=%dms score=%d%%",
		r.ID, r.LookingMs, r.AwayMs, r.FocusScore)
	if s.log != nil {
		if err := s.log.LogSessionStop(now, r.ID, r.FocusScore, d.Looking, d.Away); err != nil {
			logging.Warn("focus", "activity log: %v", err)
		}
	}
	return r, nil
}

func (s *Session) pause(now time.Time) error {
	if !s.tracker.Running() {
		return ErrNotRunning
	}
	if s.tracker.Paused() {
		return nil
	}
	s.tracker.Pause(now)
	s.machine.Pause(now)
	s.pausedAt = now
	logging.Info("focus", "session %s paused", s.id)
	s.logEvent(activity.Entry{Timestamp: now, Type: activity.TypePause, Summary: "session paused", SessionID: s.id})
	return nil
}

func (s *Session) resume(now time.Time) error {
	if !s.tracker.Running() {
		return ErrNotRunning
	}
	if !s.tracker.Paused() {
		return nil
	}
	if now.After(s.pausedAt) {
		s.pausedFor += now.Sub(s.pausedAt)
	}
	s.tracker.Resume(now)
	s.machine.Resume(now)
	logging.Info("focus", "session %s resumed", s.id)
	s.logEvent(activity.Entry{Timestamp: now, Type: activity.TypeResume, Summary: "session resumed", SessionID: s.id})
	return nil
}

func (s *Session) window(now time.Time, w activity.Window) {
	if !s.tracker.Running() || s.tracker.Paused() {
		return
	}
	s.tracker.WindowChanged(now, w)
	if w.App != s.lastApp {
		s.lastApp = w.App
		logging.Debug("focus", "foreground app: %s", w.App)
		if s.log != nil {
			host := ""
			if s.tracker.IsBrowser(w.App) {
				host = activity.Hostname(w.URL)
			}
			if err := s.log.LogAppSwitch(now, s.id, w.App, host); err != nil {
				logging.Warn("focus", "activity log: %v", err)
			}
		}
	}
}

func (s *Session) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		ID:      s.id,
		Running: s.tracker.Running(),
		Paused:  s.tracker.Paused(),
		State:   s.machine.State().String(),
	}
	if !snap.Running {
		return snap
	}
	d := s.machine.Durations(now)
	snap.Looking = d.Looking
	snap.Away = d.Away
	snap.Score = Score(d.Looking, d.Away)
	snap.Apps = s.tracker.Apps(now)

	paused := s.pausedFor
	if snap.Paused && now.After(s.pausedAt) {
		paused += now.Sub(s.pausedAt)
	}
	if elapsed := now.Sub(s.startedAt) - paused; elapsed > 0 {
		snap.Elapsed = elapsed
	}
	return snap
}

func (s *Session) onTransition(tr attention.Transition) {
	if s.log == nil || tr.Reason == attention.ReasonFinish {
		return
	}
	if err := s.log.LogStateChange(tr.At, s.id, tr.From.String(), tr.To.String(), string(tr.Reason)); err != nil {
		logging.Warn("focus", "activity log: %v", err)
	}
}

func (s *Session) logEvent(e activity.Entry) {
	if s.log == nil {
		return
	}
	if err := s.log.Log(e); err != nil {
		logging.Warn("focus", "activity log: %v", err)
	}
}

// deliver hands the record to every sink; failures are logged, never fatal
func (s *Session) deliver(ctx context.Context, r Record) {
	for _, sink := range s.sinks {
		if err := sink.HandleSession(ctx, r); err != nil {
			logging.Warn("focus", "deliver session %s: %v", r.ID, err)
			if s.log != nil {
				s.log.LogError("deliver session", err, map[string]any{"session_id": r.ID})
			}
		}
	}
}

// Send enqueues an event without waiting for it to be processed
func (s *Session) Send(ctx context.Context, ev Event) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call enqueues an event and waits for the loop's reply
func (s *Session) call(ctx context.Context, ev Event) (result, error) {
	ev.reply = make(chan result, 1)
	if err := s.Send(ctx, ev); err != nil {
		return result{}, err
	}
	select {
	case res := <-ev.reply:
		return res, res.err
	case <-s.done:
		return result{}, ErrClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Frame feeds one camera frame. present=false is an absence tick.
func (s *Session) Frame(ctx context.Context, at time.Time, present bool, sample landmarks.GazeSample) error {
	return s.Send(ctx, Event{Kind: KindFrame, At: at, Present: present, Sample: sample})
}

// WindowChanged feeds a foreground window change
func (s *Session) WindowChanged(ctx context.Context, at time.Time, w activity.Window) error {
	return s.Send(ctx, Event{Kind: KindWindow, At: at, Window: w})
}

// Start begins a new session at at
func (s *Session) Start(ctx context.Context, at time.Time) error {
	_, err := s.call(ctx, Event{Kind: KindStart, At: at})
	return err
}

// Stop ends the session and returns its record. Sinks run after the reply.
func (s *Session) Stop(ctx context.Context, at time.Time) (Record, error) {
	res, err := s.call(ctx, Event{Kind: KindStop, At: at})
	if err != nil {
		return Record{}, fmt.Errorf("stop session: %w", err)
	}
	return res.record, nil
}

// Pause freezes attention and app accrual
func (s *Session) Pause(ctx context.Context, at time.Time) error {
	_, err := s.call(ctx, Event{Kind: KindPause, At: at})
	return err
}

// Resume restarts accrual after Pause
func (s *Session) Resume(ctx context.Context, at time.Time) error {
	_, err := s.call(ctx, Event{Kind: KindResume, At: at})
	return err
}

// Snapshot returns live totals as of at
func (s *Session) Snapshot(ctx context.Context, at time.Time) (Snapshot, error) {
	res, err := s.call(ctx, Event{Kind: kindSnapshot, At: at})
	return res.snapshot, err
}
