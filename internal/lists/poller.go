package lists

import (
	"context"
	"sync"
	"time"

	"github.com/vthunder/focuspet/internal/filter"
	"github.com/vthunder/focuspet/internal/logging"
)

// DefaultPollInterval matches the extension's session poll alarm
const DefaultPollInterval = time.Minute

// ActiveSource reports the user's active session and its lists
type ActiveSource interface {
	ActiveSession(ctx context.Context) (filter.Lists, bool, error)
}

// Poller periodically mirrors the backend's active session into a State
type Poller struct {
	src      ActiveSource
	state    *State
	interval time.Duration

	mu       sync.Mutex
	lastPoll time.Time
	stopChan chan struct{}
	stopped  bool
}

// NewPoller creates a poller; interval <= 0 uses DefaultPollInterval
func NewPoller(src ActiveSource, state *State, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		src:      src,
		state:    state,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins polling in the background
func (p *Poller) Start() {
	logging.Info("lists", "polling active session every %v", p.interval)
	go p.pollLoop()
}

// Stop stops polling
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopChan)
}

// LastPoll returns when the backend was last asked
func (p *Poller) LastPoll() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll
}

func (p *Poller) pollLoop() {
	p.Poll()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll asks the backend once. No session turns blocking off but keeps the
// lists; errors leave the state untouched.
func (p *Poller) Poll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p.mu.Lock()
	p.lastPoll = time.Now()
	p.mu.Unlock()

	lists, active, err := p.src.ActiveSession(ctx)
	if err != nil {
		logging.Debug("lists", "poll failed: %v", err)
		return
	}
	if !active {
		p.state.SetSession(false)
		return
	}
	p.state.Set(lists, true)
}
