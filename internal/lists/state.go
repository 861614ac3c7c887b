// Package lists holds the live allow/block lists and session flag, keeps
// them in sync with a file or the backend, and pushes compiled rules out.
package lists

import (
	"slices"
	"sync"

	"github.com/vthunder/focuspet/internal/filter"
)

// Snapshot is an immutable view of the list state
type Snapshot struct {
	Lists     filter.Lists
	SessionOn bool
	Version   uint64
	Matcher   *filter.Matcher
}

// State is the shared list state. Writers replace it wholesale; readers get
// consistent snapshots.
type State struct {
	mu        sync.RWMutex
	lists     filter.Lists
	sessionOn bool
	version   uint64
	matcher   *filter.Matcher
	listeners []func(Snapshot)
}

// NewState creates an empty state with the session off
func NewState() *State {
	return &State{matcher: filter.NewMatcher(filter.Lists{})}
}

// OnChange registers a callback run after every effective change
func (s *State) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Set replaces lists and the session flag. It reports whether anything
// changed; listeners only run on change.
func (s *State) Set(l filter.Lists, sessionOn bool) bool {
	l = filter.Lists{Allow: slices.Clone(l.Allow), Block: slices.Clone(l.Block)}

	s.mu.Lock()
	if s.sessionOn == sessionOn && slices.Equal(s.lists.Allow, l.Allow) && slices.Equal(s.lists.Block, l.Block) {
		s.mu.Unlock()
		return false
	}
	s.lists = l
	s.sessionOn = sessionOn
	s.version++
	s.matcher = filter.NewMatcher(l)
	snap := s.snapshotLocked()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return true
}

// SetSession flips the session flag, keeping the lists
func (s *State) SetSession(on bool) bool {
	return s.Set(s.Snapshot().Lists, on)
}

// Snapshot returns the current state
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Lists:     filter.Lists{Allow: slices.Clone(s.lists.Allow), Block: slices.Clone(s.lists.Block)},
		SessionOn: s.sessionOn,
		Version:   s.version,
		Matcher:   s.matcher,
	}
}

// Batch compiles the snapshot. A stopped session yields an empty batch.
func (sn Snapshot) Batch() filter.Batch {
	if !sn.SessionOn {
		return filter.Batch{}
	}
	return filter.Compile(sn.Lists.Allow, sn.Lists.Block)
}
