package lists

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vthunder/focuspet/internal/filter"
	"github.com/vthunder/focuspet/internal/logging"
)

// Installer hands a rule update to the rule engine
type Installer interface {
	Install(ctx context.Context, u filter.Update) error
}

// RuleSync keeps the installed rule set equal to the compiled state
type RuleSync struct {
	state *State
	inst  Installer

	mu        sync.Mutex
	installed []int
}

// NewRuleSync creates a syncer; call Attach to follow state changes
func NewRuleSync(state *State, inst Installer) *RuleSync {
	return &RuleSync{state: state, inst: inst}
}

// Attach re-syncs on every state change
func (r *RuleSync) Attach() {
	r.state.OnChange(func(Snapshot) {
		if err := r.Sync(context.Background()); err != nil {
			logging.Warn("lists", "rule sync: %v", err)
		}
	})
}

// Installed returns the ids currently installed
func (r *RuleSync) Installed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.installed...)
}

// Sync compiles the current state and replaces every installed rule
func (r *RuleSync) Sync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.state.Snapshot()
	batch := snap.Batch()
	u := batch.Update(r.installed)
	if err := r.inst.Install(ctx, u); err != nil {
		return fmt.Errorf("install rules: %w", err)
	}
	r.installed = batch.IDs()
	logging.Debug("lists", "installed %d rules (removed %d, version %d)",
		len(u.AddRules), len(u.RemoveRuleIDs), snap.Version)
	return nil
}

// FileInstaller writes each update as JSON for the extension to pick up
type FileInstaller struct {
	Path string
}

// Install writes u atomically
func (f FileInstaller) Install(_ context.Context, u filter.Update) error {
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

// InstallerFunc adapts a function to Installer
type InstallerFunc func(ctx context.Context, u filter.Update) error

// Install calls f
func (f InstallerFunc) Install(ctx context.Context, u filter.Update) error { return f(ctx, u) }
