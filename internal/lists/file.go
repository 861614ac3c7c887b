package lists

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/vthunder/focuspet/internal/filter"
	"github.com/vthunder/focuspet/internal/logging"
)

// File is the on-disk form of the list state
type File struct {
	SessionOn bool     `yaml:"session_on"`
	Allowlist []string `yaml:"allowlist"`
	Blacklist []string `yaml:"blacklist"`
}

// Lists returns the filter lists in f
func (f File) Lists() filter.Lists {
	return filter.Lists{Allow: f.Allowlist, Block: f.Blacklist}
}

// LoadFile reads a YAML list file. A missing file yields an empty File.
func LoadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("read lists: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse lists %s: %w", path, err)
	}
	return f, nil
}

// SaveFile writes f atomically
func SaveFile(path string, f File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Apply loads path into s
func Apply(path string, s *State) error {
	f, err := LoadFile(path)
	if err != nil {
		return err
	}
	if s.Set(f.Lists(), f.SessionOn) {
		logging.Info("lists", "loaded %s: %d allow, %d block, session_on=%v",
			filepath.Base(path), len(f.Allowlist), len(f.Blacklist), f.SessionOn)
	}
	return nil
}

// Watch loads path into s and reloads it on every change until ctx is
// cancelled. The parent directory is watched so that editors which replace
// the file are handled.
func Watch(ctx context.Context, path string, s *State) error {
	if err := Apply(path, s); err != nil {
		logging.Warn("lists", "%v", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				if err := Apply(path, s); err != nil {
					logging.Warn("lists", "reload: %v", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("lists", "watcher: %v", err)
		}
	}
}
