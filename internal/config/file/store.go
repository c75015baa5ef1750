// Package file provides a file-based config.Store implementation.
//
// Configuration is persisted as a versioned JSON envelope:
//
//	{"version": 1, "config": { ... }}
//
// Every Save loads nothing; it simply marshals the given Config and
// atomically replaces the file via temp file + rename, with round-trip
// validation before the rename commits.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/rerun-io/rerun-sub038/internal/config"
	"github.com/rerun-io/rerun-sub038/internal/logging"
)

const currentVersion = 1

// envelope is the versioned on-disk format.
type envelope struct {
	Version int            `json:"version"`
	Config  *config.Config `json:"config"`
}

// Store is a file-based config.Store implementation. Configuration is
// persisted as JSON for human readability.
type Store struct {
	path   string
	logger *slog.Logger
}

var _ config.Store = (*Store)(nil)

// NewStore creates a file-based Store backed by the JSON file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logging.Default(logger).With("component", "config", "type", "file")}
}

// Load reads the configuration from disk. Returns nil, nil if the
// file does not exist.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if env.Version > currentVersion {
		return nil, fmt.Errorf("config file version %d is newer than supported version %d", env.Version, currentVersion)
	}
	return env.Config, nil
}

// Save atomically writes cfg to disk, replacing any previous content.
func (s *Store) Save(ctx context.Context, cfg *config.Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	env := envelope{Version: currentVersion, Config: cfg}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	check, err := os.ReadFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("read-back temp file: %w", err)
	}
	var verify envelope
	if err := json.Unmarshal(check, &verify); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("round-trip validation failed: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}

// Watch starts watching the store's file for changes, invoking onChange
// with the freshly loaded Config after every write. Watch blocks until
// ctx is cancelled or the watcher fails to start; callers typically
// run it in its own goroutine. No chronostore CLI command calls it.
func (s *Store) Watch(ctx context.Context, onChange func(*config.Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := s.Load(ctx)
			if err != nil {
				s.logger.Warn("failed to reload config after file change", "error", err)
				continue
			}
			if cfg != nil {
				onChange(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config watcher error", "error", err)
		}
	}
}
