// Package configstore persists AppConfig as pretty-printed JSON in a
// platform-specific application-data directory. Writes go through a
// temp-file-then-rename step because this file is also watched and
// potentially rewritten out-of-process by the GUI shell's config editor.
package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// FileName is the config file's key within its containing directory.
const FileName = "config.json"

// DefaultDir returns os.UserConfigDir()/mcphub, the default location for
// config.json, falling back to a relative "mcphub" directory under the
// current directory if no user config dir can be resolved (e.g. HOME unset
// in a minimal container).
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mcphub"
	}
	return filepath.Join(dir, "mcphub")
}

// Store reads and atomically writes AppConfig at a fixed path.
type Store struct {
	path string
}

// New constructs a Store backed by dir/config.json. If dir is empty,
// DefaultDir is used.
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path returns the on-disk location of the config file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the config file. A missing file is not an error: it returns
// DefaultAppConfig(). Unknown JSON fields are tolerated (encoding/json's
// default struct-decode behavior); fields absent from the file are filled
// in with documented defaults before the caller next saves.
func (s *Store) Load() (mcphub.AppConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return mcphub.DefaultAppConfig(), nil
		}
		return mcphub.AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg mcphub.AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return mcphub.AppConfig{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save pretty-prints cfg and writes it atomically: a temp file in the same
// directory is written first and then renamed over the target, so a reader
// (or a concurrent external editor) never observes a partially written file.
func (s *Store) Save(cfg mcphub.AppConfig) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}
