package configstore

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/localmcp/mcp-hub/daemon/logger"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// ChangeHandler receives the freshly loaded config whenever the watched
// file changes on disk.
type ChangeHandler func(mcphub.AppConfig)

// Watch watches the config file's containing directory (fsnotify cannot
// watch a single file reliably across editors that write-then-rename) and
// invokes onChange with the reloaded config whenever config.json is
// created, written, or renamed into place. Runs until ctx is canceled.
// The GUI shell may rewrite config.json out of process; this lets the
// Manager pick up backend list edits without a restart.
func (s *Store) Watch(ctx context.Context, onChange ChangeHandler) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warning("configstore: watch error: %v", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != FileName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := s.Load()
			if err != nil {
				logger.Warning("configstore: reload after external edit failed: %v", err)
				continue
			}
			onChange(cfg)
		}
	}
}
