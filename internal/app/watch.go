// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/specialistvlad/rtgraph/internal/patch"
)

// watchPatch reloads the patch whenever a patch file changes. Bursts of
// events are collapsed into one reload after the debounce delay.
func (a *App) watchPatch(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create patch watcher: %w", err)
	}
	defer w.Close()

	dirs, err := watchDirs(a.engineCfg.Patch.Paths)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}
	logger.Info("👀 Watching patch files.", "dirs", dirs, "debounce", a.engineCfg.Patch.Debounce)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != patch.FileExtension || ev.Has(fsnotify.Chmod) {
				continue
			}
			logger.Debug("Patch file changed.", "file", ev.Name, "op", ev.Op.String())
			fire = time.After(a.engineCfg.Patch.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Patch watcher error.", "error", err)
		case <-fire:
			fire = nil
			// Failures are logged and the current graph stays live.
			_ = a.Reload(ctx)
		}
	}
}

// watchDirs lists the directories to watch for paths: every directory below
// a directory path, and the parent of a file path.
func watchDirs(paths []string) ([]string, error) {
	var dirs []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", p, err)
		}
		if !info.IsDir() {
			dirs = append(dirs, filepath.Dir(p))
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				dirs = append(dirs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(dirs)
	return slices.Compact(dirs), nil
}
