package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// modelWatcher signals when a model file or a sibling sharing its stem
// (material library, glTF buffers) changes on disk.
type modelWatcher struct {
	watcher *fsnotify.Watcher
	stem    string
	changed chan struct{}
	done    chan struct{}
	log     *zap.Logger
}

// watchModel watches the directory holding path. Editors often replace files
// by rename, so the directory is watched rather than the file.
func watchModel(path string, log *zap.Logger) (*modelWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	mw := &modelWatcher{
		watcher: w,
		stem:    stem(abs),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     log,
	}
	go mw.run()
	return mw, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (mw *modelWatcher) run() {
	for {
		select {
		case <-mw.done:
			return
		case event, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if stem(event.Name) != mw.stem {
				continue
			}
			mw.log.Debug("model changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
			// Coalesce bursts into a single pending reload.
			select {
			case mw.changed <- struct{}{}:
			default:
			}
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			mw.log.Warn("model watcher error", zap.Error(err))
		}
	}
}

// Changed receives once per burst of changes.
func (mw *modelWatcher) Changed() <-chan struct{} {
	return mw.changed
}

// Close stops watching.
func (mw *modelWatcher) Close() error {
	close(mw.done)
	return mw.watcher.Close()
}
