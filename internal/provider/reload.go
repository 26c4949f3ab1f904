package provider

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ReloadDebounce is how long writes to a script file must settle before it is reloaded
const ReloadDebounce = 100 * time.Millisecond

// ScriptWatcher redefines Script APIs whenever their source files change
type ScriptWatcher struct {
	script  *Script
	logger  *logrus.Logger
	watcher *fsnotify.Watcher
	files   map[string][]string // absolute path -> APIs defined from it

	mu       sync.Mutex
	reloaded int
	done     chan struct{}
	stopped  chan struct{}
}

// WatchScripts starts watching the files of an api -> path mapping.
// Directories are watched rather than files so editors that replace a file on save are still seen.
func WatchScripts(logger *logrus.Logger, script *Script, scripts map[string]string) (*ScriptWatcher, error) {
	if logger == nil {
		logger = logrus.New()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &ScriptWatcher{
		script:  script,
		logger:  logger,
		watcher: watcher,
		files:   make(map[string][]string),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for api, path := range scripts {
		abs, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve script %s: %w", path, err)
		}
		w.files[abs] = append(w.files[abs], api)
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go w.loop()

	logger.WithFields(logrus.Fields{
		"files": len(w.files),
		"dirs":  len(dirs),
	}).Debug("Watching payload scripts")
	return w, nil
}

// Reloaded returns how many script reloads have succeeded
func (w *ScriptWatcher) Reloaded() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloaded
}

// Close stops watching and waits for the watch loop to exit
func (w *ScriptWatcher) Close() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	<-w.stopped
	_ = w.watcher.Close()
}

func (w *ScriptWatcher) loop() {
	defer close(w.stopped)

	pending := make(map[string]struct{})
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[abs]; watched {
				pending[abs] = struct{}{}
				debounce.Reset(ReloadDebounce)
			}

		case <-debounce.C:
			for path := range pending {
				w.reload(path)
			}
			clear(pending)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithField("error", err).Warn("Script watcher error")
		}
	}
}

// reload redefines every API bound to path; a broken edit keeps the previous chunk
func (w *ScriptWatcher) reload(path string) {
	for _, api := range w.files[path] {
		if err := w.script.DefineFile(api, path); err != nil {
			w.logger.WithFields(logrus.Fields{
				"api":   api,
				"file":  path,
				"error": err,
			}).Warn("Failed to reload payload script, keeping previous version")
			continue
		}

		w.mu.Lock()
		w.reloaded++
		w.mu.Unlock()
		w.logger.WithFields(logrus.Fields{
			"api":  api,
			"file": path,
		}).Info("Payload script reloaded")
	}
}
