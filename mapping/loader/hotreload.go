package loader

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/tabula/errors"
	"github.com/teranos/tabula/logger"
)

// changeQueueSize bounds the pending change channel. Overflow drops
// events; the debounced reload picks the file up on its next change.
const changeQueueSize = 16

// watcher funnels filesystem events into a single consumer goroutine
// that debounces and reloads changed files one at a time. One producer
// (watchLoop), one consumer (consumeLoop); Stop closes both down.
type watcher struct {
	fs      *fsnotify.Watcher
	changes chan string
	done    chan struct{}
}

// StartWatching begins hot reloading configuration files under the
// base directory. Call StopWatching to shut down.
func (l *Loader) StartWatching() error {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	if l.watcher != nil {
		return errors.New("loader is already watching")
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}

	// Watch the directories, not the files: editors and atomic writes
	// replace files, which silently drops per-file watches
	for _, dir := range []string{"mappings", "schema"} {
		path := filepath.Join(l.baseDir, dir)
		if err := fs.Add(path); err != nil {
			fs.Close()
			return errors.Wrapf(err, "failed to watch %s", path)
		}
	}

	w := &watcher{
		fs:      fs,
		changes: make(chan string, changeQueueSize),
		done:    make(chan struct{}),
	}
	l.watcher = w

	go l.watchLoop(w)
	go l.consumeLoop(w)

	logger.Infow("Configuration hot reload started",
		"base_dir", l.baseDir,
		"debounce", l.options.DebouncePeriod)
	return nil
}

// StopWatching shuts down the watcher goroutines.
func (l *Loader) StopWatching() error {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.fs.Close()
	close(l.watcher.done)
	l.watcher = nil
	return err
}

// watchLoop filters filesystem events down to managed JSON files and
// queues their paths for the consumer.
func (l *Loader) watchLoop(w *watcher) {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}

			logger.Debugw("Configuration change detected",
				"file", event.Name,
				"op", event.Op.String())

			select {
			case w.changes <- event.Name:
			default:
				logger.Warnw("Change queue full, dropping event",
					"file", event.Name)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warnw("Configuration watcher error",
				"error", err)
		}
	}
}

// consumeLoop is the single consumer: it batches queued paths for one
// debounce period, then reloads each distinct changed file.
func (l *Loader) consumeLoop(w *watcher) {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case path, ok := <-w.changes:
			if !ok {
				return
			}
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(l.options.DebouncePeriod)
				fire = timer.C
			} else {
				timer.Reset(l.options.DebouncePeriod)
			}

		case <-fire:
			for path := range pending {
				l.reloadFile(path)
			}
			pending = make(map[string]struct{})
			timer, fire = nil, nil

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
