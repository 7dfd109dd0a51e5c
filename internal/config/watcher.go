package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"focusflow/internal/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads config.yaml when it changes on disk and hands the result
// to a callback.
type Watcher struct {
	path     string
	onChange func(Config)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	log      *logrus.Entry

	stopOnce sync.Once
	stopCh   chan struct{}
	reloadCh chan struct{}
	done     sync.WaitGroup
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, onChange func(Config)) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &Watcher{
		path:     absPath,
		onChange: onChange,
		debounce: defaultDebounce,
		watcher:  watcher,
		log:      logging.NewLogger("config"),
		stopCh:   make(chan struct{}),
		reloadCh: make(chan struct{}, 1),
	}, nil
}

// Start watches the directory containing the file. Editors often replace
// the file instead of writing it, which a file watch would miss.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config directory %s: %w", dir, err)
	}
	w.log.WithField("path", w.path).Info("Watching configuration")

	w.done.Add(2)
	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop ends both loops and closes the fsnotify watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
		w.done.Wait()
	})
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.done.Done()
	name := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Remove) {
				w.log.WithField("file", event.Name).Warn("Config file removed, keeping current configuration")
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.trigger()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Error("Config watcher error")
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	defer w.done.Done()
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-w.stopCh:
			stopTimer(timer)
			return
		case <-w.reloadCh:
			stopTimer(timer)
			timer = time.NewTimer(w.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) trigger() {
	select {
	case w.reloadCh <- struct{}{}:
	default:
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.WithError(err).Error("Failed to reload configuration")
		return
	}
	w.log.Info("Configuration reloaded")
	w.onChange(cfg)
}

func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
