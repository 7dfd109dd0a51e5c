package host

import (
	"context"
	"errors"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/core/tracking"
	"focusflow/internal/logging"
	"focusflow/internal/platform"
)

// FirstSupported returns an idle checker that asks each provider in turn and
// answers with the first one that supports idle detection.
func FirstSupported(providers ...tracking.IdleChecker) tracking.IdleChecker {
	return idleChain(providers)
}

type idleChain []tracking.IdleChecker

func (chain idleChain) IdleDuration() (time.Duration, error) {
	for _, provider := range chain {
		if provider == nil {
			continue
		}
		idle, err := provider.IdleDuration()
		if errors.Is(err, platform.ErrIdleUnsupported) {
			continue
		}
		return idle, err
	}
	return 0, platform.ErrIdleUnsupported
}

// IdleWatcher polls an idle checker and enqueues idleStateChanged whenever
// the user crosses the idle threshold in either direction.
type IdleWatcher struct {
	checker   tracking.IdleChecker
	threshold func() time.Duration
	interval  time.Duration
	queue     Enqueuer
	idle      bool
}

// NewIdleWatcher creates a watcher. threshold is read on every poll so it
// follows configuration changes.
func NewIdleWatcher(checker tracking.IdleChecker, threshold func() time.Duration, interval time.Duration, queue Enqueuer) *IdleWatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &IdleWatcher{checker: checker, threshold: threshold, interval: interval, queue: queue}
}

// Run polls until ctx is done. It stops early when idle detection is
// unsupported.
func (watcher *IdleWatcher) Run(ctx context.Context) {
	log := logging.NewLogger("host")
	ticker := time.NewTicker(watcher.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := watcher.poll(); err != nil {
				if errors.Is(err, platform.ErrIdleUnsupported) {
					log.Info("Idle detection unsupported, idle watcher stopped")
					return
				}
				log.WithError(err).Debug("Idle check failed")
			}
		}
	}
}

func (watcher *IdleWatcher) poll() error {
	duration, err := watcher.checker.IdleDuration()
	if err != nil {
		return err
	}
	idle := duration >= watcher.threshold()
	if idle != watcher.idle {
		watcher.idle = idle
		watcher.queue.Enqueue(model.EventIdleStateChanged)
	}
	return nil
}
