// Package tracking implements the state-update procedure run by the event
// queue for every tracking event.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/core/state"
	"focusflow/internal/logging"
	"focusflow/internal/platform"

	"github.com/sirupsen/logrus"
)

// Tab is the live browser state read when an event is applied.
type Tab struct {
	URL     string
	Focused bool
}

// Host reads the active tab of the focused browser window.
type Host interface {
	ActiveTab(ctx context.Context) (Tab, error)
}

// IdleChecker reports the duration of user inactivity.
type IdleChecker interface {
	IdleDuration() (time.Duration, error)
}

// Tracker closes and opens tracking intervals against shared state.
type Tracker struct {
	shared *state.Shared
	host   Host
	idle   IdleChecker
	now    func() time.Time
	log    *logrus.Entry
}

// New creates a tracker. idle may be nil when idle detection is unavailable.
func New(shared *state.Shared, host Host, idle IdleChecker) *Tracker {
	return &Tracker{
		shared: shared,
		host:   host,
		idle:   idle,
		now:    time.Now,
		log:    logging.NewLogger("tracking"),
	}
}

// SetClock replaces time.Now.
func (tracker *Tracker) SetClock(now func() time.Time) {
	tracker.now = now
}

// Apply re-reads live host state, accrues the interval that just ended and
// opens the next one. On the periodic alarm the aggregates are also written
// to the store.
func (tracker *Tracker) Apply(ctx context.Context, event model.TrackingEvent) error {
	tab, err := tracker.host.ActiveTab(ctx)
	if err != nil {
		return fmt.Errorf("read host state: %w", err)
	}
	now := tracker.now()
	threshold := time.Duration(tracker.shared.Config().IdleThresholdSeconds) * time.Second

	domain := ""
	if tab.Focused && !tracker.isIdle(threshold) {
		domain = DomainOf(tab.URL)
	}

	next := tracker.closeInterval(now, domain, threshold)
	if domain == "" {
		tracker.shared.SetCurrentInterval(nil)
	} else {
		tracker.shared.SetCurrentInterval(&state.Interval{Domain: domain, URL: tab.URL, StartTime: next.UnixMilli()})
	}

	tracker.log.WithFields(logrus.Fields{"event": string(event), "domain": domain}).Debug("Tracking state applied")

	if event == model.EventAlarm {
		if err := tracker.shared.SaveTracking(ctx); err != nil {
			return err
		}
	}
	return nil
}

// closeInterval accrues whole seconds of the open interval and returns the
// start of the following one. When the same domain stays active the
// sub-second remainder carries over. Intervals longer than the idle
// threshold are capped to it, since no event arrived in between.
func (tracker *Tracker) closeInterval(now time.Time, nextDomain string, threshold time.Duration) time.Time {
	current, open := tracker.shared.CurrentInterval()
	if !open {
		return now
	}
	started := current.Started()
	elapsed := now.Sub(started)
	if elapsed <= 0 {
		return now
	}
	if threshold > 0 && elapsed > threshold {
		tracker.log.WithFields(logrus.Fields{"domain": current.Domain, "elapsed": elapsed}).Debug("Capping stale tracking interval")
		elapsed = threshold
		started = now.Add(-threshold)
	}
	seconds := int(elapsed / time.Second)
	category := tracker.shared.CategoryFor(current.Domain)
	tracker.shared.Accrue(current.Domain, category, seconds, started)

	if nextDomain == current.Domain {
		return started.Add(time.Duration(seconds) * time.Second)
	}
	return now
}

func (tracker *Tracker) isIdle(threshold time.Duration) bool {
	if tracker.idle == nil || threshold <= 0 {
		return false
	}
	idle, err := tracker.idle.IdleDuration()
	if err != nil {
		if !errors.Is(err, platform.ErrIdleUnsupported) {
			tracker.log.WithError(err).Debug("Idle check failed, assuming active")
		}
		return false
	}
	return idle >= threshold
}

// DomainOf returns the host of an http(s) URL without a leading "www.", or
// "" for anything else.
func DomainOf(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}
