// Package host provides live browser state to the tracker and turns host
// activity into tracking events.
package host

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/core/tracking"
	"focusflow/internal/platform"
)

// Enqueuer accepts tracking events.
type Enqueuer interface {
	Enqueue(event model.TrackingEvent)
}

// Report is what a browser companion posts when something changes.
type Report struct {
	Event   model.TrackingEvent `json:"event"`
	URL     string              `json:"url"`
	Focused bool                `json:"focused"`
	// Active is false when a tab other than the active one was updated.
	Active *bool `json:"active,omitempty"`
	// Status is the load status of an updated tab; only "complete" counts.
	Status string `json:"status,omitempty"`
	// Idle carries the browser's own idle detection, if it has one.
	Idle *bool `json:"idle,omitempty"`
}

// ReportedSource keeps the state last reported by the browser companion.
type ReportedSource struct {
	mu      sync.Mutex
	tab     tracking.Tab
	idle    bool
	hasIdle bool
}

// NewReportedSource creates a source with nothing reported yet.
func NewReportedSource() *ReportedSource {
	return &ReportedSource{}
}

// ActiveTab implements tracking.Host.
func (source *ReportedSource) ActiveTab(ctx context.Context) (tracking.Tab, error) {
	if err := ctx.Err(); err != nil {
		return tracking.Tab{}, err
	}
	source.mu.Lock()
	defer source.mu.Unlock()
	return source.tab, nil
}

// IdleDuration reports the companion's idle state: zero while active, the
// longest duration while idle. Without an idle report it is unsupported.
func (source *ReportedSource) IdleDuration() (time.Duration, error) {
	source.mu.Lock()
	defer source.mu.Unlock()
	if !source.hasIdle {
		return 0, platform.ErrIdleUnsupported
	}
	if source.idle {
		return time.Duration(math.MaxInt64), nil
	}
	return 0, nil
}

// Apply records a report and, when it should trigger re-evaluation, enqueues
// its event. Updates of background tabs or of pages still loading are
// dropped. It reports whether an event was enqueued.
func (source *ReportedSource) Apply(report Report, queue Enqueuer) (bool, error) {
	switch report.Event {
	case model.EventTabActivated, model.EventTabUpdated, model.EventWindowFocusChanged, model.EventIdleStateChanged:
	default:
		return false, fmt.Errorf("unsupported host event %q", report.Event)
	}

	active := report.Active == nil || *report.Active
	if report.Event == model.EventTabUpdated {
		complete := report.Status == "" || report.Status == "complete"
		if !active || !complete || !report.Focused || tracking.DomainOf(report.URL) == "" {
			return false, nil
		}
	}

	source.mu.Lock()
	if active {
		source.tab = tracking.Tab{URL: report.URL, Focused: report.Focused}
	}
	if report.Idle != nil {
		source.idle = *report.Idle
		source.hasIdle = true
	}
	source.mu.Unlock()

	queue.Enqueue(report.Event)
	return true, nil
}
