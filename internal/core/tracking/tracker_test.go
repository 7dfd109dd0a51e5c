package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/core/state"
	"focusflow/internal/platform"
	"focusflow/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	tab Tab
	err error
}

func (host *fakeHost) ActiveTab(context.Context) (Tab, error) {
	return host.tab, host.err
}

type fakeIdle struct {
	idle time.Duration
	err  error
}

func (idle *fakeIdle) IdleDuration() (time.Duration, error) {
	return idle.idle, idle.err
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTracker(t *testing.T) (*Tracker, *state.Shared, *fakeHost, *fakeIdle, *clock, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	shared := state.New(store, state.Defaults{IdleThresholdSeconds: 300})
	shared.SetAssignments(map[string]string{"github.com": "Work", "*.social.test": "Social"})
	host := &fakeHost{}
	idle := &fakeIdle{}
	c := &clock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local)}
	tracker := New(shared, host, idle)
	tracker.SetClock(c.Now)
	return tracker, shared, host, idle, c, store
}

func TestDomainOf(t *testing.T) {
	tests := map[string]string{
		"https://www.GitHub.com/org/repo": "github.com",
		"http://news.example:8080/a":      "news.example",
		"chrome://settings":               "",
		"about:blank":                     "",
		"":                                "",
		"ftp://files.example":             "",
	}
	for input, want := range tests {
		assert.Equal(t, want, DomainOf(input), input)
	}
}

func TestApplyAccruesClosedInterval(t *testing.T) {
	tracker, shared, host, _, c, _ := newTracker(t)

	host.tab = Tab{URL: "https://github.com/focusflow", Focused: true}
	require.NoError(t, tracker.Apply(t.Context(), model.EventTabActivated))
	current, open := shared.CurrentInterval()
	require.True(t, open)
	assert.Equal(t, "github.com", current.Domain)

	c.advance(90 * time.Second)
	host.tab = Tab{URL: "https://m.social.test/feed", Focused: true}
	require.NoError(t, tracker.Apply(t.Context(), model.EventTabActivated))

	c.advance(30 * time.Second)
	host.tab = Tab{Focused: false}
	require.NoError(t, tracker.Apply(t.Context(), model.EventWindowFocusChanged))
	_, open = shared.CurrentInterval()
	assert.False(t, open)

	tracking := shared.Tracking()
	assert.Equal(t, 90, tracking.Tracked["github.com"])
	assert.Equal(t, 30, tracking.Tracked["m.social.test"])
	assert.Equal(t, 90, tracking.CategoryTime["Work"])
	assert.Equal(t, 30, tracking.CategoryTime["Social"])
	assert.Equal(t, 120, tracking.Hourly["2026-10-19"]["09"])
}

func TestApplyCarriesSubSecondRemainder(t *testing.T) {
	tracker, shared, host, _, c, _ := newTracker(t)
	host.tab = Tab{URL: "https://github.com", Focused: true}
	require.NoError(t, tracker.Apply(t.Context(), model.EventTabActivated))

	for range 4 {
		c.advance(1500 * time.Millisecond)
		require.NoError(t, tracker.Apply(t.Context(), model.EventTabUpdated))
	}

	assert.Equal(t, 6, shared.Tracking().Tracked["github.com"])
}

func TestApplyStopsTrackingWhenIdle(t *testing.T) {
	tracker, shared, host, idle, c, _ := newTracker(t)
	host.tab = Tab{URL: "https://github.com", Focused: true}
	require.NoError(t, tracker.Apply(t.Context(), model.EventTabActivated))

	c.advance(20 * time.Second)
	idle.idle = 10 * time.Minute
	require.NoError(t, tracker.Apply(t.Context(), model.EventIdleStateChanged))
	_, open := shared.CurrentInterval()
	assert.False(t, open)
	assert.Equal(t, 20, shared.Tracking().Tracked["github.com"])

	idle.idle = 0
	idle.err = platform.ErrIdleUnsupported
	require.NoError(t, tracker.Apply(t.Context(), model.EventIdleStateChanged))
	_, open = shared.CurrentInterval()
	assert.True(t, open)
}

func TestApplyCapsStaleInterval(t *testing.T) {
	tracker, shared, host, _, c, _ := newTracker(t)
	host.tab = Tab{URL: "https://github.com", Focused: true}
	require.NoError(t, tracker.Apply(t.Context(), model.EventTabActivated))

	c.advance(3 * time.Hour)
	require.NoError(t, tracker.Apply(t.Context(), model.EventAlarm))
	assert.Equal(t, 300, shared.Tracking().Tracked["github.com"])
}

func TestApplyFlushesOnAlarmOnly(t *testing.T) {
	tracker, _, host, _, c, store := newTracker(t)
	host.tab = Tab{URL: "https://github.com", Focused: true}

	require.NoError(t, tracker.Apply(t.Context(), model.EventTabActivated))
	assert.Zero(t, store.SetCalls())

	c.advance(15 * time.Second)
	require.NoError(t, tracker.Apply(t.Context(), model.EventAlarm))
	assert.Equal(t, 1, store.SetCalls())
	raw, ok := store.Raw(storage.KeyTrackedData)
	require.True(t, ok)
	assert.JSONEq(t, `{"github.com":15}`, string(raw))

	store.FailSet(errors.New("disk full"))
	c.advance(15 * time.Second)
	assert.Error(t, tracker.Apply(t.Context(), model.EventAlarm))
}

func TestApplyReturnsHostErrors(t *testing.T) {
	tracker, shared, host, _, _, _ := newTracker(t)
	host.err = errors.New("browser not reachable")

	err := tracker.Apply(t.Context(), model.EventTabActivated)
	require.Error(t, err)
	assert.Empty(t, shared.Tracking().Tracked)
}
