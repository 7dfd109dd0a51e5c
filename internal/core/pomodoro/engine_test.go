package pomodoro

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/core/rulecache"
	"focusflow/internal/core/state"
	"focusflow/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.Local)

type fakeNotifier struct {
	mu      sync.Mutex
	granted bool
	err     error
	checks  int
	sent    []Notification
}

func (notifier *fakeNotifier) Capable(context.Context) (bool, error) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.checks++
	return notifier.granted, notifier.err
}

func (notifier *fakeNotifier) Send(_ context.Context, notification Notification) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.sent = append(notifier.sent, notification)
	return nil
}

func (notifier *fakeNotifier) set(granted bool, err error) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.granted = granted
	notifier.err = err
}

func (notifier *fakeNotifier) notifications() []Notification {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return append([]Notification(nil), notifier.sent...)
}

type harness struct {
	store    *storage.MemoryStore
	shared   *state.Shared
	cache    *rulecache.Cache
	notifier *fakeNotifier
	engine   *Engine
}

func testSettings() model.PomodoroSettings {
	return model.PomodoroSettings{
		Durations: model.Durations{
			model.PhaseWork:       30,
			model.PhaseShortBreak: 5,
			model.PhaseLongBreak:  15,
		},
		SessionsBeforeLongBreak:     4,
		NotifyEnabled:               true,
		BlockDuringWorkEnabled:      true,
		BlockedCategoriesDuringWork: []string{"Social", "Games"},
	}
}

func newHarness(t *testing.T, settings model.PomodoroSettings, options ...Option) *harness {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]any{storage.KeyPomodoroSettings: settings}))
	h := &harness{
		store:    store,
		shared:   state.New(store, state.Defaults{}),
		cache:    rulecache.New(store),
		notifier: &fakeNotifier{granted: true},
	}
	options = append([]Option{
		WithManualTick(),
		WithClock(func() time.Time { return testNow }),
		WithNotifier(h.notifier),
		WithRules(h.cache),
	}, options...)
	h.engine = New(store, h.shared, options...)
	require.NoError(t, h.engine.Load(t.Context()))
	return h
}

func (h *harness) ticks(t *testing.T, count int) {
	t.Helper()
	for range count {
		h.engine.Tick(t.Context())
	}
}

// completePhase starts the timer and ticks through the rest of the phase.
func (h *harness) completePhase(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Start(t.Context()))
	h.ticks(t, h.engine.Snapshot().RemainingTime)
}

func (h *harness) persistedState(t *testing.T) model.PomodoroState {
	t.Helper()
	raw, ok := h.store.Raw(storage.KeyPomodoroState)
	require.True(t, ok)
	var persisted model.PomodoroState
	require.NoError(t, json.Unmarshal(raw, &persisted))
	return persisted
}

func (h *harness) ephemeralCategories() []string {
	var categories []string
	for _, rule := range h.cache.Snapshot().ActiveRules {
		if rule.Kind() == model.KindBlockCategory {
			categories = append(categories, rule.Value())
		}
	}
	return categories
}

func TestNewEngineStartsStoppedAtWork(t *testing.T) {
	engine := New(storage.NewMemoryStore(), nil, WithManualTick())
	status := engine.Snapshot()

	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Equal(t, model.DefaultWorkSeconds, status.RemainingTime)
	assert.Equal(t, model.TimerStopped, status.TimerState)
	assert.Zero(t, status.WorkSessionsCompleted)
}

func TestLoadDemotesRunningStateToPaused(t *testing.T) {
	h := newHarness(t, testSettings())
	require.NoError(t, h.engine.Start(t.Context()))
	h.ticks(t, 7)
	require.NoError(t, h.store.Set(t.Context(), map[string]any{storage.KeyPomodoroState: h.engine.Snapshot().PomodoroState}))
	require.Equal(t, model.TimerRunning, h.persistedState(t).TimerState)

	restored := New(h.store, h.shared, WithManualTick())
	require.NoError(t, restored.Load(t.Context()))

	status := restored.Snapshot()
	assert.Equal(t, model.TimerPaused, status.TimerState)
	assert.Equal(t, 23, status.RemainingTime)
	assert.False(t, restored.Ticking())
}

func TestLoadClampsAndRepairsPersistedState(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]any{
		storage.KeyPomodoroSettings: testSettings(),
		storage.KeyPomodoroState: json.RawMessage(`{
			"currentPhase":"Short Break","remainingTime":900,
			"workSessionsCompleted":2,"timerState":"bogus"}`),
	}))
	engine := New(store, nil, WithManualTick())
	require.NoError(t, engine.Load(t.Context()))

	status := engine.Snapshot()
	assert.Equal(t, model.PhaseShortBreak, status.CurrentPhase)
	assert.Equal(t, 5, status.RemainingTime)
	assert.Equal(t, 2, status.WorkSessionsCompleted)
	assert.Equal(t, model.TimerStopped, status.TimerState)

	require.NoError(t, store.Set(t.Context(), map[string]any{
		storage.KeyPomodoroState: json.RawMessage(`{"currentPhase":"Nap","timerState":"paused"}`),
	}))
	require.NoError(t, engine.Load(t.Context()))
	status = engine.Snapshot()
	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Equal(t, 30, status.RemainingTime)
	assert.Equal(t, model.TimerPaused, status.TimerState)
}

func TestLoadFallsBackToDefaultsOnStoreFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailGet(errors.New("storage offline"))
	engine := New(store, nil, WithManualTick())

	require.Error(t, engine.Load(t.Context()))
	status := engine.Snapshot()
	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Equal(t, model.DefaultWorkSeconds, status.RemainingTime)
	assert.Equal(t, model.DefaultDurations(), status.Durations)
}

func TestStartAndPauseAreGuarded(t *testing.T) {
	h := newHarness(t, testSettings())

	require.ErrorIs(t, h.engine.Pause(t.Context()), ErrNotRunning)
	require.NoError(t, h.engine.Start(t.Context()))
	require.ErrorIs(t, h.engine.Start(t.Context()), ErrAlreadyRunning)
	h.ticks(t, 3)

	require.NoError(t, h.engine.Pause(t.Context()))
	remaining := h.engine.Snapshot().RemainingTime
	require.ErrorIs(t, h.engine.Pause(t.Context()), ErrNotRunning)
	assert.Equal(t, remaining, h.engine.Snapshot().RemainingTime)

	h.ticks(t, 5)
	assert.Equal(t, remaining, h.engine.Snapshot().RemainingTime)
	assert.Equal(t, model.TimerPaused, h.persistedState(t).TimerState)

	require.NoError(t, h.engine.Start(t.Context()))
	require.NoError(t, h.engine.Pause(t.Context()))
	assert.Equal(t, remaining, h.engine.Snapshot().RemainingTime)
}

func TestWorkCompletionChoosesBreakBySessionCount(t *testing.T) {
	h := newHarness(t, testSettings())

	var breaks []model.Phase
	for range 8 {
		h.completePhase(t)
		status := h.engine.Snapshot()
		require.Equal(t, model.TimerStopped, status.TimerState)
		breaks = append(breaks, status.CurrentPhase)
		if status.CurrentPhase == model.PhaseShortBreak {
			h.completePhase(t)
		} else {
			require.NoError(t, h.engine.Skip(t.Context()))
			assert.Zero(t, h.engine.Snapshot().WorkSessionsCompleted)
		}
		require.Equal(t, model.PhaseWork, h.engine.Snapshot().CurrentPhase)
	}

	assert.Equal(t, []model.Phase{
		model.PhaseShortBreak, model.PhaseShortBreak, model.PhaseShortBreak, model.PhaseLongBreak,
		model.PhaseShortBreak, model.PhaseShortBreak, model.PhaseShortBreak, model.PhaseLongBreak,
	}, breaks)
}

func TestBreakCompletionSessionCounting(t *testing.T) {
	settings := testSettings()
	settings.SessionsBeforeLongBreak = 2
	h := newHarness(t, settings)

	h.completePhase(t)
	require.Equal(t, model.PhaseShortBreak, h.engine.Snapshot().CurrentPhase)
	h.completePhase(t)
	status := h.engine.Snapshot()
	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Equal(t, 1, status.WorkSessionsCompleted)

	h.completePhase(t)
	require.Equal(t, model.PhaseLongBreak, h.engine.Snapshot().CurrentPhase)
	assert.Equal(t, 2, h.engine.Snapshot().WorkSessionsCompleted)
	h.completePhase(t)
	status = h.engine.Snapshot()
	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Zero(t, status.WorkSessionsCompleted)
	assert.Equal(t, 30, status.RemainingTime)
}

func TestWorkCompletionRecordsStatsAndNotifies(t *testing.T) {
	settings := testSettings()
	settings.Durations[model.PhaseWork] = 1500
	h := newHarness(t, settings)
	require.NoError(t, h.store.Set(t.Context(), map[string]any{
		storage.KeyPomodoroStatsDaily: map[string]model.DailyPomodoroStat{
			"2026-10-19": {WorkSessions: 2, TotalWorkTime: 3000},
		},
		storage.KeyPomodoroStatsAllTime: model.AllTimePomodoroStat{TotalWorkSessionsCompleted: 7, TotalTimeFocused: 9000},
	}))
	require.NoError(t, h.shared.LoadStats(t.Context()))

	h.completePhase(t)

	date, daily := h.engine.StatsForDate("2026-10-19")
	assert.Equal(t, "2026-10-19", date)
	assert.Equal(t, model.DailyPomodoroStat{WorkSessions: 3, TotalWorkTime: 4500}, daily)
	assert.Equal(t, model.AllTimePomodoroStat{TotalWorkSessionsCompleted: 8, TotalTimeFocused: 10500}, h.engine.AllTimeStats())

	sent := h.notifier.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, "FocusFlow: Work Complete!", sent[0].Title)
	assert.Equal(t, "Time for your short break. Click Start in the popup when ready.", sent[0].Message)
	assert.Contains(t, sent[0].ID, "pomodoro-")

	h.completePhase(t)
	_, daily = h.engine.StatsForDate("2026-10-19")
	assert.Equal(t, 3, daily.WorkSessions)
	require.Len(t, h.notifier.notifications(), 2)
	assert.Equal(t, "FocusFlow: Short Break Complete!", h.notifier.notifications()[1].Title)
}

func TestCompletionWithoutCapabilityDowngradesNotify(t *testing.T) {
	h := newHarness(t, testSettings())
	h.notifier.set(false, nil)

	h.completePhase(t)

	assert.Empty(t, h.notifier.notifications())
	assert.False(t, h.engine.Settings().NotifyEnabled)
	raw, ok := h.store.Raw(storage.KeyPomodoroSettings)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"notifyEnabled":false`)
}

func TestSkipIsRejectedDuringWork(t *testing.T) {
	h := newHarness(t, testSettings())
	require.NoError(t, h.engine.Start(t.Context()))
	h.ticks(t, 4)
	before := h.engine.Snapshot()

	require.ErrorIs(t, h.engine.Skip(t.Context()), ErrSkipWork)
	assert.Equal(t, before, h.engine.Snapshot())
}

func TestSkipBreakDoesNotRecordStats(t *testing.T) {
	h := newHarness(t, testSettings())
	h.completePhase(t)
	require.Equal(t, model.PhaseShortBreak, h.engine.Snapshot().CurrentPhase)
	require.NoError(t, h.engine.Start(t.Context()))
	h.ticks(t, 2)

	require.NoError(t, h.engine.Skip(t.Context()))

	status := h.engine.Snapshot()
	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Equal(t, model.TimerStopped, status.TimerState)
	assert.Equal(t, 30, status.RemainingTime)
	assert.Equal(t, 1, status.WorkSessionsCompleted)
	assert.Equal(t, 1, h.engine.AllTimeStats().TotalWorkSessionsCompleted)
	assert.Len(t, h.notifier.notifications(), 1)
}

func TestChangeToNextPhaseCycles(t *testing.T) {
	h := newHarness(t, testSettings())
	h.completePhase(t)
	require.NoError(t, h.engine.Skip(t.Context()))
	require.Equal(t, 1, h.engine.Snapshot().WorkSessionsCompleted)

	h.engine.ChangeToNextPhase(t.Context())
	assert.Equal(t, model.PhaseShortBreak, h.engine.Snapshot().CurrentPhase)
	assert.Equal(t, 1, h.engine.Snapshot().WorkSessionsCompleted)

	h.engine.ChangeToNextPhase(t.Context())
	assert.Equal(t, model.PhaseLongBreak, h.engine.Snapshot().CurrentPhase)
	assert.Equal(t, 15, h.engine.Snapshot().RemainingTime)

	h.engine.ChangeToNextPhase(t.Context())
	status := h.engine.Snapshot()
	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Zero(t, status.WorkSessionsCompleted)
	assert.Equal(t, 1, h.engine.AllTimeStats().TotalWorkSessionsCompleted)
}

func TestChangeToNextPhaseFallsBackFromUnknownPhase(t *testing.T) {
	h := newHarness(t, testSettings())
	h.engine.mu.Lock()
	h.engine.state.CurrentPhase = model.Phase("Siesta")
	h.engine.state.WorkSessionsCompleted = 3
	h.engine.mu.Unlock()

	h.engine.ChangeToNextPhase(t.Context())

	status := h.engine.Snapshot()
	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Zero(t, status.WorkSessionsCompleted)
}

func TestReset(t *testing.T) {
	h := newHarness(t, testSettings())
	h.completePhase(t)
	require.NoError(t, h.engine.Start(t.Context()))
	h.ticks(t, 2)

	h.engine.Reset(t.Context(), false)
	status := h.engine.Snapshot()
	assert.Equal(t, model.PhaseShortBreak, status.CurrentPhase)
	assert.Equal(t, 5, status.RemainingTime)
	assert.Equal(t, 1, status.WorkSessionsCompleted)
	assert.Equal(t, model.TimerStopped, status.TimerState)

	h.engine.Reset(t.Context(), true)
	status = h.engine.Snapshot()
	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Equal(t, 30, status.RemainingTime)
	assert.Zero(t, status.WorkSessionsCompleted)
	assert.Equal(t, status.PomodoroState, h.persistedState(t))
}

func TestEphemeralRulesFollowRunningWork(t *testing.T) {
	h := newHarness(t, testSettings())
	require.NoError(t, h.cache.Rebuild(t.Context()))
	assert.Empty(t, h.ephemeralCategories())

	require.NoError(t, h.engine.Start(t.Context()))
	assert.Equal(t, []string{"Social", "Games"}, h.ephemeralCategories())

	require.NoError(t, h.engine.Pause(t.Context()))
	assert.Empty(t, h.ephemeralCategories())

	require.NoError(t, h.engine.Start(t.Context()))
	assert.NotEmpty(t, h.ephemeralCategories())
	h.engine.Reset(t.Context(), false)
	assert.Empty(t, h.ephemeralCategories())

	h.completePhase(t)
	require.Equal(t, model.PhaseShortBreak, h.engine.Snapshot().CurrentPhase)
	assert.Empty(t, h.ephemeralCategories())
	require.NoError(t, h.engine.Start(t.Context()))
	assert.Empty(t, h.ephemeralCategories())
}

func TestEphemeralRulesRespectSetting(t *testing.T) {
	settings := testSettings()
	settings.BlockDuringWorkEnabled = false
	h := newHarness(t, settings)

	require.NoError(t, h.engine.Start(t.Context()))
	assert.Empty(t, h.ephemeralCategories())

	settings.BlockDuringWorkEnabled = true
	require.NoError(t, h.store.Set(t.Context(), map[string]any{storage.KeyPomodoroSettings: settings}))
	require.NoError(t, h.engine.ReloadSettings(t.Context()))
	assert.Equal(t, []string{"Social", "Games"}, h.ephemeralCategories())
}

func TestStatusNeverReportsNotifyWithoutCapability(t *testing.T) {
	h := newHarness(t, testSettings())
	assert.True(t, h.engine.Status(t.Context()).NotifyEnabled)

	h.notifier.set(false, nil)
	assert.False(t, h.engine.Status(t.Context()).NotifyEnabled)
	assert.False(t, h.engine.Settings().NotifyEnabled)

	h.notifier.set(true, nil)
	assert.False(t, h.engine.Status(t.Context()).NotifyEnabled)
}

func TestCapabilityErrorFailsClosed(t *testing.T) {
	h := newHarness(t, testSettings())
	h.notifier.set(true, errors.New("dbus unavailable"))

	assert.False(t, h.engine.Status(t.Context()).NotifyEnabled)
	assert.False(t, h.engine.UpdateNotificationSetting(t.Context(), true))

	raw, ok := h.store.Raw(storage.KeyPomodoroSettings)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"notifyEnabled":false`)
}

func TestLoadReconcilesStoredNotifyFlag(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]any{storage.KeyPomodoroSettings: testSettings()}))
	notifier := &fakeNotifier{granted: false}
	engine := New(store, nil, WithManualTick(), WithNotifier(notifier))

	require.NoError(t, engine.Load(t.Context()))
	assert.False(t, engine.Settings().NotifyEnabled)
	assert.Equal(t, 1, notifier.checks)
}

func TestUpdateNotificationSetting(t *testing.T) {
	h := newHarness(t, testSettings())

	assert.False(t, h.engine.UpdateNotificationSetting(t.Context(), false))
	assert.False(t, h.engine.Settings().NotifyEnabled)

	assert.True(t, h.engine.UpdateNotificationSetting(t.Context(), true))
	assert.True(t, h.engine.Settings().NotifyEnabled)

	h.notifier.set(false, nil)
	assert.False(t, h.engine.UpdateNotificationSetting(t.Context(), true))
	assert.False(t, h.engine.Settings().NotifyEnabled)
}

func TestTickPersistsEveryTenSeconds(t *testing.T) {
	h := newHarness(t, testSettings())
	require.NoError(t, h.engine.Start(t.Context()))
	before := h.store.SetCalls()

	h.ticks(t, 9)
	assert.Equal(t, before, h.store.SetCalls())
	assert.Equal(t, model.TimerRunning, h.persistedState(t).TimerState)
	assert.Equal(t, 30, h.persistedState(t).RemainingTime)

	h.ticks(t, 1)
	assert.Equal(t, before+1, h.store.SetCalls())
	assert.Equal(t, 20, h.persistedState(t).RemainingTime)
}

func TestTickSafetyPause(t *testing.T) {
	h := newHarness(t, testSettings())
	h.engine.mu.Lock()
	h.engine.state.TimerState = model.TimerRunning
	h.engine.state.RemainingTime = 0
	h.engine.mu.Unlock()

	h.engine.Tick(t.Context())

	status := h.engine.Snapshot()
	assert.Equal(t, model.TimerPaused, status.TimerState)
	assert.Equal(t, model.PhaseWork, status.CurrentPhase)
	assert.Zero(t, h.engine.AllTimeStats().TotalWorkSessionsCompleted)
}

func TestTickIgnoredWhenNotRunning(t *testing.T) {
	h := newHarness(t, testSettings())
	h.ticks(t, 3)
	assert.Equal(t, 30, h.engine.Snapshot().RemainingTime)
	assert.Equal(t, model.TimerStopped, h.engine.Snapshot().TimerState)
}

func TestReloadSettingsDurationChanges(t *testing.T) {
	h := newHarness(t, testSettings())
	settings := testSettings()

	settings.Durations[model.PhaseWork] = 40
	require.NoError(t, h.store.Set(t.Context(), map[string]any{storage.KeyPomodoroSettings: settings}))
	require.NoError(t, h.engine.ReloadSettings(t.Context()))
	assert.Equal(t, 40, h.engine.Snapshot().RemainingTime)

	require.NoError(t, h.engine.Start(t.Context()))
	h.ticks(t, 5)
	settings.Durations[model.PhaseWork] = 50
	require.NoError(t, h.store.Set(t.Context(), map[string]any{storage.KeyPomodoroSettings: settings}))
	require.NoError(t, h.engine.ReloadSettings(t.Context()))
	assert.Equal(t, 35, h.engine.Snapshot().RemainingTime)
	assert.Equal(t, 50, h.engine.Snapshot().Durations[model.PhaseWork])

	require.NoError(t, h.engine.Pause(t.Context()))
	settings.NotifyEnabled = false
	require.NoError(t, h.store.Set(t.Context(), map[string]any{storage.KeyPomodoroSettings: settings}))
	require.NoError(t, h.engine.ReloadSettings(t.Context()))
	assert.Equal(t, 35, h.engine.Snapshot().RemainingTime)

	settings.Durations[model.PhaseWork] = 60
	require.NoError(t, h.store.Set(t.Context(), map[string]any{storage.KeyPomodoroSettings: settings}))
	require.NoError(t, h.engine.ReloadSettings(t.Context()))
	assert.Equal(t, 60, h.engine.Snapshot().RemainingTime)
}

func TestReloadSettingsFailureKeepsSettings(t *testing.T) {
	h := newHarness(t, testSettings())
	h.store.FailGet(errors.New("locked"))

	require.Error(t, h.engine.ReloadSettings(t.Context()))
	assert.Equal(t, 30, h.engine.Settings().Durations[model.PhaseWork])
}

func TestStatsForDateDefaultsToToday(t *testing.T) {
	h := newHarness(t, testSettings())
	h.completePhase(t)

	for _, input := range []string{"", "19/10/2026", "2026-13-40"} {
		date, stats := h.engine.StatsForDate(input)
		assert.Equal(t, "2026-10-19", date, input)
		assert.Equal(t, 1, stats.WorkSessions, input)
	}
	_, stats := h.engine.StatsForDate("2026-10-18")
	assert.Zero(t, stats.WorkSessions)
}

func TestSubscribersReceiveTransitions(t *testing.T) {
	h := newHarness(t, testSettings())
	events := h.engine.Subscribe(16)

	require.NoError(t, h.engine.Start(t.Context()))
	h.engine.Tick(t.Context())

	var transitions []string
	var ticks int
	for len(events) > 0 {
		event := <-events
		switch event.Type {
		case EventTransition:
			transitions = append(transitions, event.Transition)
		case EventTick:
			ticks++
			assert.Equal(t, 29, event.Status.RemainingTime)
		}
	}
	assert.Equal(t, []string{"start"}, transitions)
	assert.Equal(t, 1, ticks)

	h.engine.Close(t.Context())
	_, open := <-events
	assert.False(t, open)
}

func TestInternalTickerCountsDown(t *testing.T) {
	h := newHarness(t, testSettings())
	engine := New(h.store, h.shared, WithTickInterval(5*time.Millisecond), WithClock(func() time.Time { return testNow }))
	require.NoError(t, engine.Load(t.Context()))
	defer engine.Close(context.Background())

	require.NoError(t, engine.Start(t.Context()))
	require.NoError(t, engine.Pause(t.Context()))
	require.NoError(t, engine.Start(t.Context()))
	assert.True(t, engine.Ticking())

	require.Eventually(t, func() bool {
		return engine.Snapshot().RemainingTime <= 27
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, engine.Pause(t.Context()))
	assert.False(t, engine.Ticking())
	paused := engine.Snapshot().RemainingTime
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, paused, engine.Snapshot().RemainingTime)
}

func TestBadgeFor(t *testing.T) {
	tests := []struct {
		name  string
		state model.PomodoroState
		want  Badge
	}{
		{"work minutes", model.PomodoroState{CurrentPhase: model.PhaseWork, RemainingTime: 1499, TimerState: model.TimerRunning}, Badge{Text: "24", Color: ColorWork}},
		{"short break under a minute", model.PomodoroState{CurrentPhase: model.PhaseShortBreak, RemainingTime: 59, TimerState: model.TimerRunning}, Badge{Text: "<1", Color: ColorShortBreak}},
		{"long break at zero", model.PomodoroState{CurrentPhase: model.PhaseLongBreak, RemainingTime: 0, TimerState: model.TimerRunning}, Badge{Text: "0", Color: ColorLongBreak}},
		{"paused", model.PomodoroState{CurrentPhase: model.PhaseWork, RemainingTime: 600, TimerState: model.TimerPaused}, Badge{Text: PausedBadge, Color: ColorIdle}},
		{"stopped", model.PomodoroState{CurrentPhase: model.PhaseWork, RemainingTime: 1500, TimerState: model.TimerStopped}, Badge{Color: ColorIdle}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BadgeFor(tt.state))
		})
	}
}
