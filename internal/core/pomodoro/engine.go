// Package pomodoro runs the focus timer: a state machine over the Work,
// Short Break and Long Break phases, each stopped, running or paused.
//
// While running, a one-second ticker counts down the current phase. Phase
// completion records statistics, sends a notification, moves to the next
// phase at stopped and refreshes the ephemeral category blocks the rule cache
// carries during a running Work phase.
package pomodoro

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/logging"
	"focusflow/internal/metrics"
	"focusflow/internal/storage"

	"github.com/sirupsen/logrus"
)

var (
	// ErrSkipWork is returned when skip is requested during a Work phase.
	ErrSkipWork = errors.New("work phase cannot be skipped")
	// ErrNotRunning is returned by Pause when the timer is not running.
	ErrNotRunning = errors.New("timer is not running")
	// ErrAlreadyRunning is returned by Start when the timer is running.
	ErrAlreadyRunning = errors.New("timer is already running")
)

// persistEvery bounds state writes while the countdown runs.
const persistEvery = 10

// StatsRecorder stores completed work sessions.
type StatsRecorder interface {
	RecordWorkSession(ctx context.Context, date string, seconds int) (model.DailyPomodoroStat, model.AllTimePomodoroStat, error)
	StatsForDate(date string) model.DailyPomodoroStat
	AllTimeStats() model.AllTimePomodoroStat
}

// RuleSink receives the ephemeral blocking rules and republishes the rule
// cache.
type RuleSink interface {
	SetEphemeral(rules []model.Rule)
	Rebuild(ctx context.Context) error
}

// Engine is the focus timer state machine.
type Engine struct {
	store        storage.Store
	stats        StatsRecorder
	rules        RuleSink
	notifier     Notifier
	log          *logrus.Entry
	recorder     metrics.Recorder
	now          func() time.Time
	tickInterval time.Duration
	manualTick   bool

	mu       sync.Mutex
	settings model.PomodoroSettings
	state    model.PomodoroState
	stopCh   chan struct{}
	events   []chan Event
	closed   bool

	persistMu sync.Mutex
	rulesMu   sync.Mutex
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier sets the notification capability and sender.
func WithNotifier(notifier Notifier) Option {
	return func(engine *Engine) {
		engine.notifier = notifier
	}
}

// WithRules connects the rule cache.
func WithRules(rules RuleSink) Option {
	return func(engine *Engine) {
		engine.rules = rules
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(engine *Engine) {
		if recorder != nil {
			engine.recorder = recorder
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(engine *Engine) {
		if now != nil {
			engine.now = now
		}
	}
}

// WithTickInterval changes the countdown cadence. One tick is always one
// second of phase time.
func WithTickInterval(interval time.Duration) Option {
	return func(engine *Engine) {
		if interval > 0 {
			engine.tickInterval = interval
		}
	}
}

// WithManualTick disables the internal ticker; the caller drives Tick.
func WithManualTick() Option {
	return func(engine *Engine) {
		engine.manualTick = true
	}
}

// New creates an engine with default settings at a stopped Work phase.
// Call Load to restore persisted state.
func New(store storage.Store, stats StatsRecorder, options ...Option) *Engine {
	engine := &Engine{
		store:        store,
		stats:        stats,
		log:          logging.NewLogger("pomodoro"),
		recorder:     metrics.NoopRecorder{},
		now:          time.Now,
		tickInterval: time.Second,
		settings:     model.DefaultPomodoroSettings(),
	}
	for _, option := range options {
		option(engine)
	}
	engine.state = model.InitialPomodoroState(engine.settings)
	return engine
}

// persistedState mirrors model.PomodoroState with optional fields so missing
// values can be told apart from zero.
type persistedState struct {
	CurrentPhase          model.Phase      `json:"currentPhase"`
	RemainingTime         *int             `json:"remainingTime"`
	WorkSessionsCompleted int              `json:"workSessionsCompleted"`
	TimerState            model.TimerState `json:"timerState"`
}

// Load restores settings and state from the store. A persisted running
// timer comes back paused. On a read failure the engine keeps defaults and
// the error is returned.
func (engine *Engine) Load(ctx context.Context) error {
	values, err := engine.store.Get(ctx, storage.KeyPomodoroState, storage.KeyPomodoroSettings)
	if err != nil {
		engine.mu.Lock()
		engine.stopTickerLocked()
		engine.settings = model.DefaultPomodoroSettings()
		engine.state = model.InitialPomodoroState(engine.settings)
		engine.mu.Unlock()
		engine.log.WithError(err).Error("Error loading timer state, using defaults")
		engine.publish(EventSettings, "")
		return fmt.Errorf("load pomodoro state: %w", err)
	}

	settings := model.DefaultPomodoroSettings()
	if _, err := storage.Decode(values, storage.KeyPomodoroSettings, &settings); err != nil {
		engine.log.WithError(err).Warn("Ignoring stored timer settings")
		settings = model.DefaultPomodoroSettings()
	}
	settings.Normalize()

	state := model.InitialPomodoroState(settings)
	var persisted persistedState
	found, err := storage.Decode(values, storage.KeyPomodoroState, &persisted)
	if err != nil {
		engine.log.WithError(err).Warn("Ignoring stored timer state")
	} else if found {
		state = restoreState(persisted, settings)
	}

	engine.mu.Lock()
	engine.stopTickerLocked()
	engine.settings = settings
	engine.state = state
	engine.mu.Unlock()

	engine.log.WithFields(logrus.Fields{
		"phase":     state.CurrentPhase,
		"remaining": state.RemainingTime,
		"sessions":  state.WorkSessionsCompleted,
		"timer":     state.TimerState,
	}).Info("Timer state loaded")

	engine.reconcileNotify(ctx)
	if engine.rules != nil {
		engine.rules.SetEphemeral(engine.desiredEphemeral())
	}
	engine.recorder.PomodoroRemaining(state.RemainingTime)
	engine.publish(EventSettings, "")
	return nil
}

func restoreState(persisted persistedState, settings model.PomodoroSettings) model.PomodoroState {
	phase := persisted.CurrentPhase
	if !phase.Valid() {
		phase = model.PhaseWork
	}
	duration := settings.Durations.Of(phase)
	remaining := duration
	if persisted.RemainingTime != nil && *persisted.RemainingTime > 0 {
		remaining = min(*persisted.RemainingTime, duration)
	}
	timer := persisted.TimerState
	switch {
	case timer == model.TimerRunning:
		timer = model.TimerPaused
	case !timer.Valid():
		timer = model.TimerStopped
	}
	return model.PomodoroState{
		CurrentPhase:          phase,
		RemainingTime:         remaining,
		WorkSessionsCompleted: max(persisted.WorkSessionsCompleted, 0),
		TimerState:            timer,
	}
}

// Subscribe registers a new observer channel. Slow observers miss events
// rather than block the engine.
func (engine *Engine) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.closed {
		close(ch)
		return ch
	}
	engine.events = append(engine.events, ch)
	return ch
}

// Close stops the ticker, persists the current state and closes observers.
func (engine *Engine) Close(ctx context.Context) {
	engine.mu.Lock()
	if engine.closed {
		engine.mu.Unlock()
		return
	}
	engine.stopTickerLocked()
	engine.closed = true
	events := engine.events
	engine.events = nil
	engine.mu.Unlock()

	engine.persist(ctx)
	for _, ch := range events {
		close(ch)
	}
}

// Start runs the countdown from stopped or paused.
func (engine *Engine) Start(ctx context.Context) error {
	engine.mu.Lock()
	if engine.state.TimerState == model.TimerRunning {
		engine.mu.Unlock()
		return ErrAlreadyRunning
	}
	engine.state.TimerState = model.TimerRunning
	engine.stopTickerLocked()
	engine.startTickerLocked(ctx)
	engine.mu.Unlock()

	engine.log.Info("Timer started")
	engine.afterTransition(ctx, "start")
	return nil
}

// Pause freezes a running countdown and lifts work-phase blocking.
func (engine *Engine) Pause(ctx context.Context) error {
	engine.mu.Lock()
	if engine.state.TimerState != model.TimerRunning {
		engine.mu.Unlock()
		return ErrNotRunning
	}
	engine.stopTickerLocked()
	engine.state.TimerState = model.TimerPaused
	engine.mu.Unlock()

	engine.log.Info("Timer paused")
	engine.afterTransition(ctx, "pause")
	return nil
}

// Reset stops the timer and refills the current phase. With resetCycle the
// timer returns to Work and the session count to zero.
func (engine *Engine) Reset(ctx context.Context, resetCycle bool) {
	engine.mu.Lock()
	engine.stopTickerLocked()
	if resetCycle {
		engine.state.CurrentPhase = model.PhaseWork
		engine.state.WorkSessionsCompleted = 0
	}
	engine.state.RemainingTime = engine.settings.Durations.Of(engine.state.CurrentPhase)
	engine.state.TimerState = model.TimerStopped
	sessions := engine.state.WorkSessionsCompleted
	engine.mu.Unlock()

	engine.log.WithFields(logrus.Fields{"reset_cycle": resetCycle, "sessions": sessions}).Info("Timer reset")
	engine.afterTransition(ctx, "reset")
}

// Skip ends the current break as if it had completed, without notifying.
func (engine *Engine) Skip(ctx context.Context) error {
	engine.mu.Lock()
	if !engine.state.CurrentPhase.IsBreak() {
		phase := engine.state.CurrentPhase
		engine.mu.Unlock()
		engine.log.WithField("phase", phase).Info("Refusing to skip a work phase")
		return ErrSkipWork
	}
	engine.stopTickerLocked()
	skipped := engine.state.CurrentPhase
	sessions := engine.state.WorkSessionsCompleted
	if skipped == model.PhaseLongBreak {
		sessions = 0
	}
	engine.setupPhaseLocked(model.PhaseWork, sessions)
	engine.mu.Unlock()

	engine.log.WithField("phase", skipped).Info("Skipped break")
	engine.afterTransition(ctx, "skip")
	return nil
}

// ChangeToNextPhase moves one step along Work, Short Break, Long Break and
// back to Work without recording a session. Leaving a Long Break resets the
// session count.
func (engine *Engine) ChangeToNextPhase(ctx context.Context) {
	engine.mu.Lock()
	engine.stopTickerLocked()
	from := engine.state.CurrentPhase
	sessions := engine.state.WorkSessionsCompleted
	var next model.Phase
	switch from {
	case model.PhaseWork:
		next = model.PhaseShortBreak
	case model.PhaseShortBreak:
		next = model.PhaseLongBreak
	case model.PhaseLongBreak:
		next = model.PhaseWork
		sessions = 0
	default:
		// Load and every transition keep the phase valid.
		engine.log.WithField("phase", from).Warn("Unknown phase, falling back to Work")
		next = model.PhaseWork
		sessions = 0
	}
	engine.setupPhaseLocked(next, sessions)
	engine.mu.Unlock()

	engine.log.WithFields(logrus.Fields{"from": from, "to": next, "sessions": sessions}).Info("Phase changed manually")
	engine.afterTransition(ctx, "advance")
}

// Tick advances the countdown by one second. The internal ticker calls it
// while the timer runs; with WithManualTick the caller does.
func (engine *Engine) Tick(ctx context.Context) {
	engine.tick(ctx, nil)
}

// tick ignores ticks from a ticker that has since been replaced.
func (engine *Engine) tick(ctx context.Context, generation chan struct{}) {
	engine.mu.Lock()
	if generation != nil && engine.stopCh != generation {
		engine.mu.Unlock()
		return
	}

	if engine.state.TimerState != model.TimerRunning || engine.state.RemainingTime <= 0 {
		engine.stopTickerLocked()
		if engine.state.TimerState != model.TimerRunning {
			engine.mu.Unlock()
			return
		}
		engine.state.TimerState = model.TimerPaused
		engine.mu.Unlock()
		engine.log.Warn("Timer running without time left, pausing")
		engine.afterTransition(ctx, "safety_pause")
		return
	}

	engine.state.RemainingTime--
	remaining := engine.state.RemainingTime
	if remaining > 0 {
		engine.mu.Unlock()
		engine.recorder.PomodoroRemaining(remaining)
		engine.publish(EventTick, "")
		if remaining%persistEvery == 0 {
			engine.persist(ctx)
		}
		return
	}

	engine.stopTickerLocked()
	finished := engine.state.CurrentPhase
	sessions := engine.state.WorkSessionsCompleted
	workSeconds := 0
	var next model.Phase
	if finished == model.PhaseWork {
		sessions++
		workSeconds = engine.settings.Durations.Of(model.PhaseWork)
		if sessions%engine.settings.SessionsBeforeLongBreak == 0 {
			next = model.PhaseLongBreak
		} else {
			next = model.PhaseShortBreak
		}
	} else {
		next = model.PhaseWork
		if finished == model.PhaseLongBreak {
			sessions = 0
		}
	}
	engine.setupPhaseLocked(next, sessions)
	engine.mu.Unlock()

	engine.log.WithFields(logrus.Fields{"finished": finished, "next": next, "sessions": sessions}).Info("Phase complete")
	if workSeconds > 0 {
		engine.recordWorkSession(ctx, workSeconds)
	}
	engine.notifyCompletion(ctx, finished, next)
	engine.afterTransition(ctx, "complete")
}

func (engine *Engine) recordWorkSession(ctx context.Context, seconds int) {
	if engine.stats == nil {
		return
	}
	date := engine.now().Format(model.DateLayout)
	daily, allTime, err := engine.stats.RecordWorkSession(ctx, date, seconds)
	entry := engine.log.WithFields(logrus.Fields{
		"date":           date,
		"seconds":        seconds,
		"today_sessions": daily.WorkSessions,
		"total_sessions": allTime.TotalWorkSessionsCompleted,
	})
	if err != nil {
		entry.WithError(err).Error("Failed to save work session stats")
		return
	}
	entry.Info("Recorded work session")
}

// ReloadSettings rereads settings from the store. A stopped or paused timer
// picks up a changed duration of its phase at once; a running countdown is
// left alone until the next phase boundary.
func (engine *Engine) ReloadSettings(ctx context.Context) error {
	settings := model.DefaultPomodoroSettings()
	found, err := storage.GetInto(ctx, engine.store, storage.KeyPomodoroSettings, &settings)
	if err != nil {
		engine.log.WithError(err).Error("Error reloading timer settings")
		return fmt.Errorf("reload pomodoro settings: %w", err)
	}
	if !found {
		engine.log.Warn("No stored timer settings, using defaults")
		settings = model.DefaultPomodoroSettings()
	}
	settings.Normalize()

	engine.mu.Lock()
	phase := engine.state.CurrentPhase
	oldDuration := engine.settings.Durations.Of(phase)
	engine.settings = settings
	newDuration := settings.Durations.Of(phase)
	switch engine.state.TimerState {
	case model.TimerStopped:
		engine.state.RemainingTime = newDuration
	case model.TimerPaused:
		if newDuration != oldDuration {
			engine.state.RemainingTime = newDuration
		}
	}
	engine.mu.Unlock()

	engine.log.WithFields(logrus.Fields{
		"durations": settings.Durations,
		"sessions":  settings.SessionsBeforeLongBreak,
		"notify":    settings.NotifyEnabled,
	}).Info("Reloaded timer settings")

	engine.reconcileNotify(ctx)
	engine.publish(EventSettings, "")
	engine.syncRules(ctx)
	return nil
}

// UpdateNotificationSetting applies the user's notification preference. An
// enable request only sticks when the capability is granted. It returns the
// resulting setting.
func (engine *Engine) UpdateNotificationSetting(ctx context.Context, enabled bool) bool {
	actual := enabled
	if enabled && !engine.capable(ctx) {
		engine.log.Warn("Notifications requested but permission is missing, keeping them disabled")
		actual = false
	}

	engine.mu.Lock()
	changed := engine.settings.NotifyEnabled != actual
	engine.settings.NotifyEnabled = actual
	engine.mu.Unlock()

	if changed {
		engine.persist(ctx)
	}
	engine.publish(EventSettings, "")
	engine.log.WithFields(logrus.Fields{"requested": enabled, "actual": actual}).Info("Notification preference updated")
	return actual
}

// Status returns the full status after reconciling the notification
// preference with the platform capability.
func (engine *Engine) Status(ctx context.Context) Status {
	granted := engine.reconcileNotify(ctx)
	status := engine.Snapshot()
	status.NotifyEnabled = status.NotifyEnabled && granted
	return status
}

// Snapshot returns the status without a capability check.
func (engine *Engine) Snapshot() Status {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.statusLocked()
}

// Settings returns a copy of the current settings.
func (engine *Engine) Settings() model.PomodoroSettings {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.settings.Clone()
}

// Ticking reports whether the internal ticker is active.
func (engine *Engine) Ticking() bool {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.stopCh != nil
}

// StatsForDate returns the stats of date (YYYY-MM-DD). A missing or
// malformed date means today. The resolved date is returned with the stats.
func (engine *Engine) StatsForDate(date string) (string, model.DailyPomodoroStat) {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		date = engine.now().Format(model.DateLayout)
	}
	if engine.stats == nil {
		return date, model.DailyPomodoroStat{}
	}
	return date, engine.stats.StatsForDate(date)
}

// AllTimeStats returns the all-time totals.
func (engine *Engine) AllTimeStats() model.AllTimePomodoroStat {
	if engine.stats == nil {
		return model.AllTimePomodoroStat{}
	}
	return engine.stats.AllTimeStats()
}

func (engine *Engine) statusLocked() Status {
	return Status{
		PomodoroState: engine.state,
		Durations:     engine.settings.Durations.Clone(),
		NotifyEnabled: engine.settings.NotifyEnabled,
	}
}

func (engine *Engine) setupPhaseLocked(phase model.Phase, sessions int) {
	engine.state = model.PomodoroState{
		CurrentPhase:          phase,
		RemainingTime:         engine.settings.Durations.Of(phase),
		WorkSessionsCompleted: sessions,
		TimerState:            model.TimerStopped,
	}
}

// afterTransition runs the side effects shared by every transition.
func (engine *Engine) afterTransition(ctx context.Context, transition string) {
	engine.recorder.PomodoroTransition(transition)
	engine.recorder.PomodoroRemaining(engine.Snapshot().RemainingTime)
	engine.publish(EventTransition, transition)
	engine.persist(ctx)
	engine.syncRules(ctx)
}

// persist writes the current state and settings. Writes are serialized and
// each one takes a fresh snapshot, so the last write always carries the
// latest state.
func (engine *Engine) persist(ctx context.Context) {
	engine.persistMu.Lock()
	defer engine.persistMu.Unlock()

	engine.mu.Lock()
	state := engine.state
	settings := engine.settings.Clone()
	engine.mu.Unlock()

	err := engine.store.Set(ctx, map[string]any{
		storage.KeyPomodoroState:    state,
		storage.KeyPomodoroSettings: settings,
	})
	if err != nil {
		engine.log.WithError(err).Error("Error saving timer state and settings")
		return
	}
	engine.log.Debug("Saved timer state and settings")
}

// desiredEphemeral returns the category blocks that belong in the rule cache
// right now: only during a running Work phase with blocking enabled.
func (engine *Engine) desiredEphemeral() []model.Rule {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.state.CurrentPhase != model.PhaseWork ||
		engine.state.TimerState != model.TimerRunning ||
		!engine.settings.BlockDuringWorkEnabled {
		return nil
	}
	rules := make([]model.Rule, 0, len(engine.settings.BlockedCategoriesDuringWork))
	for _, category := range engine.settings.BlockedCategoriesDuringWork {
		if category != "" {
			rules = append(rules, model.EphemeralBlock(category))
		}
	}
	return rules
}

// syncRules hands the current ephemeral rules to the cache and rebuilds it.
// Each call reads the latest state, so the last rebuild matches it.
func (engine *Engine) syncRules(ctx context.Context) {
	if engine.rules == nil {
		return
	}
	engine.rulesMu.Lock()
	defer engine.rulesMu.Unlock()
	engine.rules.SetEphemeral(engine.desiredEphemeral())
	if err := engine.rules.Rebuild(ctx); err != nil {
		engine.log.WithError(err).Warn("Rule cache rebuild failed after timer transition")
	}
}

func (engine *Engine) startTickerLocked(ctx context.Context) {
	if engine.manualTick || engine.closed {
		return
	}
	stopCh := make(chan struct{})
	engine.stopCh = stopCh
	go engine.run(context.WithoutCancel(ctx), stopCh)
}

// stopTickerLocked is safe to call when no ticker runs.
func (engine *Engine) stopTickerLocked() {
	if engine.stopCh == nil {
		return
	}
	close(engine.stopCh)
	engine.stopCh = nil
}

func (engine *Engine) run(ctx context.Context, stopCh chan struct{}) {
	ticker := time.NewTicker(engine.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			engine.tick(ctx, stopCh)
		}
	}
}

func (engine *Engine) publish(eventType EventType, transition string) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	event := Event{
		Type:       eventType,
		Transition: transition,
		Status:     engine.statusLocked(),
		At:         engine.now(),
	}
	for _, ch := range engine.events {
		select {
		case ch <- event:
		default:
		}
	}
}
