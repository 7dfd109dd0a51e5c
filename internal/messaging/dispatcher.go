// Package messaging exposes the engine to UI surfaces: an action-addressed
// request/response dispatcher and the transports that carry it.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"focusflow/internal/core/model"
	"focusflow/internal/core/pomodoro"
	"focusflow/internal/core/rulecache"
	"focusflow/internal/host"
	"focusflow/internal/logging"
	"focusflow/internal/metrics"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrUnknownAction    = errors.New("unknown action")
	ErrMissingParameter = errors.New("missing parameter")
)

// Actions.
const (
	ActionCategoriesUpdated  = "categoriesUpdated"
	ActionRulesUpdated       = "rulesUpdated"
	ActionImportedData       = "importedData"
	ActionSettingsChanged    = "pomodoroSettingsChanged"
	ActionGetStatus          = "getPomodoroStatus"
	ActionStart              = "startPomodoro"
	ActionPause              = "pausePomodoro"
	ActionReset              = "resetPomodoro"
	ActionSkip               = "skipPomodoro"
	ActionChangePhase        = "changePomodoroPhase"
	ActionUpdateNotification = "updatePomodoroNotificationSetting"
	ActionGetStatsForDate    = "getPomodoroStatsForDate"
	ActionGetAllTimeStats    = "getAllTimePomodoroStats"
	ActionGetRuleCache       = "getRuleCache"
	ActionHostEvent          = "hostEvent"
	ActionStatusUpdate       = "pomodoroStatusUpdate"
)

// Engine is the part of the Pomodoro engine the surface drives.
type Engine interface {
	Load(ctx context.Context) error
	ReloadSettings(ctx context.Context) error
	Status(ctx context.Context) pomodoro.Status
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Reset(ctx context.Context, resetCycle bool)
	Skip(ctx context.Context) error
	ChangeToNextPhase(ctx context.Context)
	UpdateNotificationSetting(ctx context.Context, enabled bool) bool
	StatsForDate(date string) (string, model.DailyPomodoroStat)
	AllTimeStats() model.AllTimePomodoroStat
}

// ConfigLoader reloads categories, assignments and tracking settings.
// Load also replaces tracking aggregates and focus statistics, which an
// import rewrites in the store.
type ConfigLoader interface {
	LoadConfig(ctx context.Context) error
	Load(ctx context.Context) error
}

// RuleCache is rebuilt after configuration changes.
type RuleCache interface {
	Rebuild(ctx context.Context) error
	Snapshot() *rulecache.Snapshot
}

// HostReporter accepts state reports from a browser companion.
type HostReporter interface {
	Apply(report host.Report, queue host.Enqueuer) (bool, error)
}

// Result is the acknowledgement returned by mutating actions.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	ActualState *bool  `json:"actualState,omitempty"`
	Date        string `json:"date,omitempty"`
	Stats       any    `json:"stats,omitempty"`
	Queued      *bool  `json:"queued,omitempty"`
}

// RuleCacheResult reports the current snapshot.
type RuleCacheResult struct {
	Success bool `json:"success"`
	*rulecache.Snapshot
}

type handlerFunc func(ctx context.Context, action string, request gjson.Result, raw []byte) any

// Dispatcher routes requests by their "action" field.
type Dispatcher struct {
	engine   Engine
	config   ConfigLoader
	cache    RuleCache
	reporter HostReporter
	queue    host.Enqueuer
	recorder metrics.Recorder
	log      *logrus.Entry
	handlers map[string]handlerFunc
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHostReporter accepts hostEvent messages and enqueues their events.
func WithHostReporter(reporter HostReporter, queue host.Enqueuer) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.reporter = reporter
		dispatcher.queue = queue
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder metrics.Recorder) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		if recorder != nil {
			dispatcher.recorder = recorder
		}
	}
}

// NewDispatcher creates a dispatcher over the engine components.
func NewDispatcher(engine Engine, config ConfigLoader, cache RuleCache, options ...DispatcherOption) *Dispatcher {
	dispatcher := &Dispatcher{
		engine:   engine,
		config:   config,
		cache:    cache,
		recorder: metrics.NoopRecorder{},
		log:      logging.NewLogger("messaging"),
	}
	for _, option := range options {
		option(dispatcher)
	}

	dispatcher.handlers = map[string]handlerFunc{
		ActionCategoriesUpdated:  dispatcher.configChanged,
		ActionRulesUpdated:       dispatcher.configChanged,
		ActionImportedData:       dispatcher.configChanged,
		ActionSettingsChanged:    dispatcher.settingsChanged,
		ActionGetStatus:          dispatcher.status,
		ActionStart:              dispatcher.start,
		ActionPause:              dispatcher.pause,
		ActionReset:              dispatcher.reset,
		ActionSkip:               dispatcher.skip,
		ActionChangePhase:        dispatcher.changePhase,
		ActionUpdateNotification: dispatcher.updateNotification,
		ActionGetStatsForDate:    dispatcher.statsForDate,
		ActionGetAllTimeStats:    dispatcher.allTimeStats,
		ActionGetRuleCache:       dispatcher.ruleCache,
		ActionHostEvent:          dispatcher.hostEvent,
	}
	return dispatcher
}

// Dispatch handles one JSON request. The error is non-nil only when the
// request cannot be routed. Failures of a routed action are reported in the
// response as {success:false}.
func (dispatcher *Dispatcher) Dispatch(ctx context.Context, raw []byte) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformedRequest
	}
	request := gjson.ParseBytes(raw)
	if !request.IsObject() {
		return nil, ErrMalformedRequest
	}
	action := request.Get("action").String()
	handler, ok := dispatcher.handlers[action]
	if !ok {
		dispatcher.recorder.MessageHandled("unknown", false)
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	response := handler(ctx, action, request, raw)
	succeeded := true
	if result, isResult := response.(Result); isResult {
		succeeded = result.Success
	}
	dispatcher.recorder.MessageHandled(action, succeeded)
	dispatcher.log.WithFields(logrus.Fields{"action": action, "success": succeeded}).Debug("Message handled")
	return response, nil
}

// Reply encodes a dispatch outcome for transports without status codes.
func Reply(response any, err error) []byte {
	if err != nil {
		response = Result{Success: false, Error: err.Error()}
	}
	encoded, marshalErr := json.Marshal(response)
	if marshalErr != nil {
		encoded, _ = json.Marshal(Result{Success: false, Error: marshalErr.Error()})
	}
	return encoded
}

func (dispatcher *Dispatcher) configChanged(ctx context.Context, action string, _ gjson.Result, _ []byte) any {
	dispatcher.log.WithField("action", action).Info("Reloading config data")
	result := Result{Success: true, Message: "Config data and cache reloaded."}

	reload := dispatcher.config.LoadConfig
	if action == ActionImportedData {
		reload = dispatcher.config.Load
	}
	if err := reload(ctx); err != nil {
		dispatcher.log.WithError(err).Error("Failed to reload config data")
		result = Result{Success: false, Message: "Error reloading config data."}
	}
	if action == ActionImportedData {
		if err := dispatcher.engine.Load(ctx); err != nil {
			dispatcher.log.WithError(err).Error("Failed to reload Pomodoro state after import")
			result = Result{Success: false, Message: "Error reloading Pomodoro state."}
		}
	}
	if err := dispatcher.cache.Rebuild(ctx); err != nil {
		dispatcher.log.WithError(err).Warn("Rule cache rebuilt empty")
	}
	return result
}

func (dispatcher *Dispatcher) settingsChanged(ctx context.Context, _ string, _ gjson.Result, _ []byte) any {
	if err := dispatcher.engine.ReloadSettings(ctx); err != nil {
		dispatcher.log.WithError(err).Error("Failed to reload Pomodoro settings")
		return Result{Success: false, Message: "Error reloading pomodoro settings in background."}
	}
	return Result{Success: true, Message: "Background acknowledged and reloaded Pomodoro settings."}
}

func (dispatcher *Dispatcher) status(ctx context.Context, _ string, _ gjson.Result, _ []byte) any {
	return dispatcher.engine.Status(ctx)
}

func (dispatcher *Dispatcher) start(ctx context.Context, _ string, _ gjson.Result, _ []byte) any {
	return transitionResult(dispatcher.engine.Start(ctx), pomodoro.ErrAlreadyRunning)
}

func (dispatcher *Dispatcher) pause(ctx context.Context, _ string, _ gjson.Result, _ []byte) any {
	return transitionResult(dispatcher.engine.Pause(ctx), pomodoro.ErrNotRunning)
}

func (dispatcher *Dispatcher) reset(ctx context.Context, _ string, request gjson.Result, _ []byte) any {
	dispatcher.engine.Reset(ctx, request.Get("resetCycle").Bool())
	return Result{Success: true}
}

func (dispatcher *Dispatcher) skip(ctx context.Context, _ string, _ gjson.Result, _ []byte) any {
	return transitionResult(dispatcher.engine.Skip(ctx), nil)
}

func (dispatcher *Dispatcher) changePhase(ctx context.Context, _ string, _ gjson.Result, _ []byte) any {
	dispatcher.engine.ChangeToNextPhase(ctx)
	return Result{Success: true}
}

func (dispatcher *Dispatcher) updateNotification(ctx context.Context, _ string, request gjson.Result, _ []byte) any {
	enabled := request.Get("enabled")
	if !enabled.Exists() {
		return Result{Success: false, Error: fmt.Sprintf("%s: 'enabled'", ErrMissingParameter)}
	}
	actual := dispatcher.engine.UpdateNotificationSetting(ctx, enabled.Bool())
	return Result{Success: true, ActualState: &actual}
}

func (dispatcher *Dispatcher) statsForDate(_ context.Context, _ string, request gjson.Result, _ []byte) any {
	date, stats := dispatcher.engine.StatsForDate(request.Get("date").String())
	return Result{Success: true, Date: date, Stats: stats}
}

func (dispatcher *Dispatcher) allTimeStats(_ context.Context, _ string, _ gjson.Result, _ []byte) any {
	return Result{Success: true, Stats: dispatcher.engine.AllTimeStats()}
}

func (dispatcher *Dispatcher) ruleCache(_ context.Context, _ string, _ gjson.Result, _ []byte) any {
	return RuleCacheResult{Success: true, Snapshot: dispatcher.cache.Snapshot()}
}

func (dispatcher *Dispatcher) hostEvent(_ context.Context, _ string, _ gjson.Result, raw []byte) any {
	if dispatcher.reporter == nil {
		return Result{Success: false, Error: "host events are not accepted by the configured host source"}
	}
	var report host.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("decode host event: %v", err)}
	}
	queued, err := dispatcher.reporter.Apply(report, dispatcher.queue)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Queued: &queued}
}

// transitionResult maps a transition error to a response. noop is the
// guard error that counts as success on retry.
func transitionResult(err, noop error) Result {
	if err == nil || (noop != nil && errors.Is(err, noop)) {
		return Result{Success: true}
	}
	return Result{Success: false, Message: err.Error()}
}
