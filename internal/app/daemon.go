// Package app assembles the engine components into the background daemon
// and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"focusflow/internal/config"
	"focusflow/internal/core/eventqueue"
	"focusflow/internal/core/model"
	"focusflow/internal/core/pomodoro"
	"focusflow/internal/core/rulecache"
	"focusflow/internal/core/state"
	"focusflow/internal/core/tracking"
	"focusflow/internal/host"
	"focusflow/internal/logging"
	"focusflow/internal/messaging"
	"focusflow/internal/metrics"
	"focusflow/internal/platform"
	"focusflow/internal/scheduler"
	"focusflow/internal/storage"

	"github.com/sirupsen/logrus"
)

const idlePollInterval = 5 * time.Second

// Daemon is the running engine.
type Daemon struct {
	cfg     config.Config
	cfgPath string
	log     *logrus.Entry

	store     storage.Store
	collector *metrics.Collector
	shared    *state.Shared
	cache     *rulecache.Cache
	notifier  *routedNotifier
	engine    *pomodoro.Engine

	tracker    *tracking.Tracker
	serializer *eventqueue.Serializer
	scheduler  *scheduler.Scheduler
	reporter   *host.ReportedSource
	cdp        *host.CDPSource
	idle       *host.IdleWatcher

	dispatcher *messaging.Dispatcher
	hub        *messaging.Hub
	server     *messaging.Server
	nats       *messaging.NATSResponder
	watcher    *config.Watcher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithStore replaces the SQLite store.
func WithStore(store storage.Store) Option {
	return func(daemon *Daemon) {
		daemon.store = store
	}
}

// New builds every component. Nothing runs until Start.
func New(cfg config.Config, cfgPath string, options ...Option) (*Daemon, error) {
	daemon := &Daemon{
		cfg:       cfg,
		cfgPath:   cfgPath,
		log:       logging.NewLogger("system"),
		collector: metrics.NewCollector(),
	}
	for _, option := range options {
		option(daemon)
	}

	if daemon.store == nil {
		store, err := storage.OpenSQLite(cfg.Database)
		if err != nil {
			return nil, err
		}
		daemon.store = store
	}

	daemon.shared = state.New(daemon.store, defaultsFrom(cfg))
	daemon.cache = rulecache.New(daemon.store,
		rulecache.WithRecorder(daemon.collector),
		rulecache.WithAssignmentSink(daemon.shared),
	)
	daemon.notifier = &routedNotifier{desktop: platform.NewDesktopNotifier(config.AppName)}
	daemon.engine = pomodoro.New(daemon.store, daemon.shared,
		pomodoro.WithNotifier(daemon.notifier),
		pomodoro.WithRules(daemon.cache),
		pomodoro.WithRecorder(daemon.collector),
	)

	osIdle := platform.NewIdleProvider()
	var source tracking.Host
	var idle tracking.IdleChecker
	switch cfg.Host.Source {
	case config.HostCDP:
		daemon.cdp = host.NewCDPSource(cfg.Host.CDPURL, cfg.Host.PollInterval)
		source = daemon.cdp
		idle = osIdle
	default:
		daemon.reporter = host.NewReportedSource()
		source = daemon.reporter
		idle = host.FirstSupported(daemon.reporter, osIdle)
	}
	daemon.tracker = tracking.New(daemon.shared, source, idle)
	daemon.serializer = eventqueue.New(daemon.tracker, eventqueue.WithRecorder(daemon.collector))
	daemon.idle = host.NewIdleWatcher(osIdle, daemon.idleThreshold, idlePollInterval, daemon.serializer)

	sched, err := scheduler.New(daemon.serializer, daemon.shared, scheduler.LoggingEnforcer{}, periodsFrom(cfg))
	if err != nil {
		_ = daemon.closeStore()
		return nil, err
	}
	daemon.scheduler = sched

	dispatcherOptions := []messaging.DispatcherOption{messaging.WithRecorder(daemon.collector)}
	if daemon.reporter != nil {
		dispatcherOptions = append(dispatcherOptions, messaging.WithHostReporter(daemon.reporter, daemon.serializer))
	}
	daemon.dispatcher = messaging.NewDispatcher(daemon.engine, daemon.shared, daemon.cache, dispatcherOptions...)
	origins := messaging.NewOriginPolicy(cfg.AllowedOrigins)
	daemon.hub = messaging.NewHub(daemon.engine.Snapshot, origins)
	daemon.server = messaging.NewServer(cfg.Listen, daemon.dispatcher, daemon.hub, daemon.collector.Handler(),
		messaging.WithOriginPolicy(origins),
	)
	return daemon, nil
}

// Start loads persisted state and starts every driver.
func (daemon *Daemon) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	daemon.cancel = cancel

	if err := daemon.shared.Load(runCtx); err != nil {
		daemon.log.WithError(err).Warn("Shared state loaded with defaults")
	}
	if err := daemon.engine.Load(runCtx); err != nil {
		daemon.log.WithError(err).Warn("Pomodoro state loaded with defaults")
	}
	if err := daemon.cache.Rebuild(runCtx); err != nil {
		daemon.log.WithError(err).Warn("Rule cache starts empty")
	}

	if err := daemon.scheduler.EnsureWakeups(); err != nil {
		cancel()
		return err
	}
	daemon.scheduler.Start(runCtx)
	daemon.serializer.Start(runCtx)

	daemon.goRun(func() { daemon.hub.Run(runCtx, daemon.engine.Subscribe(16)) })
	daemon.goRun(func() { daemon.idle.Run(runCtx) })
	if daemon.cdp != nil {
		daemon.goRun(func() { daemon.cdp.Run(runCtx, daemon.serializer) })
	}

	if daemon.cfgPath != "" {
		watcher, err := config.NewWatcher(daemon.cfgPath, daemon.applyConfig)
		if err == nil {
			err = watcher.Start(runCtx)
		}
		if err != nil {
			daemon.log.WithError(err).Warn("Config hot reload disabled")
		} else {
			daemon.watcher = watcher
		}
	}

	if err := daemon.server.Start(); err != nil {
		cancel()
		return err
	}

	if daemon.cfg.NATS.URL != "" {
		responder, err := messaging.NewNATSResponder(daemon.cfg.NATS.URL, daemon.cfg.NATS.Subject, daemon.dispatcher)
		if err == nil {
			err = responder.Start(runCtx)
			if err != nil {
				_ = responder.Close()
			}
		}
		if err != nil {
			daemon.log.WithError(err).Warn("NATS responder disabled")
		} else {
			daemon.nats = responder
			daemon.goRun(func() { responder.PublishStatus(runCtx, daemon.engine.Subscribe(16)) })
		}
	}

	daemon.serializer.Enqueue(model.EventTabActivated)
	daemon.log.WithFields(logrus.Fields{"listen": daemon.server.Addr(), "host": daemon.cfg.Host.Source}).Info("FocusFlow started")
	return nil
}

// Stop shuts everything down in reverse order and persists state.
func (daemon *Daemon) Stop(ctx context.Context) error {
	var errs []error

	if daemon.nats != nil {
		errs = append(errs, daemon.nats.Close())
	}
	if err := daemon.server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	if daemon.watcher != nil {
		errs = append(errs, daemon.watcher.Stop())
	}
	errs = append(errs, daemon.scheduler.Stop())
	daemon.serializer.Stop()
	if daemon.cancel != nil {
		daemon.cancel()
	}

	if err := daemon.shared.SaveTracking(ctx); err != nil {
		errs = append(errs, fmt.Errorf("save tracking data: %w", err))
	}
	daemon.engine.Close(ctx)
	daemon.wg.Wait()
	errs = append(errs, daemon.closeStore())

	daemon.log.Info("FocusFlow stopped")
	return errors.Join(errs...)
}

// Engine returns the Pomodoro engine.
func (daemon *Daemon) Engine() *pomodoro.Engine {
	return daemon.engine
}

// Addr returns the message surface address.
func (daemon *Daemon) Addr() string {
	return daemon.server.Addr()
}

// SetNotificationSender routes capability checks and completion notices
// through sender, for example the tray. nil restores the desktop notifier.
func (daemon *Daemon) SetNotificationSender(sender pomodoro.Notifier) {
	daemon.notifier.route(sender)
}

// SavePomodoroSettings stores settings and has the engine pick them up, the
// same path a pomodoroSettingsChanged message takes.
func (daemon *Daemon) SavePomodoroSettings(ctx context.Context, settings model.PomodoroSettings) error {
	if err := daemon.store.Set(ctx, map[string]any{storage.KeyPomodoroSettings: settings}); err != nil {
		return fmt.Errorf("save pomodoro settings: %w", err)
	}
	return daemon.engine.ReloadSettings(ctx)
}

func (daemon *Daemon) applyConfig(cfg config.Config) {
	logging.SetLevel(cfg.Log.Level)
	daemon.shared.SetDefaults(defaultsFrom(cfg))
	if err := daemon.shared.LoadConfig(context.Background()); err != nil {
		daemon.log.WithError(err).Warn("Failed to reload tracking settings")
	}
	daemon.scheduler.SetPeriods(periodsFrom(cfg))
	if err := daemon.scheduler.EnsureWakeups(); err != nil {
		daemon.log.WithError(err).Error("Failed to update wake-ups")
	}
	if cfg.Listen != daemon.cfg.Listen || cfg.Host.Source != daemon.cfg.Host.Source || cfg.Database != daemon.cfg.Database {
		daemon.log.Warn("Listen address, host source and database changes apply after restart")
	}
}

func (daemon *Daemon) idleThreshold() time.Duration {
	return time.Duration(daemon.shared.Config().IdleThresholdSeconds) * time.Second
}

func (daemon *Daemon) goRun(fn func()) {
	daemon.wg.Add(1)
	go func() {
		defer daemon.wg.Done()
		fn()
	}()
}

func (daemon *Daemon) closeStore() error {
	if closer, ok := daemon.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func defaultsFrom(cfg config.Config) state.Defaults {
	return state.Defaults{
		IdleThresholdSeconds: cfg.Tracking.IdleThresholdSeconds,
		RetentionDays:        cfg.Retention.Days,
	}
}

func periodsFrom(cfg config.Config) scheduler.Periods {
	return scheduler.Periods{
		Alarm:      cfg.AlarmPeriod(),
		PruneDelay: cfg.Retention.InitialDelay,
	}
}

// routedNotifier uses the desktop notifier unless a sender is routed in.
type routedNotifier struct {
	desktop *platform.DesktopNotifier
	sender  atomic.Pointer[pomodoro.Notifier]
}

func (notifier *routedNotifier) route(sender pomodoro.Notifier) {
	if sender == nil {
		notifier.sender.Store(nil)
		return
	}
	notifier.sender.Store(&sender)
}

func (notifier *routedNotifier) Capable(ctx context.Context) (bool, error) {
	if sender := notifier.sender.Load(); sender != nil {
		return (*sender).Capable(ctx)
	}
	return notifier.desktop.Capable(ctx)
}

func (notifier *routedNotifier) Send(ctx context.Context, notification pomodoro.Notification) error {
	if sender := notifier.sender.Load(); sender != nil {
		return (*sender).Send(ctx, notification)
	}
	return notifier.desktop.Notify(ctx, notification.Title, notification.Message)
}
