package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"focusflow/internal/config"
	"focusflow/internal/core/model"
	"focusflow/internal/logging"
	"focusflow/internal/platform"
	"focusflow/internal/ui/preferences"
	"focusflow/internal/ui/tray"
	"focusflow/resources"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
)

const (
	appID           = "com.focusflow.app"
	shutdownTimeout = 10 * time.Second
)

// RunOptions are the command line choices of the run command.
type RunOptions struct {
	ConfigPath string
	// Tray overrides tray.enabled when set.
	Tray *bool
	// Listen overrides the configured address when non-empty.
	Listen string
}

// Run starts the daemon and blocks until ctx is cancelled or the tray quits.
func Run(ctx context.Context, options RunOptions) error {
	log := logging.NewLogger("system")

	guard, err := platform.AcquireSingleInstance(config.AppName)
	if err != nil {
		if errors.Is(err, platform.ErrAlreadyRunning) {
			return fmt.Errorf("focusflow is already running: %w", err)
		}
		return err
	}
	defer func() {
		_ = guard.Release()
	}()

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return err
	}
	if options.Listen != "" {
		cfg.Listen = options.Listen
	}
	if options.Tray != nil {
		cfg.Tray.Enabled = *options.Tray
	}
	logging.Configure(cfg.Log)
	defer func() {
		_ = logging.Close()
	}()

	daemon, err := New(cfg, options.ConfigPath)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := daemon.Start(runCtx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		return errors.Join(err, daemon.Stop(stopCtx))
	}
	guard.Announce(daemon.Addr())

	if cfg.Tray.Enabled {
		if err := runTray(runCtx, cancel, daemon); err != nil {
			log.WithError(err).Warn("System tray unavailable, running headless")
			<-runCtx.Done()
		}
	} else {
		<-runCtx.Done()
	}

	log.Info("Shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	return daemon.Stop(stopCtx)
}

// runTray runs the fyne event loop on the calling goroutine until ctx is
// done or the user picks Quit.
func runTray(ctx context.Context, quit context.CancelFunc, daemon *Daemon) error {
	fyneApp := fyneapp.NewWithID(appID)
	desktopApp, ok := fyneApp.(desktop.App)
	if !ok {
		return errors.New("system tray unsupported on this platform")
	}

	log := logging.NewLogger("tray")
	engine := daemon.Engine()
	prefs := preferences.New(fyneApp, engine.Settings(), func(settings model.PomodoroSettings) {
		go func() {
			if err := daemon.SavePomodoroSettings(ctx, settings); err != nil {
				log.WithError(err).Error("Failed to save timer settings")
			}
		}()
	})
	manager := tray.New(desktopApp, tray.Callbacks{
		OnStart:     func() { _ = engine.Start(ctx) },
		OnPause:     func() { _ = engine.Pause(ctx) },
		OnSkip:      func() { _ = engine.Skip(ctx) },
		OnNextPhase: func() { engine.ChangeToNextPhase(ctx) },
		OnReset:     func(resetCycle bool) { engine.Reset(ctx, resetCycle) },
		OnPreferences: func() {
			prefs.UpdateSettings(engine.Settings())
			prefs.Show()
		},
		OnQuit: quit,
	})
	fyneApp.SetIcon(resources.MustBadge("", "#28a745"))

	daemon.SetNotificationSender(tray.NewNotifier(fyneApp, platform.NewDesktopNotifier(config.AppName)))
	defer daemon.SetNotificationSender(nil)

	events := engine.Subscribe(16)
	fyneApp.Lifecycle().SetOnStarted(func() {
		manager.Update(engine.Snapshot())
	})
	go manager.Watch(ctx, events)
	go func() {
		<-ctx.Done()
		fyne.Do(fyneApp.Quit)
	}()

	fyneApp.Run()
	quit()
	return nil
}
