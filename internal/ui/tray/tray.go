// Package tray shows the focus timer in the system tray.
package tray

import (
	"context"
	"fmt"
	"strings"

	"focusflow/internal/core/model"
	"focusflow/internal/core/pomodoro"
	"focusflow/internal/logging"
	"focusflow/resources"

	"fyne.io/fyne/v2"
	"github.com/sirupsen/logrus"
)

const menuTitle = "FocusFlow"

// TrayApp is the part of fyne's desktop.App the tray uses.
type TrayApp interface {
	SetSystemTrayMenu(menu *fyne.Menu)
	SetSystemTrayIcon(icon fyne.Resource)
}

// Callbacks defines tray action handlers.
type Callbacks struct {
	OnStart       func()
	OnPause       func()
	OnSkip        func()
	OnNextPhase   func()
	OnReset       func(resetCycle bool)
	OnPreferences func()
	OnQuit        func()
}

// Manager handles system tray state.
type Manager struct {
	app       TrayApp
	callbacks Callbacks
	do        func(func())
	log       *logrus.Entry

	statusItem *fyne.MenuItem
	toggleItem *fyne.MenuItem
	skipItem   *fyne.MenuItem
	running    bool
	badge      pomodoro.Badge
}

// New creates a tray manager with the provided callbacks.
func New(app TrayApp, callbacks Callbacks) *Manager {
	manager := &Manager{
		app:       app,
		callbacks: callbacks,
		do:        fyne.Do,
		log:       logging.NewLogger("tray"),
	}

	manager.statusItem = fyne.NewMenuItem("Status: starting...", nil)
	manager.statusItem.Disabled = true

	manager.toggleItem = fyne.NewMenuItem("Start", func() {
		if manager.running {
			call(manager.callbacks.OnPause)
		} else {
			call(manager.callbacks.OnStart)
		}
	})

	manager.skipItem = fyne.NewMenuItem("Skip break", func() {
		call(manager.callbacks.OnSkip)
	})
	manager.skipItem.Disabled = true

	manager.refreshMenu()
	return manager
}

// Update applies a status snapshot to the menu and the badge icon. It may be
// called from any goroutine.
func (manager *Manager) Update(status pomodoro.Status) {
	manager.do(func() {
		manager.apply(status)
	})
}

// Watch applies engine events until ctx is done or events closes.
func (manager *Manager) Watch(ctx context.Context, events <-chan pomodoro.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			manager.Update(event.Status)
		}
	}
}

func (manager *Manager) apply(status pomodoro.Status) {
	manager.running = status.TimerState == model.TimerRunning
	if manager.running {
		manager.toggleItem.Label = "Pause"
	} else {
		manager.toggleItem.Label = "Start"
	}
	manager.skipItem.Disabled = !status.CurrentPhase.IsBreak()
	manager.statusItem.Label = "Status: " + StatusLine(status)

	badge := pomodoro.BadgeFor(status.PomodoroState)
	if badge != manager.badge || manager.badge.Color == "" {
		manager.badge = badge
		icon, err := resources.Badge(iconText(badge.Text), badge.Color)
		if err != nil {
			manager.log.WithError(err).Warn("Failed to render tray badge")
		} else {
			manager.app.SetSystemTrayIcon(icon)
		}
	}
	manager.refreshMenu()
}

// StatusLine formats the phase, remaining time and run state.
func StatusLine(status pomodoro.Status) string {
	remaining := max(status.RemainingTime, 0)
	line := fmt.Sprintf("%s %02d:%02d", status.CurrentPhase, remaining/60, remaining%60)
	if status.TimerState != model.TimerRunning {
		line += " (" + string(status.TimerState) + ")"
	}
	if status.WorkSessionsCompleted > 0 {
		line += fmt.Sprintf(", %d done", status.WorkSessionsCompleted)
	}
	return line
}

// iconText maps badge text onto glyphs the bitmap font has.
func iconText(text string) string {
	return strings.ReplaceAll(text, pomodoro.PausedBadge, "||")
}

func (manager *Manager) refreshMenu() {
	manager.app.SetSystemTrayMenu(fyne.NewMenu(menuTitle,
		manager.statusItem,
		fyne.NewMenuItemSeparator(),
		manager.toggleItem,
		manager.skipItem,
		fyne.NewMenuItem("Next phase", func() {
			call(manager.callbacks.OnNextPhase)
		}),
		fyne.NewMenuItem("Reset timer", func() {
			if manager.callbacks.OnReset != nil {
				manager.callbacks.OnReset(false)
			}
		}),
		fyne.NewMenuItem("Reset cycle", func() {
			if manager.callbacks.OnReset != nil {
				manager.callbacks.OnReset(true)
			}
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Preferences...", func() {
			call(manager.callbacks.OnPreferences)
		}),
		fyne.NewMenuItem("Quit", func() {
			call(manager.callbacks.OnQuit)
		}),
	))
}

func call(callback func()) {
	if callback != nil {
		callback()
	}
}
