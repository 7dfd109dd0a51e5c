package tray

import (
	"context"

	"focusflow/internal/core/pomodoro"

	"fyne.io/fyne/v2"
)

// CapabilityChecker reports whether the desktop can show notifications.
type CapabilityChecker interface {
	Capable(ctx context.Context) (bool, error)
}

// Notifier delivers completion notices through fyne while the tray runs.
type Notifier struct {
	app        fyne.App
	capability CapabilityChecker
}

// NewNotifier creates a notifier. capability may be nil, in which case the
// running fyne app is taken as capable.
func NewNotifier(app fyne.App, capability CapabilityChecker) *Notifier {
	return &Notifier{app: app, capability: capability}
}

// Capable implements pomodoro.Notifier.
func (notifier *Notifier) Capable(ctx context.Context) (bool, error) {
	if notifier.capability == nil {
		return notifier.app != nil, nil
	}
	return notifier.capability.Capable(ctx)
}

// Send implements pomodoro.Notifier.
func (notifier *Notifier) Send(_ context.Context, notification pomodoro.Notification) error {
	notifier.app.SendNotification(fyne.NewNotification(notification.Title, notification.Message))
	return nil
}
