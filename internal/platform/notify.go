package platform

import (
	"context"
	"errors"
)

// ErrNotificationsUnsupported indicates no desktop notification channel was
// found.
var ErrNotificationsUnsupported = errors.New("desktop notifications unsupported")

// DesktopNotifier shows notifications through the operating system's own
// tooling, for runs without the tray UI.
type DesktopNotifier struct {
	appName string
}

// NewDesktopNotifier creates a notifier that labels notifications with appName.
func NewDesktopNotifier(appName string) *DesktopNotifier {
	return &DesktopNotifier{appName: appName}
}

// Capable reports whether notifications can currently be delivered.
func (notifier *DesktopNotifier) Capable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return notificationCapable()
}

// Notify shows a notification.
func (notifier *DesktopNotifier) Notify(ctx context.Context, title, message string) error {
	granted, err := notifier.Capable(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return ErrNotificationsUnsupported
	}
	return sendNotification(ctx, notifier.appName, title, message)
}
