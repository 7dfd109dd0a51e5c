package pomodoro

import (
	"context"
	"fmt"
	"strings"

	"focusflow/internal/core/model"

	"github.com/google/uuid"
)

// Notification is a desktop notification announcing a finished phase.
type Notification struct {
	ID      string
	Title   string
	Message string
}

// Notifier checks the platform notification capability and delivers
// notifications.
type Notifier interface {
	Capable(ctx context.Context) (bool, error)
	Send(ctx context.Context, notification Notification) error
}

// completionNotification builds the notification for finishing phase
// finished with next coming up.
func completionNotification(finished, next model.Phase) Notification {
	return Notification{
		ID:      "pomodoro-" + uuid.NewString(),
		Title:   fmt.Sprintf("FocusFlow: %s Complete!", finished),
		Message: fmt.Sprintf("Time for your %s. Click Start in the popup when ready.", strings.ToLower(string(next))),
	}
}

// capable reports the notification capability. Any failure counts as not
// granted.
func (engine *Engine) capable(ctx context.Context) bool {
	if engine.notifier == nil {
		return false
	}
	granted, err := engine.notifier.Capable(ctx)
	if err != nil {
		engine.log.WithError(err).Warn("Notification capability check failed, treating as denied")
		return false
	}
	return granted
}

// reconcileNotify forces notifyEnabled off when the capability is missing.
// It reports the result of the check, or false when no check was needed
// because notifications are already off.
func (engine *Engine) reconcileNotify(ctx context.Context) bool {
	engine.mu.Lock()
	enabled := engine.settings.NotifyEnabled
	engine.mu.Unlock()
	if !enabled {
		return false
	}

	if engine.capable(ctx) {
		return true
	}
	engine.downgradeNotify(ctx)
	return false
}

func (engine *Engine) downgradeNotify(ctx context.Context) {
	engine.mu.Lock()
	if !engine.settings.NotifyEnabled {
		engine.mu.Unlock()
		return
	}
	engine.settings.NotifyEnabled = false
	engine.mu.Unlock()

	engine.log.Info("Notification permission missing, disabling notifications")
	engine.persist(ctx)
	engine.publish(EventSettings, "")
}

// notifyCompletion announces a finished phase, subject to the user setting
// and the platform capability.
func (engine *Engine) notifyCompletion(ctx context.Context, finished, next model.Phase) {
	engine.mu.Lock()
	enabled := engine.settings.NotifyEnabled
	engine.mu.Unlock()
	if !enabled {
		engine.recorder.NotificationSent("skipped")
		engine.log.Debug("Notifications disabled, skipping completion notice")
		return
	}
	if !engine.capable(ctx) {
		engine.recorder.NotificationSent("denied")
		engine.downgradeNotify(ctx)
		return
	}

	notification := completionNotification(finished, next)
	if err := engine.notifier.Send(ctx, notification); err != nil {
		engine.recorder.NotificationSent("failed")
		engine.log.WithError(err).Error("Failed to send completion notification")
		return
	}
	engine.recorder.NotificationSent("sent")
	engine.log.WithField("phase", string(finished)).Info("Completion notification sent")
}
