//go:build linux

package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// notificationCapable needs notify-send and a session bus to talk to.
func notificationCapable() (bool, error) {
	if _, err := exec.LookPath("notify-send"); err != nil {
		return false, nil
	}
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
		return true, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return false, nil
	}
	if _, err := os.Stat(filepath.Join(runtimeDir, "bus")); err != nil {
		return false, nil
	}
	return true, nil
}

func sendNotification(ctx context.Context, appName, title, message string) error {
	command := exec.CommandContext(ctx, "notify-send", "--app-name="+appName, title, message)
	output, err := command.CombinedOutput()
	if err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
