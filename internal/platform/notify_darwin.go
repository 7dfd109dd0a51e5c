//go:build darwin

package platform

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func notificationCapable() (bool, error) {
	if _, err := exec.LookPath("osascript"); err != nil {
		return false, nil
	}
	return true, nil
}

func sendNotification(ctx context.Context, appName, title, message string) error {
	script := fmt.Sprintf(
		"display notification %s with title %s subtitle %s",
		appleScriptString(message),
		appleScriptString(title),
		appleScriptString(appName),
	)
	output, err := exec.CommandContext(ctx, "osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func appleScriptString(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + replacer.Replace(value) + `"`
}
