//go:build windows

package platform

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const balloonScript = `Add-Type -AssemblyName System.Windows.Forms
$icon = New-Object System.Windows.Forms.NotifyIcon
$icon.Icon = [System.Drawing.SystemIcons]::Information
$icon.Visible = $true
$icon.ShowBalloonTip(10000, $env:FOCUSFLOW_TITLE, $env:FOCUSFLOW_MESSAGE, 'Info')
Start-Sleep -Seconds 5
$icon.Dispose()`

func notificationCapable() (bool, error) {
	if _, err := exec.LookPath("powershell"); err != nil {
		return false, nil
	}
	return true, nil
}

// sendNotification passes the text through the environment so it never
// needs quoting inside the script.
func sendNotification(ctx context.Context, appName, title, message string) error {
	command := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", balloonScript)
	command.Env = append(command.Environ(),
		"FOCUSFLOW_TITLE="+title,
		"FOCUSFLOW_MESSAGE="+message,
		"FOCUSFLOW_APP="+appName,
	)
	output, err := command.CombinedOutput()
	if err != nil {
		return fmt.Errorf("powershell notification: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
