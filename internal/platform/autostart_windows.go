//go:build windows

package platform

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

const registryRunKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

func (service *platformService) EnableAutostart(item LoginItem) error {
	if err := item.validate(); err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	command := strings.Join(append([]string{quoteWindowsPath(item.ExecPath)}, item.Args...), " ")
	if _, err := runReg("add", registryRunKey, "/v", item.Name, "/t", "REG_SZ", "/d", command, "/f"); err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	return nil
}

func (service *platformService) DisableAutostart(name string) error {
	enabled, err := service.AutostartEnabled(name)
	if err != nil || !enabled {
		return err
	}
	if _, err := runReg("delete", registryRunKey, "/v", name, "/f"); err != nil {
		return fmt.Errorf("disable autostart: %w", err)
	}
	return nil
}

func (service *platformService) AutostartEnabled(name string) (bool, error) {
	_, err := runReg("query", registryRunKey, "/v", name)
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &exitErr):
		// reg query exits 1 when the value does not exist.
		return false, nil
	default:
		return false, err
	}
}

func runReg(args ...string) ([]byte, error) {
	output, err := exec.Command("reg", args...).CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("reg %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

func fallbackConfigDir(homeDir string) string {
	return filepath.Join(homeDir, "AppData", "Roaming")
}

func quoteWindowsPath(execPath string) string {
	return `"` + strings.Trim(execPath, `"`) + `"`
}
