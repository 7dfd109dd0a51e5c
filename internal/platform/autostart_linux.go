//go:build linux

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (service *platformService) EnableAutostart(item LoginItem) error {
	if err := item.validate(); err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	path, err := service.desktopEntryPath(item.Name)
	if err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("enable autostart: create autostart dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(buildDesktopEntry(item)), 0o644); err != nil {
		return fmt.Errorf("enable autostart: write desktop entry: %w", err)
	}
	return nil
}

func (service *platformService) DisableAutostart(name string) error {
	path, err := service.desktopEntryPath(name)
	if err != nil {
		return fmt.Errorf("disable autostart: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("disable autostart: remove desktop entry: %w", err)
	}
	return nil
}

func (service *platformService) AutostartEnabled(name string) (bool, error) {
	path, err := service.desktopEntryPath(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat desktop entry: %w", err)
	}
}

func (service *platformService) desktopEntryPath(name string) (string, error) {
	configDir, err := service.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "autostart", slug(name)+".desktop"), nil
}

func fallbackConfigDir(homeDir string) string {
	return filepath.Join(homeDir, ".config")
}

// buildDesktopEntry renders an XDG autostart entry. Arguments containing
// spaces are quoted.
func buildDesktopEntry(item LoginItem) string {
	fields := make([]string, 0, len(item.Args)+1)
	for _, arg := range item.argv() {
		if strings.ContainsAny(arg, " \t") && !strings.HasPrefix(arg, `"`) {
			arg = `"` + arg + `"`
		}
		fields = append(fields, arg)
	}

	var entry strings.Builder
	entry.WriteString("[Desktop Entry]\nType=Application\n")
	fmt.Fprintf(&entry, "Name=%s\n", item.Name)
	if item.Description != "" {
		fmt.Fprintf(&entry, "Comment=%s\n", item.Description)
	}
	fmt.Fprintf(&entry, "Exec=%s\n", strings.Join(fields, " "))
	entry.WriteString("X-GNOME-Autostart-enabled=true\nTerminal=false\n")
	return entry.String()
}
