package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// LoginItem describes the command started when the user logs in.
type LoginItem struct {
	Name        string
	Description string
	ExecPath    string
	Args        []string
}

// Service defines OS-specific helpers needed by the daemon.
type Service interface {
	GetConfigDir() (string, error)
	EnableAutostart(item LoginItem) error
	DisableAutostart(name string) error
	AutostartEnabled(name string) (bool, error)
}

type platformService struct{}

// NewService returns a platform-specific implementation.
func NewService() Service {
	return &platformService{}
}

// GetConfigDir returns the OS-standard configuration directory.
func (service *platformService) GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err == nil && configDir != "" {
		return configDir, nil
	}

	homeDir, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return "", fmt.Errorf("get config dir: %w", errors.Join(err, homeErr))
	}
	return fallbackConfigDir(homeDir), nil
}

func (item LoginItem) validate() error {
	if strings.TrimSpace(item.Name) == "" {
		return errors.New("login item name is empty")
	}
	if item.ExecPath == "" {
		return errors.New("login item exec path is empty")
	}
	return nil
}

func (item LoginItem) argv() []string {
	return append([]string{item.ExecPath}, item.Args...)
}

// slug turns a display name into a file or label friendly identifier.
func slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "focusflow"
	}
	return strings.ReplaceAll(name, " ", "-")
}
