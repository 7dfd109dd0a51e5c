// Package config loads the daemon configuration from config.yaml, a .env
// file and FOCUSFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"focusflow/internal/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "focusflow"
	configFileName = "config.yaml"
	dbFileName     = "focusflow.db"
)

// Defaults.
const (
	DefaultListen               = "127.0.0.1:47615"
	DefaultNATSSubject          = "focusflow.message"
	DefaultCDPURL               = "http://127.0.0.1:9222"
	DefaultPollInterval         = 2 * time.Second
	DefaultIdleThresholdSeconds = 1800
	DefaultAlarmPeriodSeconds   = 15
	DefaultRetentionDays        = 90
	DefaultInitialPruneDelay    = 15 * time.Minute
)

// DefaultAllowedOrigins admits browser extension pages, where the companion
// runs. Requests without an Origin header are always served.
var DefaultAllowedOrigins = []string{"chrome-extension://*", "moz-extension://*", "safari-web-extension://*"}

// Host sources.
const (
	HostReported = "reported"
	HostCDP      = "cdp"
)

// Config is the daemon configuration.
type Config struct {
	// Database is the SQLite file. Empty means next to config.yaml.
	Database       string          `yaml:"database"`
	Listen         string          `yaml:"listen"`
	// AllowedOrigins lists browser origins that may use the message
	// surface: exact origins or "scheme://*".
	AllowedOrigins []string        `yaml:"allowed_origins"`
	NATS           NATSConfig      `yaml:"nats"`
	Host           HostConfig      `yaml:"host"`
	Tracking       TrackingConfig  `yaml:"tracking"`
	Retention      RetentionConfig `yaml:"retention"`
	Tray           TrayConfig      `yaml:"tray"`
	Log            logging.Config  `yaml:"log"`
}

// NATSConfig enables the NATS responder when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type HostConfig struct {
	// Source is "reported" or "cdp".
	Source       string        `yaml:"source"`
	CDPURL       string        `yaml:"cdp_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type TrackingConfig struct {
	IdleThresholdSeconds int `yaml:"idle_threshold_seconds"`
	AlarmPeriodSeconds   int `yaml:"alarm_period_seconds"`
}

type RetentionConfig struct {
	Days         int           `yaml:"days"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Listen:         DefaultListen,
		AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		NATS:           NATSConfig{Subject: DefaultNATSSubject},
		Host: HostConfig{
			Source:       HostReported,
			CDPURL:       DefaultCDPURL,
			PollInterval: DefaultPollInterval,
		},
		Tracking: TrackingConfig{
			IdleThresholdSeconds: DefaultIdleThresholdSeconds,
			AlarmPeriodSeconds:   DefaultAlarmPeriodSeconds,
		},
		Retention: RetentionConfig{
			Days:         DefaultRetentionDays,
			InitialDelay: DefaultInitialPruneDelay,
		},
		Log: logging.Config{Level: "info", Format: "text", Stderr: "auto"},
	}
}

// AlarmPeriod returns the periodic check cadence.
func (cfg Config) AlarmPeriod() time.Duration {
	return time.Duration(cfg.Tracking.AlarmPeriodSeconds) * time.Second
}

// DefaultPath returns config.yaml under the user config directory.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, AppName, configFileName), nil
}

// Load reads path, then applies .env and environment overrides. A missing
// file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	rawData, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config file: %w", err)
	default:
		var fileData Config
		if err := yaml.Unmarshal(rawData, &fileData); err != nil {
			return cfg, fmt.Errorf("parse config yaml: %w", err)
		}
		applyFile(&cfg, fileData)
	}

	applyEnv(&cfg)
	if cfg.Database == "" {
		cfg.Database = filepath.Join(filepath.Dir(path), dbFileName)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory when needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	serialized, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config yaml: %w", err)
	}
	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// applyFile copies the values the file sets. Non-positive numbers and
// unknown enum values keep the defaults.
func applyFile(cfg *Config, fileData Config) {
	if fileData.Database != "" {
		cfg.Database = expandHome(fileData.Database)
	}
	if fileData.Listen != "" {
		cfg.Listen = fileData.Listen
	}
	// An explicit empty list admits no browser origins.
	if fileData.AllowedOrigins != nil {
		cfg.AllowedOrigins = fileData.AllowedOrigins
	}
	cfg.NATS.URL = fileData.NATS.URL
	if fileData.NATS.Subject != "" {
		cfg.NATS.Subject = fileData.NATS.Subject
	}

	switch fileData.Host.Source {
	case HostReported, HostCDP:
		cfg.Host.Source = fileData.Host.Source
	}
	if fileData.Host.CDPURL != "" {
		cfg.Host.CDPURL = fileData.Host.CDPURL
	}
	if fileData.Host.PollInterval > 0 {
		cfg.Host.PollInterval = fileData.Host.PollInterval
	}

	if fileData.Tracking.IdleThresholdSeconds > 0 {
		cfg.Tracking.IdleThresholdSeconds = fileData.Tracking.IdleThresholdSeconds
	}
	if fileData.Tracking.AlarmPeriodSeconds > 0 {
		cfg.Tracking.AlarmPeriodSeconds = fileData.Tracking.AlarmPeriodSeconds
	}
	if fileData.Retention.Days > 0 {
		cfg.Retention.Days = fileData.Retention.Days
	}
	if fileData.Retention.InitialDelay > 0 {
		cfg.Retention.InitialDelay = fileData.Retention.InitialDelay
	}

	cfg.Tray.Enabled = fileData.Tray.Enabled

	if fileData.Log.Level != "" {
		cfg.Log.Level = fileData.Log.Level
	}
	if fileData.Log.Format != "" {
		cfg.Log.Format = fileData.Log.Format
	}
	if fileData.Log.Stderr != "" {
		cfg.Log.Stderr = fileData.Log.Stderr
	}
	cfg.Log.File = fileData.Log.File
	cfg.Log.MaxSizeMB = fileData.Log.MaxSizeMB
	cfg.Log.MaxBackups = fileData.Log.MaxBackups
}

func applyEnv(cfg *Config) {
	if value := os.Getenv("FOCUSFLOW_DB"); value != "" {
		cfg.Database = expandHome(value)
	}
	if value := os.Getenv("FOCUSFLOW_LISTEN"); value != "" {
		cfg.Listen = value
	}
	if value, ok := os.LookupEnv("FOCUSFLOW_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(value)
	}
	if value := os.Getenv("FOCUSFLOW_NATS_URL"); value != "" {
		cfg.NATS.URL = value
	}
	if value := os.Getenv("FOCUSFLOW_CDP_URL"); value != "" {
		cfg.Host.CDPURL = value
		cfg.Host.Source = HostCDP
	}
	if value := os.Getenv("FOCUSFLOW_LOG_LEVEL"); value != "" {
		cfg.Log.Level = value
	}
}

func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
