package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config defines the logging section of config.yaml.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	// FOCUSFLOW_LOG_LEVEL overrides it.
	Level string `yaml:"level"`
	// Format is "text" (default) or "json".
	Format string `yaml:"format"`
	// File enables a rotating log file when non-empty.
	File string `yaml:"file"`
	// MaxSizeMB and MaxBackups bound the rotating file.
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
	// Stderr is "auto" (default), "always" or "never".
	Stderr string `yaml:"stderr"`
}

var (
	loggersMu sync.Mutex
	loggers   = make(map[string]*logrus.Entry)
	base      = newBase(Config{})
	rotator   *lumberjack.Logger
)

// Configure rebuilds the shared logger from cfg. Component loggers created
// before the call keep working and pick up the new output and level.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}

	configured := newBase(cfg)
	base.SetLevel(configured.GetLevel())
	base.SetFormatter(configured.Formatter)
	base.SetOutput(configured.Out)
}

// NewLogger returns the cached logger for a component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}
	entry := base.WithField("component", component)
	loggers[component] = entry
	return entry
}

// SetLevel applies a new level to every component logger.
func SetLevel(levelStr string) {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return
	}
	loggersMu.Lock()
	defer loggersMu.Unlock()
	base.SetLevel(level)
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

func newBase(cfg Config) *logrus.Logger {
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("FOCUSFLOW_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var writers []io.Writer
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   expandPath(cfg.File),
			MaxSize:    positiveOr(cfg.MaxSizeMB, 10),
			MaxBackups: positiveOr(cfg.MaxBackups, 3),
			Compress:   true,
		}
		writers = append(writers, rotator)
	}

	if shouldLogToStderr(cfg.Stderr, level, cfg.File != "") {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}
	return logger
}

func shouldLogToStderr(mode string, level logrus.Level, hasFile bool) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	// auto: without a file sink stderr is the only place logs can go.
	if !hasFile {
		return true
	}
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return level >= logrus.DebugLevel || !isInteractive
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
