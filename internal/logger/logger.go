// Package logger wires logrus for the whole application. It is initialized
// once from config at startup; packages either use the package-level helpers
// or take a *logrus.Entry tagged with their component name.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Logger is the shared logrus instance.
var Logger *logrus.Logger

// Config holds logging configuration.
type Config struct {
	// Level is one of debug, info, warn, error, fatal, panic.
	Level string
	// Format is "json" or "text".
	Format string
	// Output is "console", "file" or "both".
	Output string
	// FilePath is the log file location for file output.
	FilePath string
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		Level:    "info",
		Format:   "text",
		Output:   "console",
		FilePath: "logs/quicknote.log",
	}
}

// Init initializes the shared logger from config.
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	Logger = logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		Logger.Warnf("invalid log level %q, falling back to info", config.Level)
	}
	Logger.SetLevel(level)

	switch config.Format {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return setupOutput(config)
}

func setupOutput(config *Config) error {
	switch config.Output {
	case "file":
		f, err := openLogFile(config.FilePath)
		if err != nil {
			return err
		}
		Logger.SetOutput(f)
	case "both":
		f, err := openLogFile(config.FilePath)
		if err != nil {
			return err
		}
		Logger.SetOutput(io.MultiWriter(os.Stdout, f))
	default:
		Logger.SetOutput(os.Stdout)
	}
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

// GetLogger returns the shared logger, initializing it with defaults if
// Init was never called.
func GetLogger() *logrus.Logger {
	if Logger == nil {
		if err := Init(nil); err != nil {
			return logrus.StandardLogger()
		}
	}
	return Logger
}

// WithComponent returns an entry tagged with a component field. Services use
// this so every line carries its origin.
func WithComponent(name string) *logrus.Entry {
	return GetLogger().WithField("component", name)
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warnf logs at warn level.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// WithFields adds structured fields to a log entry.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
