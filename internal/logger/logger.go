package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	globalLogger *log.Logger
	enabled      bool
)

// Init initializes the logger.
func Init(on bool, levelStr, logFile string, console bool) error {
	if !on {
		globalLogger = nil
		enabled = false
		return nil
	}

	var writers []io.Writer

	if logFile != "" {
		dir := filepath.Dir(logFile)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
	}

	// stdout is reserved for the run summary.
	if console || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	setOutput(io.MultiWriter(writers...), levelStr)
	return nil
}

// SetOutput routes log lines to w at the given level.
func SetOutput(w io.Writer, levelStr string) {
	setOutput(w, levelStr)
}

func setOutput(w io.Writer, levelStr string) {
	globalLogger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           parseLevel(levelStr),
	})
	enabled = true
}

func parseLevel(levelStr string) log.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	if !enabled || globalLogger == nil {
		return
	}
	globalLogger.Debugf(format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	if !enabled || globalLogger == nil {
		return
	}
	globalLogger.Infof(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	if !enabled || globalLogger == nil {
		return
	}
	globalLogger.Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	if !enabled || globalLogger == nil {
		return
	}
	globalLogger.Errorf(format, args...)
}
