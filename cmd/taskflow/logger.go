package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/taskflow/internal/config"
)

// runtimeLogger fans log events to a styled console sink and an optional logfmt file sink.
type runtimeLogger struct {
	sinks       []*charmLog.Logger
	consoleSink *charmLog.Logger
	closeFile   func() error
	devLog      string
}

// newRuntimeLogger configures runtime log sinks from config state.
func newRuntimeLogger(stderr io.Writer, appName string, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level := charmLog.InfoLevel
	if raw := strings.ToLower(strings.TrimSpace(cfg.Level)); raw != "" {
		parsed, err := charmLog.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	logger := &runtimeLogger{
		sinks:       []*charmLog.Logger{consoleLogger},
		consoleSink: consoleLogger,
	}
	if strings.TrimSpace(cfg.DevFile) == "" {
		return logger, nil
	}

	devLogPath := datedLogPath(cfg.DevFile, now().UTC())
	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.closeFile = logFile.Close
	logger.devLog = devLogPath
	return logger, nil
}

// Component returns a console logger tagged for one subsystem.
// The dev file only receives command-flow events.
func (l *runtimeLogger) Component(name string) *charmLog.Logger {
	if l == nil || l.consoleSink == nil {
		return charmLog.New(io.Discard)
	}
	return l.consoleSink.With("component", name)
}

// DevLogPath returns the active dev log file path.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// Debug logs a debug event to all configured sinks.
func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Debug(msg, keyvals...) })
}

// Info logs an informational event to all configured sinks.
func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Info(msg, keyvals...) })
}

// Warn logs a warning event to all configured sinks.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Warn(msg, keyvals...) })
}

// Error logs an error event to all configured sinks.
func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Error(msg, keyvals...) })
}

func (l *runtimeLogger) each(fn func(*charmLog.Logger)) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		fn(sink)
	}
}

// datedLogPath inserts the run day before the file extension: app.log becomes app-20260303.log.
func datedLogPath(path string, now time.Time) string {
	path = filepath.Clean(strings.TrimSpace(path))
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".log"
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	return fmt.Sprintf("%s-%s%s", stem, now.Format("20060102"), ext)
}
