package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps charm/log for structured logging
type Logger struct {
	*log.Logger
}

// New creates a new logger with the given output
func New(w io.Writer) *Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	return &Logger{Logger: l}
}

// NewWithLevel creates a logger with a specific level
func NewWithLevel(w io.Writer, level log.Level) *Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           level,
	})
	return &Logger{Logger: l}
}

// FileOptions controls log file rotation
type FileOptions struct {
	Level      log.Level
	MaxSizeMB  int
	MaxBackups int
	// Echo additionally writes to the given writer, e.g. stderr
	Echo io.Writer
}

// NewFileLogger creates a logger that writes to a rotating file
func NewFileLogger(path string, opts FileOptions) (*Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}

	var w io.Writer = rotator
	if opts.Echo != nil {
		w = io.MultiWriter(rotator, opts.Echo)
	}

	cleanup := func() {
		rotator.Close()
	}

	return NewWithLevel(w, opts.Level), cleanup, nil
}

// ParseLevel maps a config level name to a log level
func ParseLevel(s string) log.Level {
	level, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Discard returns a logger that discards all output
func Discard() *Logger {
	return New(io.Discard)
}

// SyncStarted logs the start of a sync run
func (l *Logger) SyncStarted(libraryDir, exportDir string, cursor time.Time) {
	l.Info("sync started",
		"library_dir", libraryDir,
		"export_dir", exportDir,
		"cursor", cursor)
}

// SyncCompleted logs the completion of a sync run
func (l *Logger) SyncCompleted(filesProcessed, exported, errors int, duration time.Duration) {
	l.Info("sync completed",
		"files_synced", filesProcessed,
		"exported", exported,
		"errors", errors,
		"duration", duration.Round(time.Millisecond))
}

// Classified logs the classification of an external file
func (l *Logger) Classified(file, class string) {
	l.Debug("file classified",
		"file", file,
		"class", class)
}

// FileSynced logs an external edit applied to a sheet
func (l *Logger) FileSynced(source, sheet, reason string) {
	l.Info("file synced",
		"source", source,
		"sheet", sheet,
		"reason", reason)
}

// Conflict logs an edit that was diverted to the inbox
func (l *Logger) Conflict(file, sheetID, inboxSheet string) {
	l.Warn("sync conflict",
		"file", file,
		"sheet", sheetID,
		"inbox_sheet", inboxSheet)
}

// FileError logs an error for a specific file
func (l *Logger) FileError(file string, err error) {
	l.Error("file error",
		"file", file,
		"error", err)
}

// ConversionError logs a conversion error
func (l *Logger) ConversionError(source, dest string, err error) {
	l.Error("conversion failed",
		"source", source,
		"dest", dest,
		"error", err)
}

// SourceSkipped logs a sheet or group that could not be read
func (l *Logger) SourceSkipped(err error) {
	l.Warn("source skipped",
		"error", err)
}

// ReferenceMiss logs an undefined reference key left as text
func (l *Logger) ReferenceMiss(file, kind, key string, line int) {
	l.Warn("undefined reference",
		"file", file,
		"kind", kind,
		"key", key,
		"line", line)
}

// Exported logs a sheet written to the staging tree
func (l *Logger) Exported(sheetID, path string) {
	l.Debug("sheet exported",
		"sheet", sheetID,
		"path", path)
}

// StateError logs a state-related error
func (l *Logger) StateError(operation string, err error) {
	l.Error("state error",
		"operation", operation,
		"error", err)
}

// ConfigLoaded logs successful config loading
func (l *Logger) ConfigLoaded(libraryDir, exportDir string, interval time.Duration) {
	l.Debug("config loaded",
		"library_dir", libraryDir,
		"export_dir", exportDir,
		"interval", interval)
}

// Skipped logs when a file is skipped
func (l *Logger) Skipped(file, reason string) {
	l.Debug("file skipped",
		"file", file,
		"reason", reason)
}
