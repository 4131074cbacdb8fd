package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gerunddev/sheetbridge/internal/config"
	"github.com/gerunddev/sheetbridge/internal/logger"
	"github.com/gerunddev/sheetbridge/internal/notify"
	"github.com/gerunddev/sheetbridge/internal/styles"
	"github.com/gerunddev/sheetbridge/internal/sync"
)

// session is the loaded configuration and logger shared by most commands
type session struct {
	cfg     *config.Config
	log     *logger.Logger
	cleanup func()
}

// openSession loads the configuration and opens the log file. Log lines
// are also written to echo when it is not nil.
func openSession(echo io.Writer) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" {
		if echo == nil {
			return &session{cfg: cfg, log: logger.Discard(), cleanup: func() {}}, nil
		}
		return &session{cfg: cfg, log: logger.NewWithLevel(echo, level), cleanup: func() {}}, nil
	}

	log, cleanup, err := logger.NewFileLogger(cfg.LogFile, logger.FileOptions{
		Level:      level,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Echo:       echo,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.ConfigLoaded(cfg.LibraryDir, cfg.ExportDir, cfg.Interval)
	return &session{cfg: cfg, log: log, cleanup: cleanup}, nil
}

// syncer returns a syncer wired to the session's logger and notifier
func (s *session) syncer() *sync.Syncer {
	syncer := sync.NewSyncer(s.cfg)
	syncer.SetLogger(s.log)
	syncer.SetNotifier(notify.New(s.cfg.NotifyCommand, s.log))
	return syncer
}

// relExport returns path relative to the export folder. Relative paths
// given on the command line are taken from the working directory.
func (s *session) relExport(path string) (string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	rel, err := filepath.Rel(s.cfg.ExportDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", fmt.Errorf("%s is not inside the export folder %s", path, s.cfg.ExportDir)
	}
	return abs, filepath.ToSlash(rel), nil
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, styles.ErrorStyle.Render("✗ "+err.Error()))
}

// ParseLogFile reads the last maxLines lines of the log file and finds the
// most recent completed run
func ParseLogFile(logPath string, maxLines int) ([]string, time.Time, int) {
	content, err := os.ReadFile(logPath)
	if err != nil {
		return []string{"Unable to read log file"}, time.Time{}, 0
	}

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	var lastSync time.Time
	filesSynced := 0

	// Format: 2025-11-27 14:11:57 INFO sync completed files_synced=3 ...
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !strings.Contains(line, "sync completed") {
			continue
		}
		if len(line) > 19 {
			if t, err := time.ParseInLocation(time.DateTime, line[:19], time.Local); err == nil {
				lastSync = t
			}
		}
		if idx := strings.Index(line, "files_synced="); idx != -1 {
			_, _ = fmt.Sscanf(line[idx:], "files_synced=%d", &filesSynced) //nolint:errcheck // best effort parsing
		}
		break
	}

	return lines, lastSync, filesSynced
}
