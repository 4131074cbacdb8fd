// Package notify tells the user about sync events that need attention.
package notify

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gerunddev/sheetbridge/internal/logger"
)

// Title is shown on desktop notifications
const Title = "sheetbridge"

// Notifier delivers a message to the user
type Notifier interface {
	Notify(title, message string) error
}

// Nop drops notifications
type Nop struct{}

func (Nop) Notify(title, message string) error { return nil }

// Log writes notifications to the log
type Log struct {
	Logger *logger.Logger
}

func (n Log) Notify(title, message string) error {
	n.Logger.Warn(message, "notify", title)
	return nil
}

// Command runs a desktop notification command
type Command struct {
	Path string
	// run is replaced in tests
	run func(name string, args ...string) error
}

// Args returns the command line for a notification. terminal-notifier
// takes flags; anything else gets title and message as arguments, which
// suits notify-send.
func (n *Command) Args(title, message string) []string {
	if strings.TrimSuffix(filepath.Base(n.Path), ".exe") == "terminal-notifier" {
		return []string{"-message", message, "-title", title}
	}
	return []string{title, message}
}

func (n *Command) Notify(title, message string) error {
	run := n.run
	if run == nil {
		run = func(name string, args ...string) error {
			out, err := exec.Command(name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
			}
			return nil
		}
	}
	if err := run(n.Path, n.Args(title, message)...); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}

// New returns a command notifier for command, or a log notifier when no
// command is configured.
func New(command string, log *logger.Logger) Notifier {
	if command != "" {
		return &Command{Path: command}
	}
	if log == nil {
		return Nop{}
	}
	return Log{Logger: log}
}
