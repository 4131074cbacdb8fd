// Package auditlog collects what a sync run did and stores it as a sheet in
// the library, so the user sees it next to their writing.
package auditlog

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gerunddev/sheetbridge/internal/convert"
	"github.com/gerunddev/sheetbridge/internal/library"
	"github.com/gerunddev/sheetbridge/internal/markup"
	"github.com/gerunddev/sheetbridge/internal/sheet"
)

// TimeLayout formats times in log lines and log titles
const TimeLayout = "2006-01-02 15:04:05"

// Group is the library group log sheets are written to
var (
	GroupName        = library.StableGroupName("sync-logs")
	GroupDisplayName = "Sync Logs"
	GroupIcon        = "Gear"
)

// Log is an append-only list of Markdown lines. Only numbered lines mark
// the log as worth writing.
type Log struct {
	runTime time.Time
	lines   []string
	n       int
	events  int
}

// New starts a log for the run at runTime
func New(runTime time.Time) *Log {
	return &Log{
		runTime: runTime,
		lines:   []string{"# " + Title(runTime)},
	}
}

// Title returns the log sheet title for a run
func Title(runTime time.Time) string {
	return "Log - " + runTime.Format(TimeLayout)
}

// AddEntry appends a line as is
func (l *Log) AddEntry(text string) {
	l.lines = append(l.lines, text)
}

// AddLine appends a numbered event line: the verb and time on the first
// row, the affected title on a second row of the same list item.
func (l *Log) AddLine(verb string, at time.Time, title, suffix string) {
	l.n++
	l.events++
	l.lines = append(l.lines, fmt.Sprintf("%d. %s%s%s%s%s",
		l.n, verb, at.Format(TimeLayout), suffix, markup.MarkdownLineBreak, title))
}

// ResetNumbering restarts numbering for the next section
func (l *Log) ResetNumbering() {
	l.n = 0
}

// Dirty reports whether any event was logged
func (l *Log) Dirty() bool {
	return l.events > 0
}

// Len returns the number of events logged
func (l *Log) Len() int {
	return l.events
}

// Markdown renders the log
func (l *Log) Markdown() string {
	return strings.Join(l.lines, "\n")
}

// Write stores the log as a new sheet at the top of the log group below
// groupsDir, creating the group when needed. The sheet is stamped with
// the run time. It returns the new sheet package path.
func (l *Log) Write(groupsDir string) (string, error) {
	dir, err := library.EnsureGroup(groupsDir, GroupName, GroupDisplayName, GroupIcon)
	if err != nil {
		return "", fmt.Errorf("failed to create log group: %w", err)
	}

	text := l.Markdown()
	id := library.NewSheetID()
	pkg := filepath.Join(dir, id+sheet.PackageExt)

	res := convert.ToSheet(text, convert.ReverseOptions{
		Path:        pkg,
		Attachments: convert.AttachmentsAsText,
	})
	res.Document.ID = id

	if err := sheet.Write(pkg, res.Document, text, l.runTime); err != nil {
		return "", fmt.Errorf("failed to write log sheet: %w", err)
	}
	if err := library.PrependSheet(dir, id); err != nil {
		return "", err
	}
	return pkg, nil
}
