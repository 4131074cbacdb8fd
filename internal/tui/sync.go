package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gerunddev/sheetbridge/internal/styles"
)

// SyncResult summarises a finished run for display
type SyncResult struct {
	Created   int
	Updated   int
	Orphans   int
	Conflicts []string
	Exported  int
	Errors    []error
	DryRun    bool
	Duration  time.Duration
}

// SyncMsg is sent when the run completes
type SyncMsg struct {
	Result *SyncResult
	Err    error
}

type syncModel struct {
	spinner  spinner.Model
	status   string
	complete bool
	result   *SyncResult
	err      error
}

// InitSyncModel creates the progress display for one run
func InitSyncModel(status string) syncModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	return syncModel{
		spinner: s,
		status:  status,
	}
}

func (m syncModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case SyncMsg:
		m.complete = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m syncModel) View() string {
	if !m.complete {
		return fmt.Sprintf("\n%s %s\n\n", m.spinner.View(), m.status)
	}
	if m.err != nil {
		return styles.ErrorStyle.Render("✗ Sync failed: "+m.err.Error()) + "\n"
	}
	return RenderSyncResult(m.result)
}

// RenderSyncResult formats a run summary
func RenderSyncResult(r *SyncResult) string {
	var b strings.Builder
	applied := r.Created + r.Updated + r.Orphans + len(r.Conflicts)

	verb := "Synced"
	if r.DryRun {
		verb = "Would sync"
	}
	if applied == 0 {
		b.WriteString(styles.SuccessStyle.Render("✓ No external edits"))
	} else {
		b.WriteString(styles.SuccessStyle.Render(fmt.Sprintf("✓ %s %d file(s)", verb, applied)))
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf(" (%d new, %d updated, %d orphaned)", r.Created, r.Updated, r.Orphans)))
	}
	b.WriteString("\n")

	if len(r.Conflicts) > 0 {
		b.WriteString(styles.WarningStyle.Render(fmt.Sprintf("⚠ %d conflict(s), edits moved to the inbox:", len(r.Conflicts))))
		b.WriteString("\n")
		for _, c := range r.Conflicts {
			b.WriteString(styles.DimStyle.Render("  " + c))
			b.WriteString("\n")
		}
	}
	if !r.DryRun {
		b.WriteString(styles.InfoStyle.Render(fmt.Sprintf("  %d sheet(s) exported", r.Exported)))
		b.WriteString("\n")
	}
	if len(r.Errors) > 0 {
		b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("✗ %d error(s)", len(r.Errors))))
		b.WriteString("\n")
		for _, err := range r.Errors {
			b.WriteString(styles.DimStyle.Render("  " + err.Error()))
			b.WriteString("\n")
		}
	}
	b.WriteString(styles.HelpStyle.Render(fmt.Sprintf("Completed in %v", r.Duration.Round(time.Millisecond))))
	b.WriteString("\n")
	return b.String()
}
