package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gerunddev/sheetbridge/internal/styles"
)

// PendingFile is an export file the next run would act on
type PendingFile struct {
	Rel   string
	Class string
}

// StatusData holds everything the status display shows
type StatusData struct {
	LibraryDir  string
	ExportDir   string
	Dialect     string
	Mirror      string
	Interval    time.Duration
	LastSynced  time.Time
	Sheets      int
	ExportFiles int
	Pending     []PendingFile
	Retrying    []string
	Skipped     int
}

// StatusMsg is sent when status data is ready
type StatusMsg struct {
	Data *StatusData
	Err  error
}

// RefreshStatusMsg triggers a status refresh
type RefreshStatusMsg struct{}

type statusModel struct {
	spinner     spinner.Model
	table       table.Model
	data        *StatusData
	err         error
	scanning    bool
	ready       bool
	refreshFunc func()
}

func newTable(columns []table.Column, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(styles.Border)).
		BorderBottom(true).
		Bold(false)
	ts.Selected = ts.Selected.
		Foreground(lipgloss.Color(styles.Background)).
		Background(lipgloss.Color(styles.Yellow)).
		Bold(false)
	t.SetStyles(ts)
	return t
}

// InitStatusModel creates the status display. refreshFunc gathers new data
// and sends a StatusMsg.
func InitStatusModel(refreshFunc func()) statusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	return statusModel{
		spinner: s,
		table: newTable([]table.Column{
			{Title: "File", Width: 60},
			{Title: "Status", Width: 14},
		}, 10),
		scanning:    true,
		refreshFunc: refreshFunc,
	}
}

func (m statusModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k", "down", "j":
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		case "r":
			if m.scanning || m.refreshFunc == nil {
				return m, nil
			}
			m.scanning = true
			return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return RefreshStatusMsg{} })
		}

	case RefreshStatusMsg:
		if m.refreshFunc != nil {
			go m.refreshFunc()
		}
		return m, nil

	case StatusMsg:
		m.scanning = false
		m.ready = true
		m.data = msg.Data
		m.err = msg.Err
		if m.data != nil {
			rows := make([]table.Row, 0, len(m.data.Pending))
			for _, p := range m.data.Pending {
				icon, _ := styles.Status(p.Class)
				rows = append(rows, table.Row{p.Rel, icon + " " + p.Class})
			}
			m.table.SetRows(rows)
		}
		return m, nil

	case spinner.TickMsg:
		if m.scanning {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m statusModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("sheetbridge status"))
	b.WriteString("\n\n")

	if m.err != nil {
		return styles.ErrorStyle.Render("✗ Error: "+m.err.Error()) + "\n"
	}
	if m.scanning {
		b.WriteString(fmt.Sprintf("%s Scanning library and export folder...\n", m.spinner.View()))
		return b.String()
	}
	if !m.ready || m.data == nil {
		return b.String()
	}
	d := m.data

	b.WriteString(styles.LabelStyle.Render("Configuration"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Library:       %s\n", styles.ValueStyle.Render(d.LibraryDir)))
	b.WriteString(fmt.Sprintf("  Export folder: %s\n", styles.ValueStyle.Render(d.ExportDir)))
	b.WriteString(fmt.Sprintf("  Dialect:       %s\n", styles.ValueStyle.Render(d.Dialect)))
	b.WriteString(fmt.Sprintf("  Mirror:        %s\n", styles.ValueStyle.Render(d.Mirror)))
	b.WriteString(fmt.Sprintf("  Interval:      %s\n", styles.ValueStyle.Render(d.Interval.String())))
	b.WriteString("\n")

	b.WriteString(styles.LabelStyle.Render("Sync"))
	b.WriteString("\n")
	if d.LastSynced.IsZero() {
		b.WriteString("  " + styles.WarningStyle.Render("● Never synced") + "\n")
	} else {
		b.WriteString(fmt.Sprintf("  Last sync:    %s\n", styles.ValueStyle.Render(d.LastSynced.Format("2006-01-02 15:04:05"))))
	}
	b.WriteString(fmt.Sprintf("  Sheets:       %s\n", styles.ValueStyle.Render(fmt.Sprintf("%d", d.Sheets))))
	b.WriteString(fmt.Sprintf("  Export files: %s\n", styles.ValueStyle.Render(fmt.Sprintf("%d", d.ExportFiles))))
	if d.Skipped > 0 {
		b.WriteString("  " + styles.WarningStyle.Render(fmt.Sprintf("⚠ %d unreadable sheet(s) or group(s) skipped", d.Skipped)) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(styles.LabelStyle.Render("Pending Edits"))
	b.WriteString("\n")
	if len(d.Pending) == 0 {
		b.WriteString("  " + styles.SuccessStyle.Render("✓ No external edits") + "\n\n")
	} else {
		b.WriteString("  " + styles.HighlightStyle.Render(fmt.Sprintf("● %d file(s) will be synced", len(d.Pending))) + "\n\n")
		b.WriteString(styles.TableStyle.Render(m.table.View()))
		b.WriteString("\n\n")
	}

	if len(d.Retrying) > 0 {
		b.WriteString(styles.LabelStyle.Render("Retrying"))
		b.WriteString("\n")
		for _, rel := range d.Retrying {
			b.WriteString("  " + styles.ErrorStyle.Render("✗ "+rel) + "\n")
		}
		b.WriteString("\n")
	}

	if len(d.Pending) > 0 {
		b.WriteString(styles.HelpStyle.Render("↑/k up • ↓/j down • r refresh • q quit"))
	} else {
		b.WriteString(styles.HelpStyle.Render("r refresh • q quit"))
	}
	b.WriteString("\n")
	return b.String()
}
