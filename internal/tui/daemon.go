package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gerunddev/sheetbridge/internal/styles"
)

// RefreshInterval is how often the dashboard reloads
const RefreshInterval = 2 * time.Second

// WatcherData holds the watcher's process state and recent activity
type WatcherData struct {
	Running      bool
	PID          int
	StartTime    time.Time
	LastSyncTime time.Time
	FilesSynced  int
	LogLines     []string
}

// WatcherMsg is sent when dashboard data is ready
type WatcherMsg struct {
	Data *WatcherData
	Err  error
}

type dashboardModel struct {
	data  *WatcherData
	err   error
	ready bool
}

// InitDashboardModel creates the watcher dashboard
func InitDashboardModel() dashboardModel {
	return dashboardModel{}
}

func (m dashboardModel) Init() tea.Cmd {
	return nil
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case WatcherMsg:
		m.ready = true
		m.data = msg.Data
		m.err = msg.Err
	}
	return m, nil
}

func (m dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("sheetbridge watcher"))
	b.WriteString("\n\n")

	if m.err != nil {
		return styles.ErrorStyle.Render("✗ Error: "+m.err.Error()) + "\n"
	}
	if !m.ready || m.data == nil {
		return b.String()
	}

	b.WriteString(styles.LabelStyle.Render("Watcher"))
	b.WriteString("\n")
	if m.data.Running {
		uptime := time.Since(m.data.StartTime).Round(time.Second)
		b.WriteString(fmt.Sprintf("  Status: %s\n", styles.SuccessStyle.Render("● Running")))
		b.WriteString(fmt.Sprintf("  PID:    %s\n", styles.ValueStyle.Render(fmt.Sprintf("%d", m.data.PID))))
		b.WriteString(fmt.Sprintf("  Uptime: %s\n", styles.ValueStyle.Render(uptime.String())))
	} else {
		b.WriteString(fmt.Sprintf("  Status: %s\n", styles.HelpStyle.Render("○ Not running")))
	}
	b.WriteString("\n")

	b.WriteString(styles.LabelStyle.Render("Last Run"))
	b.WriteString("\n")
	if !m.data.LastSyncTime.IsZero() {
		since := time.Since(m.data.LastSyncTime).Round(time.Second)
		b.WriteString(fmt.Sprintf("  Finished:     %s ago\n", styles.ValueStyle.Render(since.String())))
		b.WriteString(fmt.Sprintf("  Files synced: %s\n", styles.ValueStyle.Render(fmt.Sprintf("%d", m.data.FilesSynced))))
	} else {
		b.WriteString("  " + styles.HelpStyle.Render("No run completed yet") + "\n")
	}
	b.WriteString("\n")

	b.WriteString(styles.LabelStyle.Render("Recent Logs"))
	b.WriteString("\n")
	if len(m.data.LogLines) > 0 {
		for _, line := range m.data.LogLines {
			b.WriteString("  " + line + "\n")
		}
	} else {
		b.WriteString("  " + styles.HelpStyle.Render("No logs available") + "\n")
	}
	b.WriteString("\n")

	b.WriteString(styles.HelpStyle.Render(fmt.Sprintf("q quit • auto-refresh: %v", RefreshInterval)))
	b.WriteString("\n")
	return b.String()
}
