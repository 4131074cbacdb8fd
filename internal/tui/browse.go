package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gerunddev/sheetbridge/internal/styles"
)

// FileInfo is one export file and its state
type FileInfo struct {
	Rel     string
	SheetID string
	// Class is the classification name the next run would give the file
	Class string
}

// BrowseData holds every file in the export folder
type BrowseData struct {
	Files []FileInfo
}

// BrowseMsg is sent when browse data is ready
type BrowseMsg struct {
	Data *BrowseData
	Err  error
}

// DiffMsg is sent when a diff preview is ready
type DiffMsg struct {
	Content string
	Err     error
}

type browseModel struct {
	table       table.Model
	viewport    viewport.Model
	data        *BrowseData
	err         error
	ready       bool
	showingDiff bool
	selected    *FileInfo
	diffFunc    func(rel string, width int) (string, error)
}

// InitBrowseModel creates the export file browser. diffFunc renders the
// diff preview for a file.
func InitBrowseModel(diffFunc func(rel string, width int) (string, error)) browseModel {
	vp := viewport.New(100, 20)
	vp.Style = styles.ViewportStyle

	return browseModel{
		table: newTable([]table.Column{
			{Title: "File", Width: 60},
			{Title: "Status", Width: 14},
			{Title: "Sheet", Width: 8},
		}, 20),
		viewport: vp,
		diffFunc: diffFunc,
	}
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-10, 3))
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-6, 3)

	case tea.KeyMsg:
		if m.showingDiff {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "q", "esc":
				m.showingDiff = false
				return m, nil
			default:
				m.viewport, cmd = m.viewport.Update(msg)
				return m, cmd
			}
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k", "down", "j":
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		case "enter", "d":
			if m.data == nil || len(m.data.Files) == 0 {
				return m, nil
			}
			idx := m.table.Cursor()
			if idx >= len(m.data.Files) {
				return m, nil
			}
			m.selected = &m.data.Files[idx]
			m.showingDiff = true
			m.viewport.SetContent("Loading diff...")
			m.viewport.GotoTop()
			return m, m.loadDiff(m.selected.Rel, m.viewport.Width)
		}

	case BrowseMsg:
		m.ready = true
		m.data = msg.Data
		m.err = msg.Err
		if m.data != nil {
			rows := make([]table.Row, 0, len(m.data.Files))
			for _, f := range m.data.Files {
				icon, _ := styles.Status(f.Class)
				sheet := "✗"
				if f.SheetID != "" {
					sheet = "✓"
				}
				rows = append(rows, table.Row{f.Rel, icon + " " + f.Class, sheet})
			}
			m.table.SetRows(rows)
		}
		return m, nil

	case DiffMsg:
		content := msg.Content
		if msg.Err != nil {
			content = styles.ErrorStyle.Render("✗ " + msg.Err.Error())
		}
		m.viewport.SetContent(content)
		m.viewport.GotoTop()
		return m, nil
	}

	return m, nil
}

func (m browseModel) loadDiff(rel string, width int) tea.Cmd {
	return func() tea.Msg {
		if m.diffFunc == nil {
			return DiffMsg{Content: "No diff available"}
		}
		content, err := m.diffFunc(rel, width)
		return DiffMsg{Content: content, Err: err}
	}
}

func (m browseModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("sheetbridge export folder"))
	b.WriteString("\n\n")

	if m.err != nil {
		return styles.ErrorStyle.Render("✗ Error: "+m.err.Error()) + "\n"
	}
	if !m.ready || m.data == nil {
		return b.String()
	}

	if m.showingDiff && m.selected != nil {
		b.WriteString(styles.LabelStyle.Render("Diff: " + m.selected.Rel))
		b.WriteString("\n\n")
		b.WriteString(m.viewport.View())
		b.WriteString("\n\n")
		b.WriteString(styles.HelpStyle.Render("↑/k up • ↓/j down • esc/q back"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(styles.LabelStyle.Render(fmt.Sprintf("Files: %d", len(m.data.Files))))
	b.WriteString("\n\n")
	b.WriteString(styles.TableStyle.Render(m.table.View()))
	b.WriteString("\n\n")
	b.WriteString(styles.HelpStyle.Render("↑/k up • ↓/j down • enter/d diff • q quit"))
	b.WriteString("\n")
	return b.String()
}
