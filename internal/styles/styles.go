package styles

import "github.com/charmbracelet/lipgloss"

// Palette
const (
	Background = "#272822"
	Foreground = "#F8F8F2"

	Red    = "#F92672" // failures
	Orange = "#FD971F" // conflicts
	Yellow = "#E6DB74" // selection
	Green  = "#A6E22E" // done
	Cyan   = "#66D9EF" // new sheets
	Purple = "#AE81FF" // titles

	Muted  = "#75715E"
	Border = "#49483E"
)

var (
	SuccessStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(Green))
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(Red))
	WarningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(Orange))
	InfoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(Cyan))
	DimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color(Muted))
	TitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(Purple))
	LabelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(Muted)).Bold(true)
	ValueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(Foreground))
	HighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(Yellow)).Bold(true)
	SpinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(Purple))
	HelpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(Muted))

	TableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(Border))

	ViewportStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(Border)).
			Padding(1)
)

// Status returns the icon and style for a file classification name as
// reported by the sync engine
func Status(class string) (string, lipgloss.Style) {
	switch class {
	case "update":
		return "←", SuccessStyle
	case "new":
		return "+", InfoStyle
	case "orphaned":
		return "?", WarningStyle
	case "conflict":
		return "⚠", ErrorStyle
	default:
		return "✓", DimStyle
	}
}
