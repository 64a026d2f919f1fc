package cli

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorPrimary = lipgloss.Color("#7D56F4") // Purple
	colorSuccess = lipgloss.Color("#04B575") // Green
	colorError   = lipgloss.Color("#FF6B6B") // Red
	colorWarning = lipgloss.Color("#FFCC00") // Yellow
	colorMuted   = lipgloss.Color("#6C6C6C")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	// codeBoxStyle frames the device-flow user code so it stands out from
	// the surrounding instructions.
	codeBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 2).
			Bold(true)
)
