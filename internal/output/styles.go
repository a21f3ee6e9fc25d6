package output

import "github.com/charmbracelet/lipgloss"

// 256-color palette. One accent for healthy state, conventional
// red/yellow for divergences and degradations.
const (
	colorGreen  = "42"  // consistent verdict
	colorRed    = "196" // phantoms, missing, mismatches
	colorYellow = "220" // skips and config findings
	colorWhite  = "255" // headers
	colorGray   = "245" // labels, secondary text
)

// Styles holds the text styles used by the report renderer.
type Styles struct {
	Header  lipgloss.Style
	Clean   lipgloss.Style
	Problem lipgloss.Style
	Warning lipgloss.Style
	Label   lipgloss.Style
	Dim     lipgloss.Style
}

// DefaultStyles returns the colored styles for terminal output.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWhite)),
		Clean:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorGreen)),
		Problem: lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)).Faint(true),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Clean:   lipgloss.NewStyle(),
		Problem: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles for the color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
