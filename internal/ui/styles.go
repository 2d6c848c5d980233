package ui

import "github.com/charmbracelet/lipgloss"

// Color palette - asitop-inspired lime green theme
// Single accent color for professional, distinctive look
const (
	ColorLime     = "154" // Primary accent (#AFFF00) - bright lime green
	ColorLimeDim  = "106" // Dimmed lime for inactive/borders
	ColorWhite    = "255" // Headers, important text
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Box borders, separators
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds all UI styles for TUI rendering.
type Styles struct {
	// Text styles
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Stage    lipgloss.Style
	Active   lipgloss.Style
	Progress lipgloss.Style

	// Panel/layout styles
	Border    lipgloss.Style
	Panel     lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style
}

// color resolves a palette color to itself in DefaultStyles, or to the
// terminal's default foreground in NoColorStyles — keeping both style sets
// built from the same field list instead of two hand-maintained struct
// literals that can drift apart when a field is added.
func color(enabled bool, code string) lipgloss.Color {
	if !enabled {
		return ""
	}
	return lipgloss.Color(code)
}

// panelStyle draws a rounded border around panels only in colored mode;
// plain mode leaves panels unstyled so piped/CI output has no box-drawing
// characters to strip.
func panelStyle(colored bool) lipgloss.Style {
	if !colored {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1)
}

// buildStyles constructs a Styles set, applying the lime green palette when
// colored is true and plain (uncolored) styles otherwise.
func buildStyles(colored bool) Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(color(colored, ColorLime)),
		Success:  lipgloss.NewStyle().Foreground(color(colored, ColorLime)),
		Warning:  lipgloss.NewStyle().Foreground(color(colored, ColorYellow)),
		Error:    lipgloss.NewStyle().Foreground(color(colored, ColorRed)),
		Dim:      lipgloss.NewStyle().Foreground(color(colored, ColorDarkGray)),
		Stage:    lipgloss.NewStyle().Foreground(color(colored, ColorLimeDim)),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(color(colored, ColorLime)),
		Progress: lipgloss.NewStyle().Foreground(color(colored, ColorLime)),

		Border:    lipgloss.NewStyle().Foreground(color(colored, ColorDarkGray)),
		Panel:     panelStyle(colored),
		Sparkline: lipgloss.NewStyle().Foreground(color(colored, ColorLime)),
		Speed:     lipgloss.NewStyle().Foreground(color(colored, ColorGray)),
		Label:     lipgloss.NewStyle().Foreground(color(colored, ColorGray)),
	}
}

// DefaultStyles returns styled components for TUI mode, using the lime
// green accent palette.
func DefaultStyles() Styles {
	return buildStyles(true)
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	return buildStyles(false)
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	return buildStyles(!noColor)
}
