package styles

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette and base styles for the simulator.
type Theme struct {
	// Colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color
	TextDim   lipgloss.Color

	// Base styles
	Border     lipgloss.Style
	Title      lipgloss.Style
	TitleMuted lipgloss.Style
	Label      lipgloss.Style
	Value      lipgloss.Style

	LEDOn        lipgloss.Style
	LEDOff       lipgloss.Style
	ButtonDown   lipgloss.Style
	ButtonUp     lipgloss.Style
	StatusOK     lipgloss.Style
	StatusBad    lipgloss.Style
	StatusMaybe  lipgloss.Style
	EventTime    lipgloss.Style
	EventType    lipgloss.Style
	EventSummary lipgloss.Style
}

// DefaultTheme returns the default simulator theme.
func DefaultTheme() Theme {
	primary := lipgloss.Color("#DC2626")   // Red, the button
	secondary := lipgloss.Color("#06B6D4") // Cyan
	success := lipgloss.Color("#22C55E")   // Green
	warning := lipgloss.Color("#EAB308")   // Yellow
	errorC := lipgloss.Color("#EF4444")    // Red
	muted := lipgloss.Color("#6B7280")     // Gray
	text := lipgloss.Color("#F9FAFB")      // White
	textDim := lipgloss.Color("#9CA3AF")   // Light gray

	return Theme{
		Primary:   primary,
		Secondary: secondary,
		Success:   success,
		Warning:   warning,
		Error:     errorC,
		Muted:     muted,
		Text:      text,
		TextDim:   textDim,

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(text),

		TitleMuted: lipgloss.NewStyle().
			Foreground(textDim),

		Label: lipgloss.NewStyle().
			Foreground(textDim).
			Width(14),

		Value: lipgloss.NewStyle().
			Foreground(text),

		LEDOn: lipgloss.NewStyle().
			Bold(true).
			Foreground(success),

		LEDOff: lipgloss.NewStyle().
			Foreground(muted),

		ButtonDown: lipgloss.NewStyle().
			Bold(true).
			Foreground(text).
			Background(primary).
			Padding(0, 1),

		ButtonUp: lipgloss.NewStyle().
			Foreground(primary).
			Padding(0, 1),

		StatusOK: lipgloss.NewStyle().
			Foreground(success),

		StatusBad: lipgloss.NewStyle().
			Foreground(errorC),

		StatusMaybe: lipgloss.NewStyle().
			Foreground(warning),

		EventTime: lipgloss.NewStyle().
			Foreground(muted),

		EventType: lipgloss.NewStyle().
			Foreground(secondary).
			Width(20),

		EventSummary: lipgloss.NewStyle().
			Foreground(text),
	}
}

// DefaultStyles returns the default theme for convenience.
var DefaultStyles = DefaultTheme()
