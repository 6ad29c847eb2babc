package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorBlue   = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("42")
	ColorYellow = lipgloss.Color("220")
	ColorOrange = lipgloss.Color("208")
	ColorRed    = lipgloss.Color("196")
	ColorPink   = lipgloss.Color("201")
	ColorGray   = lipgloss.Color("240")
	ColorWhite  = lipgloss.Color("252")
	ColorNavy   = lipgloss.Color("17")
)

// seriesColors is assigned to metrics in the order a chart lists them.
var seriesColors = []lipgloss.Color{ColorBlue, ColorOrange, ColorGreen, ColorPink}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorNavy).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.
				BorderForeground(ColorBlue)

	chartTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBlue)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorYellow)

	destinationStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Background(ColorGreen)

	hopStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Background(ColorBlue)

	statusStyles = map[string]lipgloss.Style{
		"ok":      lipgloss.NewStyle().Foreground(ColorGreen),
		"warning": lipgloss.NewStyle().Foreground(ColorYellow),
		"error":   lipgloss.NewStyle().Foreground(ColorRed),
		"muted":   lipgloss.NewStyle().Foreground(ColorGray),
	}
)

func seriesColor(i int) lipgloss.Color {
	return seriesColors[i%len(seriesColors)]
}
