package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette
var (
	AccentColor  = lipgloss.Color("#2E86DE") // Borders, table headings, spinner
	SuccessColor = lipgloss.Color("#43BF6D")
	ErrorColor   = lipgloss.Color("#FF5555")
	WarningColor = lipgloss.Color("#FFA500")
	MutedColor   = lipgloss.Color("#626262")
	TextColor    = lipgloss.Color("#FFFFFF")
)

const (
	minWidth        = 60
	MaxContentWidth = 100
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func indented(c lipgloss.Color) lipgloss.Style {
	return fg(c).PaddingLeft(2)
}

// Command header: title, command line and key/value parameters
var (
	HeaderTitleStyle      = indented(TextColor).Bold(true)
	HeaderCommandStyle    = indented(MutedColor)
	HeaderParamKeyStyle   = indented(MutedColor)
	HeaderParamValueStyle = fg(TextColor)
)

// Step lines
var (
	ProgressLabelStyle = indented(TextColor)
	StepCompleteStyle  = fg(SuccessColor)
	StepRunningStyle   = fg(WarningColor)
	StepPendingStyle   = fg(MutedColor)
	StepNoteStyle      = fg(MutedColor).Faint(true)
)

// Result boxes
var (
	SuccessTitleStyle         = fg(SuccessColor).Bold(true)
	ErrorTitleStyle           = fg(ErrorColor).Bold(true)
	WarningTitleStyle         = fg(WarningColor).Bold(true)
	ErrorMessageStyle         = fg(ErrorColor)
	ResultKeyStyle            = fg(MutedColor).Width(15)
	ResultValueStyle          = fg(TextColor)
	TroubleshootingTitleStyle = fg(MutedColor).Bold(true)
	TroubleshootingItemStyle  = fg(MutedColor)
)

// Device tables and the watch view
var (
	TableHeaderStyle = fg(AccentColor).Bold(true)
	TableCellStyle   = fg(TextColor)
	SpinnerStyle     = fg(AccentColor)
	HelpStyle        = indented(MutedColor)
)

// Markers
const (
	StepMarkerComplete = "✓"
	StepMarkerRunning  = "●"
	StepMarkerPending  = "·"
	StepMarkerSkipped  = "⊘"
	SuccessMarker      = "✓"
	FailureMarker      = "✗"
	WarningMarker      = "⚠"
)

// GetTerminalWidth returns the stdout width clamped to [60, MaxContentWidth].
// Anything that is not a terminal renders at the minimum.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return minWidth
	}
	return min(clampWidth(width), MaxContentWidth)
}

func clampWidth(width int) int {
	return max(width, minWidth)
}

// HeaderBorderStyle returns the rounded border around command headers
func HeaderBorderStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(AccentColor).
		Width(width - 2)
}

func resultBoxStyle(color lipgloss.Color, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 2)
}

// RenderHorizontalDivider repeats char across width
func RenderHorizontalDivider(width int, char string) string {
	return fg(AccentColor).Render(strings.Repeat(char, width))
}
