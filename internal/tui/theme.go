package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Tab bar styles
	TabStyle       = lipgloss.NewStyle().Padding(0, 2)
	ActiveTabStyle = TabStyle.Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))
	InactiveTabStyle = TabStyle.
				Foreground(lipgloss.Color("#888888"))

	// Premium colors
	PremiumUpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	PremiumDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	PremiumZeroStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	// Monitor action colors
	ActionBuyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	ActionSellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	ActionHoldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))

	// General styles
	HeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA"))
	SubtextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	BorderStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555"))
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	SelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	SpinnerColor  = lipgloss.Color("#7D56F4")

	// Score bar colors
	ScoreGoodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	ScoreOkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	ScoreBadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)
