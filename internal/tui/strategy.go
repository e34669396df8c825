package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/service"
	"kimchi-signal/internal/strategy"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const strategyHistoryLimit = 30

// Strategy message types.
type strategyHistoryMsg []domain.StrategyRecord
type strategyErrMsg struct{ err error }
type strategyAnalyzedMsg strategy.Outcome

// StrategyModel lists past strategy records and runs new analyses.
type StrategyModel struct {
	services  Services
	history   []domain.StrategyRecord
	cursor    int
	spinner   spinner.Model
	analyzing bool
	status    string
	loading   bool
	err       error
	width     int
	height    int
}

func NewStrategyModel(svc Services) StrategyModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(SpinnerColor)
	return StrategyModel{
		services: svc,
		spinner:  sp,
		loading:  true,
	}
}

func (m StrategyModel) Init() tea.Cmd {
	return m.fetchHistoryCmd()
}

func (m StrategyModel) Update(msg tea.Msg) (StrategyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case strategyHistoryMsg:
		m.history = []domain.StrategyRecord(msg)
		m.loading = false
		m.err = nil
		if m.cursor >= len(m.history) {
			m.cursor = 0
		}
		return m, nil

	case strategyErrMsg:
		m.loading = false
		m.analyzing = false
		m.err = msg.err
		return m, nil

	case strategyAnalyzedMsg:
		m.analyzing = false
		m.status = analyzeStatus(strategy.Outcome(msg))
		m.cursor = 0
		return m, m.fetchHistoryCmd()

	case spinner.TickMsg:
		if m.analyzing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(m.history)-1 {
				m.cursor++
			}
		case key.Matches(msg, DefaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchHistoryCmd()
		case key.Matches(msg, DefaultKeyMap.Analyze), key.Matches(msg, DefaultKeyMap.ForceAnalyze):
			if m.analyzing {
				return m, nil
			}
			m.analyzing = true
			m.status = ""
			m.err = nil
			force := key.Matches(msg, DefaultKeyMap.ForceAnalyze)
			return m, tea.Batch(m.spinner.Tick, m.analyzeCmd(force))
		}
	}

	return m, nil
}

func (m StrategyModel) View() string {
	help := SubtextStyle.Render("j/k: move  a: analyze  A: force  R: refresh")
	sections := []string{HeaderStyle.Render("  Strategy History") + "  " + help, ""}

	if m.analyzing {
		sections = append(sections, fmt.Sprintf("  %s Asking the model...", m.spinner.View()))
	} else if m.status != "" {
		sections = append(sections, SubtextStyle.Render("  "+m.status))
	}
	if m.err != nil {
		sections = append(sections, ErrorStyle.Render("  "+strategyErrText(m.err)))
	}

	if m.loading && len(m.history) == 0 {
		sections = append(sections, SubtextStyle.Render("  Loading strategy history..."))
		return strings.Join(sections, "\n")
	}
	if len(m.history) == 0 {
		sections = append(sections, SubtextStyle.Render("  No strategy records yet"))
		return strings.Join(sections, "\n")
	}

	visible := m.height - 12
	if visible < 5 {
		visible = 5
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.history) {
		end = len(m.history)
	}

	var rows []string
	for i := start; i < end; i++ {
		line := FormatStrategy(m.history[i])
		if i == m.cursor {
			rows = append(rows, SelectedStyle.Render("> "+line))
		} else {
			rows = append(rows, "  "+line)
		}
	}
	sections = append(sections, rows...)
	sections = append(sections, "", BorderStyle.Width(m.width-2).Render(m.renderDetail(m.history[m.cursor])))
	return strings.Join(sections, "\n")
}

func (m *StrategyModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// History returns the loaded records (for testing).
func (m StrategyModel) History() []domain.StrategyRecord { return m.history }

// Cursor returns the selected row (for testing).
func (m StrategyModel) Cursor() int { return m.cursor }

func (m StrategyModel) renderDetail(r domain.StrategyRecord) string {
	lines := []string{
		HeaderStyle.Render("  " + r.AnalysisDate),
		fmt.Sprintf("  Buy %s  Sell %s", formatKRW(r.BuyPrice), formatKRW(r.SellPrice)),
	}
	if r.Summary != "" {
		lines = append(lines, "  "+r.Summary)
	}
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, SubtextStyle.Render(fmt.Sprintf("  %s: %s", k, string(r.Extra[k]))))
	}
	return strings.Join(lines, "\n")
}

func analyzeStatus(out strategy.Outcome) string {
	if out.Skipped {
		return fmt.Sprintf("Strategy for %s already exists; press A to regenerate.", out.Today)
	}
	if u, ok := out.Result.(strategy.Unparsed); ok {
		return fmt.Sprintf("Model reply for %s was not a strategy: %v", out.Today, u.Err)
	}
	return fmt.Sprintf("Saved strategy for %s.", out.Today)
}

func strategyErrText(err error) string {
	if errors.Is(err, service.ErrNotConfigured) {
		return "Strategy analysis is disabled: OPENAI_API_KEY is not set."
	}
	return fmt.Sprintf("Error: %v", err)
}

func (m StrategyModel) fetchHistoryCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Strategy == nil {
			return strategyErrMsg{err: fmt.Errorf("strategy service not available")}
		}
		history, err := m.services.Strategy.History(context.Background(), strategyHistoryLimit)
		if err != nil {
			return strategyErrMsg{err: err}
		}
		return strategyHistoryMsg(history)
	}
}

func (m StrategyModel) analyzeCmd(force bool) tea.Cmd {
	return func() tea.Msg {
		if m.services.Strategy == nil {
			return strategyErrMsg{err: fmt.Errorf("strategy service not available")}
		}
		out, err := m.services.Strategy.Analyze(context.Background(), force)
		if err != nil {
			return strategyErrMsg{err: err}
		}
		return strategyAnalyzedMsg(out)
	}
}
