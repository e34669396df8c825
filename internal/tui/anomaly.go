package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kimchi-signal/internal/series"
	"kimchi-signal/internal/service"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const anomalyScanDays = service.DefaultAnomalyDays

type anomalyReportMsg service.AnomalyReport
type anomalyErrMsg struct{ err error }

// AnomalyModel lists isolation-forest scores for the most recent premium days.
type AnomalyModel struct {
	services Services
	report   service.AnomalyReport
	loaded   bool
	loading  bool
	err      error
	width    int
	height   int
}

func NewAnomalyModel(svc Services) AnomalyModel {
	return AnomalyModel{services: svc, loading: true}
}

func (m AnomalyModel) Init() tea.Cmd {
	return m.scanCmd()
}

func (m AnomalyModel) Update(msg tea.Msg) (AnomalyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case anomalyReportMsg:
		m.report = service.AnomalyReport(msg)
		m.loaded = true
		m.loading = false
		m.err = nil
	case anomalyErrMsg:
		m.err = msg.err
		m.loading = false
	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Refresh) {
			m.loading = true
			return m, m.scanCmd()
		}
	}
	return m, nil
}

func (m AnomalyModel) View() string {
	lines := []string{
		HeaderStyle.Render(fmt.Sprintf("  Premium Anomalies (%dd)", anomalyScanDays)) + "  " + SubtextStyle.Render("R: rescan"),
		"",
	}

	switch {
	case m.loading && !m.loaded:
		lines = append(lines, SubtextStyle.Render("  Scoring premium history..."))
		return strings.Join(lines, "\n")
	case errors.Is(m.err, service.ErrInsufficientData):
		lines = append(lines, SubtextStyle.Render("  Not enough history to train the detector yet."))
		return strings.Join(lines, "\n")
	case m.err != nil:
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		return strings.Join(lines, "\n")
	}

	r := m.report
	lines = append(lines,
		SubtextStyle.Render(fmt.Sprintf("  trained on %d days, flag at score >= %s", r.TrainedOn, series.Format(r.Threshold, 2))),
		SubtextStyle.Render("  Date         Premium   Score"),
		SubtextStyle.Render("  "+strings.Repeat("─", 32)),
	)
	if len(r.Scores) == 0 {
		lines = append(lines, SubtextStyle.Render("  No days scored"))
		return strings.Join(lines, "\n")
	}
	for _, s := range r.Scores {
		row := fmt.Sprintf("  %s %8s %7s", s.Date, series.Format(s.Premium, series.DisplayPlaces), series.Format(s.Score, 3))
		if s.Anomalous {
			row = ErrorStyle.Render(row + "  !")
		}
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n")
}

func (m *AnomalyModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Flagged counts the anomalous days in the last report.
func (m AnomalyModel) Flagged() int {
	n := 0
	for _, s := range m.report.Scores {
		if s.Anomalous {
			n++
		}
	}
	return n
}

func (m AnomalyModel) scanCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Anomaly == nil {
			return anomalyErrMsg{err: fmt.Errorf("anomaly service not available")}
		}
		report, err := m.services.Anomaly.Scan(context.Background(), anomalyScanDays)
		if err != nil {
			return anomalyErrMsg{err: err}
		}
		return anomalyReportMsg(report)
	}
}
