// Package dashboard implements the terminal live-monitoring view (C3–C5's
// read-only dashboard data contract, rendered as a TUI instead of left as a
// bare accessor): agents, pools, active alerts, and the metric series that
// feed them.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/alert"
	"github.com/orchestrace/control-plane/metrics"
	"github.com/orchestrace/control-plane/queue"
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	focusedStyle = baseStyle.BorderForeground(lipgloss.Color("205"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
)

// panelMetrics are the series DashboardSnapshot ranges for the bar-gauge
// row; both are among the names the metrics-collection loop records (see
// orchestrator/maintenance.go's collectMetrics).
var panelMetrics = []string{"error.rate", "error.count"}

// pane identifies which table currently has keyboard focus, for the
// copy-to-clipboard action (c copies the focused pane's selection).
type pane int

const (
	paneAgents pane = iota
	paneAlerts
	paneCount
)

func (p pane) String() string {
	switch p {
	case paneAgents:
		return "agents"
	case paneAlerts:
		return "alerts"
	default:
		return "?"
	}
}

// Model is the bubbletea model for the live dashboard.
type Model struct {
	agents  *agent.Manager
	tasks   *queue.Manager
	alerts  *alert.Engine
	metrics *metrics.Store

	agentTable table.Model
	poolTable  table.Model
	alertTable table.Model

	cache *RenderCache

	focus    pane
	width    int
	height   int
	lastSync time.Time
	copied   string
	err      error
}

// New builds a dashboard Model reading from the given components. Any of
// tasks/metrics may be nil in a configuration that doesn't wire them; the
// corresponding panel then renders empty rather than panicking.
func New(agents *agent.Manager, tasks *queue.Manager, alerts *alert.Engine, store *metrics.Store) Model {
	agentTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Agent", Width: 24},
			{Title: "Template", Width: 16},
			{Title: "Status", Width: 14},
			{Title: "Health", Width: 8},
			{Title: "Tasks", Width: 6},
			{Title: "Done/Failed", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	poolTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Pool", Width: 12},
			{Title: "Name", Width: 16},
			{Title: "Template", Width: 16},
			{Title: "Size", Width: 10},
			{Title: "Members", Width: 20},
		}),
		table.WithFocused(false),
		table.WithHeight(6),
	)

	alertTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Alert", Width: 14},
			{Title: "Level", Width: 10},
			{Title: "Metric", Width: 16},
			{Title: "Value", Width: 24},
			{Title: "Fired", Width: 10},
		}),
		table.WithFocused(false),
		table.WithHeight(6),
	)

	for _, t := range []*table.Model{&agentTable, &poolTable, &alertTable} {
		s := table.DefaultStyles()
		s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).BorderBottom(true).Bold(false)
		s.Selected = s.Selected.Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).Bold(false)
		t.SetStyles(s)
	}

	return Model{
		agents:     agents,
		tasks:      tasks,
		alerts:     alerts,
		metrics:    store,
		agentTable: agentTable,
		poolTable:  poolTable,
		alertTable: alertTable,
		cache:      NewRenderCache(),
		focus:      paneAgents,
	}
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.cache.Invalidate()
		return m, nil

	case tickMsg:
		m.refresh()
		m.lastSync = time.Now()
		m.cache.Invalidate()
		return m, tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.focus = (m.focus + 1) % paneCount
			m.applyFocus()
			m.cache.Invalidate()
			return m, nil
		case "c":
			m.copySelection()
			m.cache.Invalidate()
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case paneAgents:
		m.agentTable, cmd = m.agentTable.Update(msg)
	case paneAlerts:
		m.alertTable, cmd = m.alertTable.Update(msg)
	}
	m.cache.Invalidate()
	return m, cmd
}

func (m *Model) applyFocus() {
	m.agentTable.Blur()
	m.alertTable.Blur()
	switch m.focus {
	case paneAgents:
		m.agentTable.Focus()
	case paneAlerts:
		m.alertTable.Focus()
	}
}

// copySelection copies an identifier from the focused pane's selected row
// to the clipboard.
func (m *Model) copySelection() {
	var row table.Row
	switch m.focus {
	case paneAgents:
		row = m.agentTable.SelectedRow()
	case paneAlerts:
		row = m.alertTable.SelectedRow()
	}
	if row == nil {
		return
	}
	// Column 0 of every pane is a plain identifier (agent ID, alert ID),
	// never a styled value, so it can go straight to the clipboard.
	id := row[0]
	if err := clipboard.WriteAll(id); err != nil {
		m.err = err
		return
	}
	m.copied = id
	m.err = nil
}

// refresh rebuilds every table's rows from the current component state.
func (m *Model) refresh() {
	var agents []agent.Agent
	if m.agents != nil {
		agents = m.agents.List()
	}
	m.agentTable.SetRows(buildAgentRows(agents))

	var pools []agent.Pool
	if m.agents != nil {
		pools = m.agents.ListPools()
	}
	m.poolTable.SetRows(buildPoolRows(pools, agents))

	var active []alert.Alert
	if m.alerts != nil {
		active = m.alerts.ActiveAlerts()
	}
	m.alertTable.SetRows(buildAlertRows(active))
}

func (m Model) View() string {
	return m.cache.Get(m.width, m.height, m.render)
}

func (m Model) render(width, height int) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Orchestration Control Plane — Live Monitor"))
	b.WriteString("\n\n")

	if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
		b.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	b.WriteString(sectionStyle.Render("Agents"))
	b.WriteString("\n")
	b.WriteString(m.paneStyle(paneAgents).Render(m.agentTable.View()))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Pools"))
	b.WriteString("\n")
	b.WriteString(baseStyle.Render(m.poolTable.View()))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Alerts"))
	b.WriteString("\n")
	b.WriteString(m.paneStyle(paneAlerts).Render(m.alertTable.View()))
	b.WriteString("\n\n")

	b.WriteString(m.metricsPanel())
	b.WriteString("\n\n")

	footer := fmt.Sprintf("Last sync: %s | tab: switch pane | c: copy %s selection | q: quit",
		m.lastSync.Format("15:04:05"), m.focus)
	if m.copied != "" {
		footer += fmt.Sprintf(" | copied %q", m.copied)
	}
	b.WriteString(labelStyle.Render(footer))

	return b.String()
}

func (m Model) paneStyle(p pane) lipgloss.Style {
	if m.focus == p {
		return focusedStyle
	}
	return baseStyle
}

// metricsPanel renders the bar-gauge row over the Alert Engine's dashboard
// read model (§4.4's getDashboardData), not a direct store read, so the
// same data contract backs both this view and any future external client.
// The live queue depth is shown alongside it, computed straight from the
// dispatcher's current task list rather than its recorded metric history.
func (m Model) metricsPanel() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Metrics"))
	b.WriteString("\n")

	if m.tasks != nil {
		depth := queueDepth(m.tasks.List())
		b.WriteString(fmt.Sprintf("%-14s %s  depth=%d\n", "queue depth", bar(float64(depth)/20, 24), depth))
	}

	if m.alerts == nil || m.metrics == nil {
		b.WriteString(labelStyle.Render("(no metric history wired)"))
		return b.String()
	}

	snapshot := m.alerts.DashboardSnapshot(m.metrics, panelMetrics, time.Now().Add(-15*time.Minute), time.Now())
	for _, p := range snapshot.Panels {
		var frac float64
		switch {
		case p.Metric == "error.rate":
			frac = p.Aggregations.Avg
		case p.Aggregations.Max > 0:
			frac = p.Aggregations.Avg / p.Aggregations.Max
		}
		b.WriteString(fmt.Sprintf("%-14s %s  avg=%.2f max=%.2f n=%d\n",
			p.Metric, bar(frac, 24), p.Aggregations.Avg, p.Aggregations.Max, p.Aggregations.Count))
	}
	return b.String()
}
