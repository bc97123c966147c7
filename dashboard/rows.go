package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/alert"
	"github.com/orchestrace/control-plane/queue"
)

var agentStatusStyle = map[agent.Status]lipgloss.Style{
	agent.StatusIdle:         lipgloss.NewStyle().Foreground(lipgloss.Color("green")),
	agent.StatusBusy:         lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true),
	agent.StatusInitializing: lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")),
	agent.StatusOffline:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	agent.StatusError:        lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true),
	agent.StatusTerminating:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	agent.StatusTerminated:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
}

var alertLevelStyle = map[alert.Level]lipgloss.Style{
	alert.LevelInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	alert.LevelWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")),
	alert.LevelCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true),
}

func coloredAgentStatus(s agent.Status) string {
	style, ok := agentStatusStyle[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

func coloredAlertLevel(l alert.Level) string {
	style, ok := alertLevelStyle[l]
	if !ok {
		return string(l)
	}
	return style.Render(string(l))
}

// buildAgentRows renders one table.Row per agent, in the order given.
func buildAgentRows(agents []agent.Agent) []table.Row {
	rows := make([]table.Row, 0, len(agents))
	for _, a := range agents {
		rows = append(rows, table.Row{
			a.ID,
			a.TemplateType,
			coloredAgentStatus(a.Status),
			fmt.Sprintf("%.2f", a.Health),
			fmt.Sprintf("%d", a.CurrentTaskCount),
			fmt.Sprintf("%d/%d", a.TasksCompleted, a.TasksFailed),
		})
	}
	return rows
}

// buildPoolRows renders one table.Row per pool, counting each member
// agent's current status from the live agent list (a Pool only remembers
// membership, not status).
func buildPoolRows(pools []agent.Pool, agents []agent.Agent) []table.Row {
	statusByID := make(map[string]agent.Status, len(agents))
	for _, a := range agents {
		statusByID[a.ID] = a.Status
	}

	rows := make([]table.Row, 0, len(pools))
	for _, p := range pools {
		idle, busy := 0, 0
		for _, id := range p.AgentIDs {
			switch statusByID[id] {
			case agent.StatusIdle:
				idle++
			case agent.StatusBusy:
				busy++
			}
		}
		rows = append(rows, table.Row{
			p.ID,
			p.Name,
			p.TemplateType,
			fmt.Sprintf("%d/%d-%d", len(p.AgentIDs), p.MinSize, p.MaxSize),
			fmt.Sprintf("%d idle / %d busy", idle, busy),
		})
	}
	return rows
}

// buildAlertRows renders one table.Row per active alert, newest first.
func buildAlertRows(alerts []alert.Alert) []table.Row {
	sorted := append([]alert.Alert(nil), alerts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	rows := make([]table.Row, 0, len(sorted))
	for _, a := range sorted {
		rows = append(rows, table.Row{
			a.ID,
			coloredAlertLevel(a.Level),
			a.Metric,
			fmt.Sprintf("%.2f (threshold %.2f)", a.Value, a.Threshold),
			a.Timestamp.Format("15:04:05"),
		})
	}
	return rows
}

// queueDepth counts tasks still waiting for or pending assignment, the same
// definition the metrics-collection loop's "queue.depth" metric uses.
func queueDepth(tasks []queue.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == queue.StatusQueued || t.Status == queue.StatusAssigned {
			n++
		}
	}
	return n
}

// bar renders a fraction in [0,1] as a block-character gauge, colored by
// how close it is to saturating.
func bar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(float64(width) * frac)
	out := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	var style lipgloss.Style
	switch {
	case frac >= 0.9:
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("red"))
	case frac >= 0.7:
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))
	default:
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("green"))
	}
	return style.Render(out)
}
