package dashboard

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/alert"
	"github.com/orchestrace/control-plane/metrics"
	"github.com/orchestrace/control-plane/queue"
)

// Run starts the TUI dashboard over the given components and blocks until
// the user quits (q / ctrl+c).
func Run(agents *agent.Manager, tasks *queue.Manager, alerts *alert.Engine, store *metrics.Store) error {
	m := New(agents, tasks, alerts, store)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
