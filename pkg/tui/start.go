package tui

import (
	"fmt"

	"duxwatch/pkg/actions"
	"duxwatch/pkg/config"
	"duxwatch/pkg/notify"
	"duxwatch/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the dashboard until the user quits. The watcher is expected
// to be started by the caller.
func Start(w *watcher.Watcher, q *notify.Queue, svc *actions.Service, cfg config.Config, version string) error {
	Version = version
	m, err := initialModel(w, q, svc, cfg)
	if err != nil {
		return err
	}
	defer w.Unsubscribe(m.events)
	if m.notes != nil {
		defer q.Unsubscribe(m.notes)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return nil
}
