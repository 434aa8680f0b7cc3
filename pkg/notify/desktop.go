package notify

import (
	"github.com/charmbracelet/log"
	"github.com/gen2brain/beeep"
)

// alertFunc is swapped out in tests.
var alertFunc = func(title, message string) error {
	return beeep.Alert(title, message, "")
}

// DesktopAlerts mirrors error notifications from q as desktop alerts. The
// returned func stops the mirroring.
func DesktopAlerts(q *Queue, title string, logger *log.Logger) func() {
	sub := q.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := range sub {
			if !n.Visible || n.Severity != SeverityError {
				continue
			}
			if err := alertFunc(title, n.Message); err != nil && logger != nil {
				logger.Warn("desktop alert failed", "err", err)
			}
		}
	}()
	return func() {
		q.Unsubscribe(sub)
		<-done
	}
}
