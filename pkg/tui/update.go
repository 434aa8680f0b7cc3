package tui

import (
	"context"
	"fmt"

	"duxwatch/pkg/actions"
	"duxwatch/pkg/amount"
	"duxwatch/pkg/models"
	"duxwatch/pkg/notify"
	"duxwatch/pkg/tabs"
	"duxwatch/pkg/watcher"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case watcher.Event:
		cmds = append(cmds, listenForWatcher(m.events))
		m.applyEvent(msg)

	case notify.Notification:
		cmds = append(cmds, listenForNotifications(m.notes))
		m.notification = msg

	case sendResultMsg:
		m.submitting = false
		if msg.err == nil {
			m.closeSendForm()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 10
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}
		m.updateHistoryViewport()

	case tea.KeyMsg:
		if m.sending {
			return m.updateSendForm(msg)
		}
		return m.handleKey(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) applyEvent(e watcher.Event) {
	m.lastUpdate = e.At
	if e.Type == watcher.EventRefreshFailed {
		if reason, ok := e.Data.(string); ok {
			m.failures[e.Category] = reason
		}
		return
	}
	delete(m.failures, e.Category)

	switch e.Type {
	case watcher.EventBalancesUpdated:
		m.loading = false
		if snap, ok := e.Data.(models.BalanceSnapshot); ok {
			f, _ := snap.TotalUSD.Float64()
			m.usdHistory = appendHistory(m.usdHistory, f)
		}
	case watcher.EventStatsUpdated:
		if stats, ok := e.Data.(models.NetworkStats); ok {
			m.peersHistory = appendHistory(m.peersHistory, float64(stats.Network.ConnectedPeers))
		}
	case watcher.EventTransactionsUpdated:
		m.updateHistoryViewport()
	}
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp

	case key.Matches(msg, m.keys.Balances):
		m.selectTab(tabs.Balances)
	case key.Matches(msg, m.keys.Receive):
		m.selectTab(tabs.Receive)
	case key.Matches(msg, m.keys.History):
		m.selectTab(tabs.History)
	case key.Matches(msg, m.keys.Keys):
		m.selectTab(tabs.Keys)
	case key.Matches(msg, m.keys.NextTab):
		prev := m.tabs.Active()
		m.tabs.Next()
		m.afterSelect(prev)
	case key.Matches(msg, m.keys.PrevTab):
		prev := m.tabs.Active()
		m.tabs.Prev()
		m.afterSelect(prev)

	case key.Matches(msg, m.keys.Up, m.keys.Down) && m.tabs.Active() == tabs.History:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.selectableCurrencies())-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Refresh):
		active := m.tabs.Active()
		m.selectTab(active)
		m.notify(fmt.Sprintf("Refreshing %s...", active.Title()), notify.SeveritySuccess)

	case key.Matches(msg, m.keys.Copy):
		m.copySelection()

	case key.Matches(msg, m.keys.Send):
		m.openSendForm()
		return m, nil

	case key.Matches(msg, m.keys.Preferred):
		if m.tabs.Active() != tabs.Balances {
			break
		}
		if cur, ok := m.selectedCurrency(); ok {
			return m, m.setPreferred(cur)
		}

	case key.Matches(msg, m.keys.Reveal):
		if m.tabs.Active() != tabs.Keys {
			break
		}
		if m.privacyMode {
			m.notify("Disable privacy mode to reveal the private key", notify.SeverityError)
			break
		}
		m.panes.revealKeys = !m.panes.revealKeys

	case key.Matches(msg, m.keys.Privacy):
		m.privacyMode = !m.privacyMode
		if m.privacyMode {
			m.panes.revealKeys = false
		}
		m.updateHistoryViewport()
		status := "Privacy mode off"
		if m.privacyMode {
			status = "Privacy mode on"
		}
		m.notify(status, notify.SeveritySuccess)
	}

	return m, nil
}

// selectTab hands the choice to the controller, which requests the tab's
// data even when it is already active.
func (m *model) selectTab(t tabs.Tab) {
	prev := m.tabs.Active()
	_ = m.tabs.Select(t)
	m.afterSelect(prev)
}

func (m *model) afterSelect(prev tabs.Tab) {
	if m.tabs.Active() != prev {
		m.cursor = 0
	}
	if m.panes.historyTop {
		m.panes.historyTop = false
		m.updateHistoryViewport()
		m.viewport.GotoTop()
	}
}

func (m *model) copySelection() {
	var text, what string
	switch m.tabs.Active() {
	case tabs.Receive:
		cur, ok := m.selectedCurrency()
		if !ok {
			m.notify("No address to copy", notify.SeverityError)
			return
		}
		addrs, _ := m.store.GetAddresses()
		text, what = addrs[cur], cur.Name()+" address"
	case tabs.Keys:
		kp, ok := m.store.GetKeys()
		if !ok || kp.PublicKey == "" {
			m.notify("No public key to copy", notify.SeverityError)
			return
		}
		text, what = kp.PublicKey, "Public key"
	default:
		return
	}

	if err := clipboard.WriteAll(text); err != nil {
		m.notify("Clipboard unavailable: "+err.Error(), notify.SeverityError)
		return
	}
	m.notify(what+" copied to clipboard!", notify.SeveritySuccess)
}

func (m *model) setPreferred(cur amount.Currency) tea.Cmd {
	a := m.actions
	timeout := m.config.RequestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		// The outcome reaches the user through the notification queue.
		_ = a.SetPreferredCurrency(ctx, string(cur))
		return nil
	}
}

func (m *model) openSendForm() {
	m.sending = true
	m.sendFocus = fieldTo
	if m.sendInputs[fieldCurrency].Value() == "" {
		if cur, ok := m.selectedCurrency(); ok {
			m.sendInputs[fieldCurrency].SetValue(string(cur))
		}
	}
	for i := range m.sendInputs {
		m.sendInputs[i].Blur()
	}
	m.sendInputs[fieldTo].Focus()
}

func (m *model) closeSendForm() {
	m.sending = false
	m.sendFocus = fieldTo
	for i := range m.sendInputs {
		m.sendInputs[i].Reset()
		m.sendInputs[i].Blur()
	}
}

func (m *model) focusField(i int) {
	m.sendInputs[m.sendFocus].Blur()
	m.sendFocus = (i + len(m.sendInputs)) % len(m.sendInputs)
	m.sendInputs[m.sendFocus].Focus()
}

func (m model) updateSendForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.closeSendForm()
		return m, nil
	case "tab", "down":
		m.focusField(m.sendFocus + 1)
		return m, nil
	case "shift+tab", "up":
		m.focusField(m.sendFocus - 1)
		return m, nil
	case "enter":
		if m.sendFocus < fieldMemo {
			m.focusField(m.sendFocus + 1)
			return m, nil
		}
		return m, m.submitSend()
	}

	var cmd tea.Cmd
	m.sendInputs[m.sendFocus], cmd = m.sendInputs[m.sendFocus].Update(msg)
	return m, cmd
}

// submitSend runs the send in the background. Validation and node errors
// reach the user through the notification queue; the form stays open so
// the input can be corrected.
func (m *model) submitSend() tea.Cmd {
	if m.submitting {
		return nil
	}
	m.submitting = true
	in := actions.SendInput{
		ToAddress: m.sendInputs[fieldTo].Value(),
		Amount:    m.sendInputs[fieldAmount].Value(),
		Currency:  m.sendInputs[fieldCurrency].Value(),
		Memo:      m.sendInputs[fieldMemo].Value(),
	}
	a := m.actions
	timeout := m.config.RequestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := a.Send(ctx, in)
		return sendResultMsg{res: res, err: err}
	}
}

