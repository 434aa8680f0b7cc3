package tui

import (
	"fmt"
	"strings"

	"duxwatch/pkg/models"
	"duxwatch/pkg/notify"
	"duxwatch/pkg/store"
	"duxwatch/pkg/tabs"
	"duxwatch/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

func (m model) View() string {
	var body string
	if m.sending {
		body = m.viewSendForm()
	} else {
		switch m.tabs.Active() {
		case tabs.Balances:
			body = m.viewBalances()
		case tabs.Receive:
			body = m.viewReceive()
		case tabs.History:
			body = m.viewHistory()
		case tabs.Keys:
			body = m.viewKeys()
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		m.viewTabBar(),
		"",
		body,
		"",
		m.viewFooter(),
	)
}

func (m model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (m model) viewHeader() string {
	title := titleStyle.Render("DUX Wallet")

	spinnerView := ""
	if m.loading {
		spinnerView = m.spinner.View() + " "
	}
	updated := "waiting for node"
	if !m.lastUpdate.IsZero() {
		updated = "Last updated: " + m.lastUpdate.Local().Format("15:04:05")
	}
	right := subtleStyle.Render(spinnerView + updated)

	status, ok := m.store.GetStatus()
	var node string
	switch {
	case ok:
		online := errStyle.Render("● offline")
		if status.IsOnline {
			online = infoStyle.Render("● online")
		}
		node = fmt.Sprintf("%s %s • up %s • %d peers • rep %.2f",
			online,
			m.maskString(utils.TruncateMiddle(status.DID, 24)),
			utils.FormatUptime(status.UptimeSeconds),
			status.PeersCount,
			status.ReputationScore,
		)
	case m.failures[store.CategoryStatus] != "":
		node = errStyle.Render("node unreachable")
	default:
		node = subtleStyle.Render("connecting to node...")
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top, title, " ", right)
	return lipgloss.JoinVertical(lipgloss.Left, top, node)
}

func (m model) viewTabBar() string {
	active := m.tabs.Active()
	var rendered []string
	for i, t := range tabs.All {
		label := fmt.Sprintf("%d %s", i+1, t.Title())
		if t == active {
			rendered = append(rendered, activeTabStyle.Render(label))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// viewPending is shown for a category that has never loaded.
func (m model) viewPending(c store.Category, what string) string {
	if reason := m.failures[c]; reason != "" {
		return lipgloss.JoinVertical(lipgloss.Left,
			errStyle.Render("Could not load "+what+":"),
			reason,
		)
	}
	return m.spinner.View() + " Loading " + what + "..."
}

// staleNote marks data that is still shown after a failed refresh.
func (m model) staleNote(c store.Category) string {
	if m.failures[c] == "" {
		return ""
	}
	return warnStyle.Render("showing last known values (last refresh failed)")
}

func (m model) viewBalances() string {
	snap, ok := m.store.GetBalances()
	if !ok {
		return m.viewPending(store.CategoryBalances, "balances")
	}
	preferred, _ := m.store.GetPreferredCurrency()

	rows := balanceRows(snap)
	lines := []string{tableHeaderStyle.Render(fmt.Sprintf("  %-6s %-10s %30s", "CODE", "NAME", "BALANCE"))}
	for i, r := range rows {
		marker := " "
		if r.Currency == preferred {
			marker = "*"
		}
		var display string
		if m.privacyMode {
			display = m.displayAmount(snap.Balances[r.Currency], r.Currency)
		} else {
			display = utils.FormatAmount(r.Display)
		}
		line := fmt.Sprintf("%s %-6s %-10s %30s", marker, r.Currency, r.Name, display)
		if i == m.cursor {
			line = selectedRowStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(rows) == 0 {
		lines = append(lines, subtleStyle.Render("No balances reported"))
	}

	total := infoStyle.Bold(true).Render("Total: " + m.displayUSD(snap.TotalUSD))
	parts := []string{boxStyle.Width(m.contentWidth()).Render(strings.Join(lines, "\n")), total}
	if note := m.staleNote(store.CategoryBalances); note != "" {
		parts = append(parts, note)
	}
	if stats, ok := m.store.GetStats(); ok {
		parts = append(parts, subtleStyle.Render(m.statsLine(stats)))
	}
	if graph := m.viewGraphs(); graph != "" {
		parts = append(parts, "", graph)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) statsLine(s models.NetworkStats) string {
	return fmt.Sprintf("DHT %d entries / %d peers • %d services • escrows %d (%d active) • tasks %d pending / %d done",
		s.DHT.TotalEntries,
		s.DHT.TotalPeers,
		s.DHT.ServiceEntries,
		s.Escrow.TotalContracts,
		s.Escrow.Funded+s.Escrow.InProgress,
		s.Tasks.PendingCount,
		s.Tasks.CompletedCount,
	)
}

func (m model) viewGraphs() string {
	if m.privacyMode || m.height < 24 {
		return ""
	}
	width := m.contentWidth() - 10
	var graphs []string
	if len(m.usdHistory) >= 2 {
		graphs = append(graphs, asciigraph.Plot(m.usdHistory,
			asciigraph.Height(6),
			asciigraph.Width(width),
			asciigraph.Caption("Total value this session (USD)"),
		))
	}
	if len(m.peersHistory) >= 2 {
		graphs = append(graphs, asciigraph.Plot(m.peersHistory,
			asciigraph.Height(3),
			asciigraph.Width(width),
			asciigraph.Precision(0),
			asciigraph.Caption("Connected peers"),
		))
	}
	return strings.Join(graphs, "\n\n")
}

func (m model) viewReceive() string {
	addrs, ok := m.store.GetAddresses()
	if !ok {
		return m.viewPending(store.CategoryAddresses, "addresses")
	}
	list := addressCurrencies(addrs)
	if len(list) == 0 {
		return subtleStyle.Render("The wallet reported no receive addresses")
	}

	lines := []string{tableHeaderStyle.Render(fmt.Sprintf("%-6s %-10s %s", "CODE", "NAME", "ADDRESS"))}
	for i, c := range list {
		line := fmt.Sprintf("%-6s %-10s %s", c, c.Name(), m.maskAddress(addrs[c]))
		if i == m.cursor {
			line = selectedRowStyle.Render(line)
		}
		lines = append(lines, line)
	}
	parts := []string{
		boxStyle.Width(m.contentWidth()).Render(strings.Join(lines, "\n")),
		subtleStyle.Render("↑/↓ select • c copy address • s send"),
	}
	if note := m.staleNote(store.CategoryAddresses); note != "" {
		parts = append(parts, note)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) viewHistory() string {
	if !m.store.Loaded(store.CategoryTransactions) {
		return m.viewPending(store.CategoryTransactions, "transactions")
	}
	parts := []string{m.viewport.View()}
	if note := m.staleNote(store.CategoryTransactions); note != "" {
		parts = append(parts, note)
	}
	parts = append(parts, subtleStyle.Render(fmt.Sprintf("%3.f%% • ↑/↓ scroll", m.viewport.ScrollPercent()*100)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) viewKeys() string {
	kp, ok := m.store.GetKeys()
	if !ok {
		return m.viewPending(store.CategoryKeys, "keys")
	}
	width := m.contentWidth() - 16

	private := utils.Mask(kp.PrivateKey, 0)
	if len(private) > width {
		private = private[:width]
	}
	if m.panes.revealKeys && !m.privacyMode {
		private = errStyle.Render(kp.PrivateKey)
	}

	lines := []string{
		fmt.Sprintf("%-12s %s", "Public key", m.maskString(utils.TruncateMiddle(kp.PublicKey, width))),
		fmt.Sprintf("%-12s %s", "Private key", private),
	}
	parts := []string{boxStyle.Width(m.contentWidth()).Render(strings.Join(lines, "\n"))}
	if kp.Warning != "" {
		parts = append(parts, warnStyle.Render(kp.Warning))
	}
	parts = append(parts, subtleStyle.Render("c copy public key • v reveal/hide private key"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) viewSendForm() string {
	labels := []string{"To", "Amount", "Currency", "Memo"}
	var rows []string
	for i, in := range m.sendInputs {
		label := fmt.Sprintf("%-9s", labels[i])
		if i == m.sendFocus {
			label = infoStyle.Render(label)
		}
		rows = append(rows, label+" "+in.View())
	}

	hint := "enter next/submit • tab move • esc cancel"
	if m.submitting {
		hint = m.spinner.View() + " sending..."
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Send Funds"),
		"",
		strings.Join(rows, "\n"),
		"",
		subtleStyle.Render(hint),
	)
	box := boxStyle.Render(content)
	if m.width == 0 {
		return box
	}
	return lipgloss.Place(m.width, lipgloss.Height(box)+2, lipgloss.Center, lipgloss.Center, box)
}

func (m model) viewNotification() string {
	n := m.notification
	if !n.Visible || n.Message == "" {
		return ""
	}
	style := successBarStyle
	if n.Severity == notify.SeverityError {
		style = errorBarStyle
	}
	msg := n.Message
	if m.width > 0 {
		style = style.Width(m.width)
	}
	if m.width > 5 {
		msg = utils.TruncateString(msg, m.width-2)
	}
	return style.Render(msg)
}

func (m model) viewFooter() string {
	var parts []string
	if bar := m.viewNotification(); bar != "" {
		parts = append(parts, bar)
	}
	helpView := m.help.View(m.keys)
	parts = append(parts, helpView, subtleStyle.Render("v"+Version))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
