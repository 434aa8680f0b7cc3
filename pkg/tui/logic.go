package tui

import (
	"fmt"
	"sort"
	"strings"

	"duxwatch/pkg/amount"
	"duxwatch/pkg/models"
	"duxwatch/pkg/notify"
	"duxwatch/pkg/store"
	"duxwatch/pkg/utils"

	"github.com/charmbracelet/lipgloss"
)

// orderedCurrencies returns the supported currencies present in have, in
// display order, followed by any unknown codes sorted alphabetically.
func orderedCurrencies(have map[amount.Currency]bool) []amount.Currency {
	var out []amount.Currency
	for _, c := range amount.All() {
		if have[c] {
			out = append(out, c)
		}
	}
	var extra []amount.Currency
	for c := range have {
		if !c.Known() {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

type balanceRow struct {
	Currency amount.Currency
	Name     string
	Display  string
}

func balanceRows(snap models.BalanceSnapshot) []balanceRow {
	have := make(map[amount.Currency]bool, len(snap.Balances))
	for c := range snap.Balances {
		have[c] = true
	}
	var rows []balanceRow
	for _, c := range orderedCurrencies(have) {
		rows = append(rows, balanceRow{
			Currency: c,
			Name:     c.Name(),
			Display:  amount.ToDisplay(snap.Balances[c], c),
		})
	}
	return rows
}

func addressCurrencies(addrs models.AddressSet) []amount.Currency {
	have := make(map[amount.Currency]bool, len(addrs))
	for c, a := range addrs {
		if a != "" {
			have[c] = true
		}
	}
	return orderedCurrencies(have)
}

// selectableCurrencies lists the rows the cursor moves over on the
// balances and receive tabs.
func (m model) selectableCurrencies() []amount.Currency {
	switch m.tabs.Active().Category() {
	case store.CategoryBalances:
		snap, ok := m.store.GetBalances()
		if !ok {
			return nil
		}
		rows := balanceRows(snap)
		out := make([]amount.Currency, len(rows))
		for i, r := range rows {
			out[i] = r.Currency
		}
		return out
	case store.CategoryAddresses:
		addrs, ok := m.store.GetAddresses()
		if !ok {
			return nil
		}
		return addressCurrencies(addrs)
	}
	return nil
}

func (m model) selectedCurrency() (amount.Currency, bool) {
	list := m.selectableCurrencies()
	if len(list) == 0 {
		return "", false
	}
	idx := m.cursor
	if idx >= len(list) {
		idx = len(list) - 1
	}
	return list[idx], true
}

func statusStyle(s models.TransactionStatus) lipgloss.Style {
	switch s {
	case models.StatusConfirmed:
		return infoStyle
	case models.StatusPending:
		return warnStyle
	case models.StatusFailed, models.StatusCancelled:
		return errStyle
	}
	return subtleStyle
}

// historyLines renders transactions in the order the node returned them.
func (m model) historyLines(txs []models.TransactionRecord) []string {
	if len(txs) == 0 {
		return []string{subtleStyle.Render("No transactions yet")}
	}
	lines := []string{
		tableHeaderStyle.Render(fmt.Sprintf("%-16s %-10s %-26s %-15s %-15s", "TIME", "STATUS", "AMOUNT", "FROM", "TO")),
	}
	for _, tx := range txs {
		row := fmt.Sprintf("%-16s %s %-26s %-15s %-15s",
			tx.Time().Local().Format("2006-01-02 15:04"),
			statusStyle(tx.Status).Render(fmt.Sprintf("%-10s", tx.Status)),
			m.displayAmount(tx.Amount, tx.Currency),
			m.maskAddress(utils.TruncateMiddle(tx.From, 15)),
			m.maskAddress(utils.TruncateMiddle(tx.To, 15)),
		)
		lines = append(lines, row)

		var details []string
		if !tx.Fee.IsZero() {
			details = append(details, "fee "+m.displayAmount(tx.Fee, tx.Currency))
		}
		if tx.Confirmations > 0 {
			details = append(details, fmt.Sprintf("%d confirmations", tx.Confirmations))
		}
		if tx.Memo != nil && *tx.Memo != "" {
			details = append(details, "memo: "+m.maskString(*tx.Memo))
		}
		if len(details) > 0 {
			lines = append(lines, subtleStyle.Render("  "+strings.Join(details, " • ")))
		}
	}
	return lines
}

func (m *model) updateHistoryViewport() {
	txs, ok := m.store.GetTransactions()
	if !ok {
		m.viewport.SetContent(subtleStyle.Render("Loading transactions..."))
		return
	}
	m.viewport.SetContent(strings.Join(m.historyLines(txs), "\n"))
}

func appendHistory(hist []float64, v float64) []float64 {
	hist = append(hist, v)
	if len(hist) > maxHistory {
		hist = hist[len(hist)-maxHistory:]
	}
	return hist
}

// notify posts msg to the notification queue. It replaces whatever is
// showing and restarts the countdown.
func (m *model) notify(msg string, sev notify.Severity) {
	if m.notifier != nil {
		m.notifier.Notify(msg, sev)
	}
}
