package tui

import (
	"duxwatch/pkg/amount"
	"duxwatch/pkg/utils"

	"github.com/shopspring/decimal"
)

func (m model) displayAmount(raw amount.Raw, cur amount.Currency) string {
	if m.privacyMode {
		return "**** " + string(cur)
	}
	return utils.FormatAmount(amount.ToDisplay(raw, cur))
}

func (m model) displayUSD(d decimal.Decimal) string {
	if m.privacyMode {
		return "$****"
	}
	return utils.FormatUSD(d)
}

func (m model) maskString(s string) string {
	if m.privacyMode {
		return "****"
	}
	return s
}

func (m model) maskAddress(addr string) string {
	if m.privacyMode && addr != "" {
		return "**...**"
	}
	return addr
}
