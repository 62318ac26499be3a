package models

import "github.com/shopspring/decimal"

// FormatMoney renders an amount the way the menu and receipts show it, e.g. "R$ 35.90".
func FormatMoney(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}
