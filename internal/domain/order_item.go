package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for money amounts.
// It matches the NUMERIC(19,4) columns so that persisted values and
// in-memory sums never disagree.
const MoneyScale = 4

// OrderItem is a line of an order.
type OrderItem struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	ProductName   string          `json:"product_name"`
	LicenseCode   string          `json:"license_code,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	CurrencyTotal decimal.Decimal `json:"currency_total"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Recalculate derives the line totals from price, quantity and the order's
// exchange rate:
//
//	CurrencyTotal = round(UnitPrice * Quantity, MoneyScale)
//	Total         = round(CurrencyTotal * exchangeRate, MoneyScale)
//
// Both are rounded half away from zero at MoneyScale, and the rounded values
// are what is stored and summed. Total is therefore the rounded product of
// the stored CurrencyTotal, not the exact product of price, quantity and
// rate.
func (i *OrderItem) Recalculate(exchangeRate decimal.Decimal) {
	i.CurrencyTotal = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(MoneyScale)
	i.Total = i.CurrencyTotal.Mul(exchangeRate).Round(MoneyScale)
}

// Zero clears the values the item contributes to its order.
func (i *OrderItem) Zero() {
	i.CurrencyTotal = decimal.Zero
	i.Total = decimal.Zero
	i.Quantity = 0
}

// Contribution is what the item adds to its order's totals.
func (i *OrderItem) Contribution() Totals {
	return Totals{
		CurrencyTotal: i.CurrencyTotal,
		Total:         i.Total,
		Quantity:      i.Quantity,
	}
}
