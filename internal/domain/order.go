package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate root. CurrencyTotal, Total and Quantity always equal
// the sums over the order's persisted line items.
type Order struct {
	ID            string          `json:"id"`
	RefNo         string          `json:"ref_no,omitempty"`
	Currency      string          `json:"currency"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	CurrencyTotal decimal.Decimal `json:"currency_total"`
	Total         decimal.Decimal `json:"total"`
	Quantity      int             `json:"quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Totals returns the order's current aggregate values.
func (o *Order) Totals() Totals {
	return Totals{
		CurrencyTotal: o.CurrencyTotal,
		Total:         o.Total,
		Quantity:      o.Quantity,
	}
}

// ApplyTotals overwrites the aggregate values.
func (o *Order) ApplyTotals(t Totals) {
	o.CurrencyTotal = t.CurrencyTotal
	o.Total = t.Total
	o.Quantity = t.Quantity
}
