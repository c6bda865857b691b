package domain

import "github.com/shopspring/decimal"

// Totals is the aggregate an order derives from its items.
type Totals struct {
	CurrencyTotal decimal.Decimal `json:"currency_total"`
	Total         decimal.Decimal `json:"total"`
	Quantity      int             `json:"quantity"`
}

// Add returns t plus o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		CurrencyTotal: t.CurrencyTotal.Add(o.CurrencyTotal),
		Total:         t.Total.Add(o.Total),
		Quantity:      t.Quantity + o.Quantity,
	}
}

// Equal compares decimals by value, so 1.50 equals 1.5.
func (t Totals) Equal(o Totals) bool {
	return t.CurrencyTotal.Equal(o.CurrencyTotal) &&
		t.Total.Equal(o.Total) &&
		t.Quantity == o.Quantity
}

// SumItems adds up the contributions of items.
func SumItems(items []OrderItem) Totals {
	sum := Totals{CurrencyTotal: decimal.Zero, Total: decimal.Zero}
	for i := range items {
		sum = sum.Add(items[i].Contribution())
	}
	return sum
}

// CalculateTotals is the order aggregate given the persisted sibling totals
// and the item being mutated, whose contribution is added explicitly. The
// caller decides whether siblings already exclude that item.
func CalculateTotals(siblings Totals, current OrderItem) Totals {
	return siblings.Add(current.Contribution())
}
