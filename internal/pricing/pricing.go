// Package pricing implements the costing arithmetic shared by the work
// library, quotes and invoices. All computation is exact decimal; floats are
// never used for money.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)

	// MaxPrice is the widest value the price columns can hold. Suggested
	// prices saturate here instead of overflowing the column.
	MaxPrice = decimal.RequireFromString("9999999.99")
)

// Line is the priced part of a document line.
type Line struct {
	UnitPrice       decimal.Decimal
	Quantity        decimal.Decimal
	DiscountPercent decimal.Decimal
	VATRate         decimal.Decimal
}

// LineTotals is the derived amounts of a single line.
type LineTotals struct {
	NetUnitPrice decimal.Decimal
	TotalExVAT   decimal.Decimal
	VATAmount    decimal.Decimal
	TotalIncVAT  decimal.Decimal
}

// ComputeLine derives a line's totals. No rounding is applied: the results
// are exact so that TotalIncVAT - TotalExVAT == TotalExVAT * VATRate/100
// holds to the last digit.
func ComputeLine(l Line) LineTotals {
	net := l.UnitPrice.Mul(one.Sub(l.DiscountPercent.Div(hundred)))
	exVAT := net.Mul(l.Quantity)
	vat := exVAT.Mul(l.VATRate.Div(hundred))
	return LineTotals{
		NetUnitPrice: net,
		TotalExVAT:   exVAT,
		VATAmount:    vat,
		TotalIncVAT:  exVAT.Add(vat),
	}
}

// Totals is the aggregate of a document.
type Totals struct {
	TotalHT  decimal.Decimal
	TotalVAT decimal.Decimal
	TotalTTC decimal.Decimal
}

// SumLines folds line totals into document totals. Grouping lines must be
// excluded by the caller before the fold.
func SumLines(lines []Line) Totals {
	totals := Totals{
		TotalHT:  decimal.Zero,
		TotalVAT: decimal.Zero,
		TotalTTC: decimal.Zero,
	}
	for _, line := range lines {
		lt := ComputeLine(line)
		totals.TotalHT = totals.TotalHT.Add(lt.TotalExVAT)
		totals.TotalVAT = totals.TotalVAT.Add(lt.VATAmount)
	}
	totals.TotalTTC = totals.TotalHT.Add(totals.TotalVAT)
	return totals
}

// SuggestedPrice derives a sale price from a raw cost and a margin percent:
// cost / (1 - margin/100), rounded half-up to 2 decimals and saturated at
// MaxPrice. A zero or negative cost yields zero; a margin of 100 or more
// saturates.
func SuggestedPrice(rawCost decimal.Decimal, marginPercent decimal.Decimal) decimal.Decimal {
	if rawCost.Sign() <= 0 {
		return decimal.Zero
	}
	factor := one.Sub(marginPercent.Div(hundred))
	if factor.Sign() <= 0 {
		return MaxPrice
	}
	price := rawCost.Div(factor).Round(2)
	if price.GreaterThan(MaxPrice) {
		return MaxPrice
	}
	return price
}

// MarginPercent computes (sale - cost) / sale * 100, the document-level
// margin. A zero sale price yields zero.
func MarginPercent(sale, cost decimal.Decimal) decimal.Decimal {
	if sale.IsZero() {
		return decimal.Zero
	}
	return sale.Sub(cost).Div(sale).Mul(hundred)
}
