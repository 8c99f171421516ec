package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeLine(t *testing.T) {
	lt := ComputeLine(Line{
		UnitPrice:       d("25.50"),
		Quantity:        d("10"),
		DiscountPercent: d("5"),
		VATRate:         d("20"),
	})

	assert.True(t, lt.TotalExVAT.Equal(d("242.25")), "got %s", lt.TotalExVAT)
	assert.True(t, lt.TotalIncVAT.Equal(d("290.70")), "got %s", lt.TotalIncVAT)
}

func TestComputeLineVATIsExact(t *testing.T) {
	cases := []Line{
		{UnitPrice: d("19.99"), Quantity: d("3"), DiscountPercent: d("0"), VATRate: d("20")},
		{UnitPrice: d("0.01"), Quantity: d("1000"), DiscountPercent: d("12.5"), VATRate: d("5.5")},
		{UnitPrice: d("1234.56"), Quantity: d("0.25"), DiscountPercent: d("100"), VATRate: d("10")},
		{UnitPrice: d("85"), Quantity: d("7"), DiscountPercent: d("33"), VATRate: d("2.1")},
	}

	for _, line := range cases {
		lt := ComputeLine(line)
		expected := lt.TotalExVAT.Mul(line.VATRate).Div(decimal.NewFromInt(100))
		assert.True(t, lt.TotalIncVAT.Sub(lt.TotalExVAT).Equal(expected),
			"VAT drift for unit price %s", line.UnitPrice)
	}
}

func TestComputeLineFullDiscount(t *testing.T) {
	lt := ComputeLine(Line{
		UnitPrice:       d("50"),
		Quantity:        d("2"),
		DiscountPercent: d("100"),
		VATRate:         d("20"),
	})
	assert.True(t, lt.TotalExVAT.IsZero())
	assert.True(t, lt.TotalIncVAT.IsZero())
}

func TestSumLines(t *testing.T) {
	totals := SumLines([]Line{
		{UnitPrice: d("25.50"), Quantity: d("10"), DiscountPercent: d("5"), VATRate: d("20")},
		{UnitPrice: d("100"), Quantity: d("1"), DiscountPercent: d("0"), VATRate: d("10")},
	})

	assert.True(t, totals.TotalHT.Equal(d("342.25")), "got %s", totals.TotalHT)
	assert.True(t, totals.TotalVAT.Equal(d("58.45")), "got %s", totals.TotalVAT)
	assert.True(t, totals.TotalTTC.Equal(d("400.70")), "got %s", totals.TotalTTC)
}

func TestSumLinesEmpty(t *testing.T) {
	totals := SumLines(nil)
	assert.True(t, totals.TotalHT.IsZero())
	assert.True(t, totals.TotalVAT.IsZero())
	assert.True(t, totals.TotalTTC.IsZero())
}

func TestSuggestedPrice(t *testing.T) {
	// 181.00 at 30% margin: 181 / 0.7 = 258.5714... -> 258.57 half-up.
	price := SuggestedPrice(d("181.00"), d("30"))
	assert.True(t, price.Equal(d("258.57")), "got %s", price)
}

func TestSuggestedPriceRoundsHalfUp(t *testing.T) {
	// 70.07 / 0.7 = 100.1 exactly; 70.105 / 0.7 = 100.15 exactly.
	price := SuggestedPrice(d("70.105"), d("30"))
	assert.True(t, price.Equal(d("100.15")), "got %s", price)
}

func TestSuggestedPriceSaturates(t *testing.T) {
	price := SuggestedPrice(d("99999999"), d("30"))
	require.True(t, price.Equal(MaxPrice), "got %s", price)

	price = SuggestedPrice(d("10"), d("100"))
	assert.True(t, price.Equal(MaxPrice))
}

func TestSuggestedPriceZeroCost(t *testing.T) {
	assert.True(t, SuggestedPrice(decimal.Zero, d("30")).IsZero())
	assert.True(t, SuggestedPrice(d("-5"), d("30")).IsZero())
}

func TestMarginPercent(t *testing.T) {
	margin := MarginPercent(d("100"), d("70"))
	assert.True(t, margin.Equal(d("30")), "got %s", margin)

	assert.True(t, MarginPercent(decimal.Zero, d("70")).IsZero())
}
