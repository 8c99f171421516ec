package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/batipilot/batipilot/internal/pricing"
)

// Quote is a devis: a header plus an ordered tree of line items. The totals
// are denormalized and rewritten inside the same transaction as every item
// mutation, so a reader never sees a stale figure.
type Quote struct {
	ID            snowflake.ID     `gorm:"primaryKey" json:"id"`
	Number        string           `gorm:"not null;uniqueIndex" json:"number"`
	TiersID       snowflake.ID     `gorm:"not null;index" json:"tiers_id"`
	OpportunityID *snowflake.ID    `gorm:"index" json:"opportunity_id,omitempty"`
	Subject       string           `gorm:"not null" json:"subject"`
	Status        Status           `gorm:"not null;index;default:draft" json:"status"`
	ValidUntil    time.Time        `gorm:"not null" json:"valid_until"`
	Comment       string           `json:"comment,omitempty"`
	PaymentTerms  string           `json:"payment_terms,omitempty"`
	GlobalMargin  *decimal.Decimal `gorm:"type:decimal(5,2)" json:"global_margin,omitempty"`
	TotalHT       decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"total_ht"`
	TotalVAT      decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"total_vat"`
	TotalTTC      decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"total_ttc"`
	CreatedAt     time.Time        `gorm:"not null;index;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// ItemKind is the line type. Chapter and section lines form the tree
// structure and never carry amounts.
type ItemKind string

const (
	KindChapter  ItemKind = "chapter"
	KindSection  ItemKind = "section"
	KindProduct  ItemKind = "product"
	KindService  ItemKind = "service"
	KindWork     ItemKind = "work"
	KindDiscount ItemKind = "discount"
)

func (k ItemKind) Valid() bool {
	switch k {
	case KindChapter, KindSection, KindProduct, KindService, KindWork, KindDiscount:
		return true
	}
	return false
}

// Grouping kinds are presentation-only tree nodes excluded from totals.
func (k ItemKind) Grouping() bool {
	return k == KindChapter || k == KindSection
}

// QuoteItem is one line of a quote. Items are owned by their quote and
// cascade-deleted with it.
type QuoteItem struct {
	ID              snowflake.ID     `gorm:"primaryKey" json:"id"`
	QuoteID         snowflake.ID     `gorm:"not null;index" json:"quote_id"`
	ParentID        *snowflake.ID    `gorm:"index" json:"parent_id,omitempty"`
	Kind            ItemKind         `gorm:"not null" json:"kind"`
	Position        int              `gorm:"not null" json:"position"`
	Description     string           `gorm:"not null" json:"description"`
	Unit            string           `json:"unit,omitempty"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"quantity"`
	UnitPrice       decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"unit_price"`
	DiscountPercent decimal.Decimal  `gorm:"type:decimal(5,2);not null;default:0" json:"discount_percent"`
	VATRate         decimal.Decimal  `gorm:"type:decimal(5,2);not null;default:0" json:"vat_rate"`
	MarginPercent   *decimal.Decimal `gorm:"type:decimal(5,2)" json:"margin_percent,omitempty"`
	WorkID          *snowflake.ID    `gorm:"index" json:"work_id,omitempty"`
	TotalExVAT      decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"total_ex_vat"`
	TotalIncVAT     decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"total_inc_vat"`
	CreatedAt       time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// ComputeTotals fills the line's derived amounts. Grouping lines are zeroed.
func (i *QuoteItem) ComputeTotals() {
	if i.Kind.Grouping() {
		i.TotalExVAT = decimal.Zero
		i.TotalIncVAT = decimal.Zero
		return
	}
	totals := pricing.ComputeLine(pricing.Line{
		UnitPrice:       i.UnitPrice,
		Quantity:        i.Quantity,
		DiscountPercent: i.DiscountPercent,
		VATRate:         i.VATRate,
	})
	i.TotalExVAT = totals.TotalExVAT
	i.TotalIncVAT = totals.TotalIncVAT
}

// SumItems folds the denormalized header totals over non-grouping lines.
func SumItems(items []QuoteItem) (totalHT, totalVAT, totalTTC decimal.Decimal) {
	totalHT, totalVAT = decimal.Zero, decimal.Zero
	for _, item := range items {
		if item.Kind.Grouping() {
			continue
		}
		totalHT = totalHT.Add(item.TotalExVAT)
		totalVAT = totalVAT.Add(item.TotalIncVAT.Sub(item.TotalExVAT))
	}
	return totalHT, totalVAT, totalHT.Add(totalVAT)
}

// VATRates permitted on quote and invoice lines.
var VATRates = []decimal.Decimal{
	decimal.Zero,
	decimal.RequireFromString("2.1"),
	decimal.RequireFromString("5.5"),
	decimal.RequireFromString("10"),
	decimal.RequireFromString("20"),
}

func ValidVATRate(rate decimal.Decimal) bool {
	for _, allowed := range VATRates {
		if rate.Equal(allowed) {
			return true
		}
	}
	return false
}
