// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/batipilot/batipilot/internal/pricing"
)

// Status is the invoice lifecycle. Payments drive the move from issued to
// partially_paid and paid; there is no manual way back.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusIssued        Status = "issued"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPartiallyPaid, StatusPaid:
		return true
	}
	return false
}

// Payable reports whether the invoice can still receive payments.
func (s Status) Payable() bool {
	return s == StatusIssued || s == StatusPartiallyPaid
}

// Kind separates regular invoices from credit notes. A credit note carries
// the negated lines of its original invoice.
type Kind string

const (
	KindInvoice    Kind = "invoice"
	KindCreditNote Kind = "credit_note"
)

type Invoice struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	Number       string          `gorm:"not null;uniqueIndex" json:"number"`
	Kind         Kind            `gorm:"not null;default:invoice" json:"kind"`
	TiersID      snowflake.ID    `gorm:"not null;index" json:"tiers_id"`
	QuoteID      *snowflake.ID   `gorm:"index" json:"quote_id,omitempty"`
	OriginalID   *snowflake.ID   `gorm:"index" json:"original_id,omitempty"`
	Subject      string          `gorm:"not null" json:"subject"`
	Status       Status          `gorm:"not null;index;default:draft" json:"status"`
	IssueDate    *time.Time      `json:"issue_date,omitempty"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	PaymentTerms string          `json:"payment_terms,omitempty"`
	TotalHT      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_ht"`
	TotalVAT     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_vat"`
	TotalTTC     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_ttc"`
	PaidAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"paid_amount"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// RemainingAmount is what the client still owes.
func (i Invoice) RemainingAmount() decimal.Decimal {
	return i.TotalTTC.Sub(i.PaidAmount)
}

// LineKind mirrors quote line types. Chapter and section lines carry no
// amounts and survive the copy from a quote for presentation only.
type LineKind string

const (
	LineChapter  LineKind = "chapter"
	LineSection  LineKind = "section"
	LineProduct  LineKind = "product"
	LineService  LineKind = "service"
	LineWork     LineKind = "work"
	LineDiscount LineKind = "discount"
)

func (k LineKind) Valid() bool {
	switch k {
	case LineChapter, LineSection, LineProduct, LineService, LineWork, LineDiscount:
		return true
	}
	return false
}

func (k LineKind) Grouping() bool {
	return k == LineChapter || k == LineSection
}

type InvoiceLine struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID       snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	ParentID        *snowflake.ID   `gorm:"index" json:"parent_id,omitempty"`
	Kind            LineKind        `gorm:"not null" json:"kind"`
	Position        int             `gorm:"not null" json:"position"`
	Description     string          `gorm:"not null" json:"description"`
	Unit            string          `json:"unit,omitempty"`
	Quantity        decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percent"`
	VATRate         decimal.Decimal `gorm:"type:decimal(4,2);not null" json:"vat_rate"`
	TotalExVAT      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_ex_vat"`
	TotalIncVAT     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_inc_vat"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }

// ComputeTotals fills the line totals from quantity, price, discount and VAT.
// Grouping lines always total zero.
func (l *InvoiceLine) ComputeTotals() {
	if l.Kind.Grouping() {
		l.TotalExVAT = decimal.Zero
		l.TotalIncVAT = decimal.Zero
		return
	}
	totals := pricing.ComputeLine(pricing.Line{
		UnitPrice:       l.UnitPrice,
		Quantity:        l.Quantity,
		DiscountPercent: l.DiscountPercent,
		VATRate:         l.VATRate,
	})
	l.TotalExVAT = totals.TotalExVAT
	l.TotalIncVAT = totals.TotalIncVAT
}

// SumLines folds line totals into the invoice totals, skipping grouping
// lines.
func SumLines(lines []InvoiceLine) (totalHT, totalVAT, totalTTC decimal.Decimal) {
	totalHT, totalVAT, totalTTC = decimal.Zero, decimal.Zero, decimal.Zero
	for _, line := range lines {
		if line.Kind.Grouping() {
			continue
		}
		totalHT = totalHT.Add(line.TotalExVAT)
		totalVAT = totalVAT.Add(line.TotalIncVAT.Sub(line.TotalExVAT))
		totalTTC = totalTTC.Add(line.TotalIncVAT)
	}
	return totalHT, totalVAT, totalTTC
}

// PaymentMethod is how the client settled.
type PaymentMethod string

const (
	MethodTransfer PaymentMethod = "transfer"
	MethodCheck    PaymentMethod = "check"
	MethodCash     PaymentMethod = "cash"
	MethodCard     PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodTransfer, MethodCheck, MethodCash, MethodCard:
		return true
	}
	return false
}

type Payment struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaidAt    time.Time       `gorm:"not null" json:"paid_at"`
	Method    PaymentMethod   `gorm:"not null" json:"method"`
	Reference string          `gorm:"not null" json:"reference"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Payment) TableName() string { return "invoice_payments" }
