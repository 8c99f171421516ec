// Package render turns quotes and invoices into exportable documents: PDF,
// spreadsheet and CSV share one flattened document model.
package render

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	invoicedomain "github.com/batipilot/batipilot/internal/invoice/domain"
	quotedomain "github.com/batipilot/batipilot/internal/quote/domain"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
)

const dateLayout = "02/01/2006"

// Line is one row of an exportable document. Grouping rows carry only a
// description.
type Line struct {
	Grouping        bool
	Indent          int
	Description     string
	Unit            string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	VATRate         decimal.Decimal
	TotalExVAT      decimal.Decimal
}

// Document is the flattened, render-ready form of a quote or invoice.
type Document struct {
	Kind       string
	Number     string
	Subject    string
	Status     string
	ClientName string
	ClientLine string
	IssuedOn   string
	ValidOrDue string
	Terms      string

	Lines []Line

	TotalHT   decimal.Decimal
	TotalVAT  decimal.Decimal
	TotalTTC  decimal.Decimal
	Paid      *decimal.Decimal
	Remaining *decimal.Decimal
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func clientLine(addresses []tiersdomain.Address) string {
	for _, address := range addresses {
		if !address.Billing {
			continue
		}
		parts := make([]string, 0, 3)
		for _, part := range []string{address.Street, address.PostalCode + " " + address.City, address.Country} {
			if strings.TrimSpace(part) != "" {
				parts = append(parts, strings.TrimSpace(part))
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// FromQuote flattens a quote and its client into a document. Indentation
// follows the item tree: chapters at zero, their children one deeper.
func FromQuote(detail quotedomain.QuoteDetail, client tiersdomain.Tiers, addresses []tiersdomain.Address) Document {
	doc := Document{
		Kind:       "devis",
		Number:     detail.Number,
		Subject:    detail.Subject,
		Status:     string(detail.Status),
		ClientName: client.Name,
		ClientLine: clientLine(addresses),
		IssuedOn:   formatDate(detail.CreatedAt),
		ValidOrDue: formatDate(detail.ValidUntil),
		Terms:      detail.PaymentTerms,
		TotalHT:    detail.TotalHT,
		TotalVAT:   detail.TotalVAT,
		TotalTTC:   detail.TotalTTC,
	}

	depth := make(map[string]int, len(detail.Items))
	for _, item := range detail.Items {
		indent := 0
		if item.ParentID != nil {
			indent = depth[item.ParentID.String()] + 1
		}
		depth[item.ID.String()] = indent

		doc.Lines = append(doc.Lines, Line{
			Grouping:        item.Kind.Grouping(),
			Indent:          indent,
			Description:     item.Description,
			Unit:            item.Unit,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			VATRate:         item.VATRate,
			TotalExVAT:      item.TotalExVAT,
		})
	}
	return doc
}

// FromInvoice flattens an invoice and its client into a document.
func FromInvoice(detail invoicedomain.InvoiceDetail, client tiersdomain.Tiers, addresses []tiersdomain.Address) Document {
	kind := "facture"
	if detail.Kind == invoicedomain.KindCreditNote {
		kind = "avoir"
	}

	doc := Document{
		Kind:       kind,
		Number:     detail.Number,
		Subject:    detail.Subject,
		Status:     string(detail.Status),
		ClientName: client.Name,
		ClientLine: clientLine(addresses),
		Terms:      detail.PaymentTerms,
		TotalHT:    detail.TotalHT,
		TotalVAT:   detail.TotalVAT,
		TotalTTC:   detail.TotalTTC,
	}
	if detail.IssueDate != nil {
		doc.IssuedOn = formatDate(*detail.IssueDate)
	}
	if detail.DueDate != nil {
		doc.ValidOrDue = formatDate(*detail.DueDate)
	}
	if detail.Invoice.Kind == invoicedomain.KindInvoice {
		paid := detail.PaidAmount
		remaining := detail.RemainingAmount()
		doc.Paid = &paid
		doc.Remaining = &remaining
	}

	depth := make(map[string]int, len(detail.Lines))
	for _, line := range detail.Lines {
		indent := 0
		if line.ParentID != nil {
			indent = depth[line.ParentID.String()] + 1
		}
		depth[line.ID.String()] = indent

		doc.Lines = append(doc.Lines, Line{
			Grouping:        line.Kind.Grouping(),
			Indent:          indent,
			Description:     line.Description,
			Unit:            line.Unit,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
			VATRate:         line.VATRate,
			TotalExVAT:      line.TotalExVAT,
		})
	}
	return doc
}
