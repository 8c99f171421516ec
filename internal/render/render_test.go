package render

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	invoicedomain "github.com/batipilot/batipilot/internal/invoice/domain"
	quotedomain "github.com/batipilot/batipilot/internal/quote/domain"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func idPtr(id snowflake.ID) *snowflake.ID {
	return &id
}

func sampleQuote() quotedomain.QuoteDetail {
	detail := quotedomain.QuoteDetail{
		Quote: quotedomain.Quote{
			Number:       "DEV-2026-0001",
			Subject:      "Extension garage",
			Status:       quotedomain.StatusSent,
			PaymentTerms: "30% a la commande",
			ValidUntil:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
			CreatedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			TotalHT:      dec("1000.00"),
			TotalVAT:     dec("200.00"),
			TotalTTC:     dec("1200.00"),
		},
	}
	detail.Items = []quotedomain.QuoteItem{
		{
			ID:          snowflake.ID(1),
			Kind:        quotedomain.KindChapter,
			Description: "Gros oeuvre",
		},
		{
			ID:          snowflake.ID(2),
			ParentID:    idPtr(snowflake.ID(1)),
			Kind:        quotedomain.KindWork,
			Description: "Mur parpaing",
			Unit:        "m2",
			Quantity:    dec("20"),
			UnitPrice:   dec("50.00"),
			VATRate:     dec("20"),
			TotalExVAT:  dec("1000.00"),
		},
	}
	return detail
}

func sampleClient() (tiersdomain.Tiers, []tiersdomain.Address) {
	client := tiersdomain.Tiers{Name: "Dupont SARL"}
	addresses := []tiersdomain.Address{
		{Street: "5 rue des Lilas", City: "Nantes", PostalCode: "44000", Country: "France"},
		{Street: "12 rue du Port", City: "Nantes", PostalCode: "44000", Country: "France", Billing: true},
	}
	return client, addresses
}

func TestFromQuote(t *testing.T) {
	client, addresses := sampleClient()
	doc := FromQuote(sampleQuote(), client, addresses)

	assert.Equal(t, "devis", doc.Kind)
	assert.Equal(t, "DEV-2026-0001", doc.Number)
	assert.Equal(t, "Dupont SARL", doc.ClientName)
	assert.Equal(t, "12 rue du Port, 44000 Nantes, France", doc.ClientLine)
	assert.Equal(t, "01/03/2026", doc.IssuedOn)
	assert.Equal(t, "31/03/2026", doc.ValidOrDue)
	assert.Nil(t, doc.Paid)
	assert.Nil(t, doc.Remaining)

	require.Len(t, doc.Lines, 2)
	assert.True(t, doc.Lines[0].Grouping)
	assert.Equal(t, 0, doc.Lines[0].Indent)
	assert.False(t, doc.Lines[1].Grouping)
	assert.Equal(t, 1, doc.Lines[1].Indent)
	assert.Equal(t, "Mur parpaing", doc.Lines[1].Description)
}

func TestFromInvoice(t *testing.T) {
	issued := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	detail := invoicedomain.InvoiceDetail{
		Invoice: invoicedomain.Invoice{
			Number:     "FAC-2026-0001",
			Kind:       invoicedomain.KindInvoice,
			Subject:    "Extension garage",
			Status:     invoicedomain.StatusPartiallyPaid,
			IssueDate:  &issued,
			DueDate:    &due,
			TotalHT:    dec("1000.00"),
			TotalVAT:   dec("200.00"),
			TotalTTC:   dec("1200.00"),
			PaidAmount: dec("500.00"),
		},
		Lines: []invoicedomain.InvoiceLine{
			{
				ID:          snowflake.ID(1),
				Kind:        invoicedomain.LineProduct,
				Description: "Parpaing 20x20x50",
				Unit:        "u",
				Quantity:    dec("500"),
				UnitPrice:   dec("2.00"),
				VATRate:     dec("20"),
				TotalExVAT:  dec("1000.00"),
			},
		},
	}

	client, addresses := sampleClient()
	doc := FromInvoice(detail, client, addresses)

	assert.Equal(t, "facture", doc.Kind)
	assert.Equal(t, "01/04/2026", doc.IssuedOn)
	assert.Equal(t, "01/05/2026", doc.ValidOrDue)
	require.NotNil(t, doc.Paid)
	require.NotNil(t, doc.Remaining)
	assert.Equal(t, "500.00", doc.Paid.StringFixed(2))
	assert.Equal(t, "700.00", doc.Remaining.StringFixed(2))

	detail.Invoice.Kind = invoicedomain.KindCreditNote
	doc = FromInvoice(detail, client, addresses)
	assert.Equal(t, "avoir", doc.Kind)
	assert.Nil(t, doc.Paid)
	assert.Nil(t, doc.Remaining)
}

func TestRenderCSV(t *testing.T) {
	client, addresses := sampleClient()
	out, err := RenderCSV(FromQuote(sampleQuote(), client, addresses))
	require.NoError(t, err)

	r := csv.NewReader(bytes.NewReader(out))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)

	assert.Equal(t, "Devis DEV-2026-0001", records[0][0])
	assert.Equal(t, "Designation", records[1][0])
	assert.Equal(t, "Gros oeuvre", records[2][0])
	assert.Equal(t, "    Mur parpaing", records[3][0])
	assert.Equal(t, "1000.00", records[3][6])
	assert.Equal(t, "Total TTC", records[6][5])
	assert.Equal(t, "1200.00", records[6][6])
}

func TestRenderXLSX(t *testing.T) {
	client, addresses := sampleClient()
	out, err := RenderXLSX(FromQuote(sampleQuote(), client, addresses))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue("Sheet1", ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Devis DEV-2026-0001", cell("A1"))
	assert.Equal(t, "Client: Dupont SARL", cell("A3"))
	assert.Equal(t, "Designation", cell("A6"))
	assert.Equal(t, "Gros oeuvre", cell("A7"))
	assert.Equal(t, "    Mur parpaing", cell("A8"))
	assert.Equal(t, "Total HT", cell("F10"))
	assert.Equal(t, "1000.00", cell("G10"))
	assert.Equal(t, "1200.00", cell("G12"))
}

func TestRenderPDF(t *testing.T) {
	client, addresses := sampleClient()
	out, err := RenderPDF(FromQuote(sampleQuote(), client, addresses))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
