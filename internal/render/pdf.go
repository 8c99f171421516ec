package render

import (
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2) + " EUR"
}

func title(doc Document) string {
	switch doc.Kind {
	case "devis":
		return "Devis " + doc.Number
	case "avoir":
		return "Avoir " + doc.Number
	default:
		return "Facture " + doc.Number
	}
}

// RenderPDF lays the document out with maroto: header block, client block,
// line table, totals.
func RenderPDF(doc Document) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} / {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, title(doc), props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, doc.Subject, props.Text{Size: 11}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Client", props.Text{Style: fontstyle.Bold}),
			text.New(doc.ClientName, props.Text{Top: 5}),
			text.New(doc.ClientLine, props.Text{Top: 10, Size: 9}),
		),
		col.New(6).Add(
			text.New("Date: "+doc.IssuedOn, props.Text{Top: 0}),
			text.New(dateLabel(doc)+": "+doc.ValidOrDue, props.Text{Top: 5}),
			text.New(doc.Terms, props.Text{Top: 10, Size: 9}),
		),
	)

	m.AddRow(8,
		text.NewCol(5, "Designation", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Unite", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "Qte", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "PU HT", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "TVA %", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Total HT", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range doc.Lines {
		description := strings.Repeat("    ", line.Indent) + line.Description
		if line.Grouping {
			m.AddRow(8,
				text.NewCol(12, description, props.Text{Style: fontstyle.Bold, Size: 9}),
			)
			continue
		}
		m.AddRow(8,
			text.NewCol(5, description, props.Text{Size: 9}),
			text.NewCol(1, line.Unit, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, line.Quantity.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, money(line.UnitPrice), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, line.VATRate.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, money(line.TotalExVAT), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total HT", props.Text{Size: 9}),
		text.NewCol(2, money(doc.TotalHT), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "TVA", props.Text{Size: 9}),
		text.NewCol(2, money(doc.TotalVAT), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total TTC", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, money(doc.TotalTTC), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	if doc.Remaining != nil {
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, "Reste a payer", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.NewCol(2, money(*doc.Remaining), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

func dateLabel(doc Document) string {
	if doc.Kind == "devis" {
		return "Valable jusqu'au"
	}
	return "Echeance"
}
