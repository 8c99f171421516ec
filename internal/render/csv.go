package render

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// RenderCSV emits one record per line with a trailing totals block. The
// separator is a semicolon, which French spreadsheet locales expect.
func RenderCSV(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	records := [][]string{
		{title(doc), doc.Subject, doc.ClientName},
		{"Designation", "Unite", "Quantite", "PU HT", "Remise %", "TVA %", "Total HT"},
	}
	for _, line := range doc.Lines {
		description := strings.Repeat("    ", line.Indent) + line.Description
		if line.Grouping {
			records = append(records, []string{description, "", "", "", "", "", ""})
			continue
		}
		records = append(records, []string{
			description,
			line.Unit,
			line.Quantity.String(),
			line.UnitPrice.StringFixed(2),
			line.DiscountPercent.StringFixed(2),
			line.VATRate.String(),
			line.TotalExVAT.StringFixed(2),
		})
	}
	records = append(records,
		[]string{"", "", "", "", "", "Total HT", doc.TotalHT.StringFixed(2)},
		[]string{"", "", "", "", "", "TVA", doc.TotalVAT.StringFixed(2)},
		[]string{"", "", "", "", "", "Total TTC", doc.TotalTTC.StringFixed(2)},
	)
	if doc.Remaining != nil {
		records = append(records,
			[]string{"", "", "", "", "", "Reste a payer", doc.Remaining.StringFixed(2)})
	}

	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
