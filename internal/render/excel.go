package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RenderXLSX writes the document to a single-sheet workbook: header cells,
// one row per line, totals at the bottom.
func RenderXLSX(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	set := func(cell string, value any) error {
		return f.SetCellValue(sheet, cell, value)
	}

	if err := set("A1", title(doc)); err != nil {
		return nil, err
	}
	if err := set("A2", doc.Subject); err != nil {
		return nil, err
	}
	if err := set("A3", "Client: "+doc.ClientName); err != nil {
		return nil, err
	}
	if err := set("A4", "Date: "+doc.IssuedOn); err != nil {
		return nil, err
	}
	if err := set("B4", dateLabel(doc)+": "+doc.ValidOrDue); err != nil {
		return nil, err
	}

	headers := []string{"Designation", "Unite", "Quantite", "PU HT", "Remise %", "TVA %", "Total HT"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 6)
		if err != nil {
			return nil, err
		}
		if err := set(cell, header); err != nil {
			return nil, err
		}
	}

	row := 7
	for _, line := range doc.Lines {
		description := strings.Repeat("    ", line.Indent) + line.Description
		if err := set(fmt.Sprintf("A%d", row), description); err != nil {
			return nil, err
		}
		if !line.Grouping {
			values := map[string]any{
				fmt.Sprintf("B%d", row): line.Unit,
				fmt.Sprintf("C%d", row): line.Quantity.InexactFloat64(),
				fmt.Sprintf("D%d", row): line.UnitPrice.InexactFloat64(),
				fmt.Sprintf("E%d", row): line.DiscountPercent.InexactFloat64(),
				fmt.Sprintf("F%d", row): line.VATRate.InexactFloat64(),
				fmt.Sprintf("G%d", row): line.TotalExVAT.InexactFloat64(),
			}
			for cell, value := range values {
				if err := set(cell, value); err != nil {
					return nil, err
				}
			}
		}
		row++
	}

	row++
	totals := []struct {
		label string
		value string
	}{
		{"Total HT", doc.TotalHT.StringFixed(2)},
		{"TVA", doc.TotalVAT.StringFixed(2)},
		{"Total TTC", doc.TotalTTC.StringFixed(2)},
	}
	if doc.Remaining != nil {
		totals = append(totals, struct {
			label string
			value string
		}{"Reste a payer", doc.Remaining.StringFixed(2)})
	}
	for _, total := range totals {
		if err := set(fmt.Sprintf("F%d", row), total.label); err != nil {
			return nil, err
		}
		if err := set(fmt.Sprintf("G%d", row), total.value); err != nil {
			return nil, err
		}
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
