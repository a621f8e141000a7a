package extract

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

type sheetRow struct {
	sheet string
	cells []string
}

// excelRows reads every row of every sheet in workbook order.
func excelRows(content []byte) ([]sheetRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var out []sheetRow
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			out = append(out, sheetRow{sheet: sheet, cells: row})
		}
	}
	return out, nil
}
