package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Write builds a single-sheet workbook from rows. Nil values leave the cell
// empty. The first row is rendered bold.
func Write(rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := f.GetSheetName(0)
	for i, row := range rows {
		for j, v := range row {
			if v == nil {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(name, axis, v); err != nil {
				return nil, fmt.Errorf("set %s: %w", axis, err)
			}
		}
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("header style: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
			return nil, fmt.Errorf("apply header style: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Template builds an empty import template: one header row with the given
// canonical field names.
func Template(headers []string) ([]byte, error) {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return Write([][]any{row})
}
