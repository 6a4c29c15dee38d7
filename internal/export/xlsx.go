package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"ocrlabel/internal/geom"
)

// Sheet is the worksheet name of XLSX exports.
const Sheet = "Fields"

var xlsxHeader = []string{
	"Image", "Field", "Color", "Assigned",
	"X1", "Y1", "X2", "Y2", "X3", "Y3", "X4", "Y4",
}

// XLSX returns a workbook with one row per field. Corner columns stay empty
// for unassigned or malformed boxes.
func XLSX(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", Sheet); err != nil {
		return nil, err
	}
	for i, h := range xlsxHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(Sheet, cell, h)
	}
	for n, r := range rows {
		row := n + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(Sheet, cell, v)
		}
		write(1, r.ImageID)
		write(2, r.Field)
		write(3, r.Color())
		write(4, r.Assigned())
		if !r.Assigned() {
			continue
		}
		for i, p := range r.Box[:geom.Corners] {
			write(5+2*i, p.X())
			write(6+2*i, p.Y())
		}
	}
	_ = f.SetColWidth(Sheet, "A", "B", 24)
	_ = f.SetColWidth(Sheet, "C", "D", 10)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
