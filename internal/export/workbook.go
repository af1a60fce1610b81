package export

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the sheet new workbooks start with.
const DefaultSheetName = "Sheet1"

// ctxCheckInterval is how many rows are written between context checks.
const ctxCheckInterval = 1000

// Workbook writes single-sheet xlsx workbooks.
type Workbook struct {
	sheet string
}

// NewWorkbook returns a Workbook that names its sheet sheetName, or
// DefaultSheetName when empty.
func NewWorkbook(sheetName string) *Workbook {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Workbook{sheet: sheetName}
}

// SheetName returns the sheet name used for new workbooks.
func (wb *Workbook) SheetName() string { return wb.sheet }

// SerializeWorkbook implements core.WorkbookSerializer. Numbers and
// booleans are written as typed cells, nulls as empty cells.
func (wb *Workbook) SerializeWorkbook(ctx context.Context, records []core.FlatRecord, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if wb.sheet != DefaultSheetName {
		if err := f.SetSheetName(DefaultSheetName, wb.sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(wb.sheet)
	if err != nil {
		return fmt.Errorf("open sheet %q: %w", wb.sheet, err)
	}

	columns := core.ColumnUnion(records)
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := writeRow(sw, 1, header); err != nil {
		return err
	}

	row := make([]any, len(columns))
	for i, rec := range records {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, c := range columns {
			v, _ := rec.Get(c)
			row[j] = cellValue(v)
		}
		if err := writeRow(sw, i+2, row); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(sw *excelize.StreamWriter, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := sw.SetRow(cell, values); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}

func cellValue(v core.Value) any {
	switch v.Kind() {
	case core.KindBool:
		return v.BoolValue()
	case core.KindNumber:
		return v.NumberValue()
	case core.KindString:
		return v.StringValue()
	case core.KindNull:
		return nil
	}
	return v.JSON()
}
