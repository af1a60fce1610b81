package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JonMunkholm/flatsheet/internal/core"
)

// CSV writes comma-separated text with standard quoting.
type CSV struct {
	// Comma overrides the field delimiter (0 means ',').
	Comma rune
}

// NewCSV returns a comma-delimited writer.
func NewCSV() *CSV { return &CSV{} }

// SerializeCSV implements core.CSVSerializer. Nulls become empty fields.
func (c *CSV) SerializeCSV(ctx context.Context, records []core.FlatRecord, w io.Writer) error {
	cw := csv.NewWriter(w)
	if c.Comma != 0 {
		cw.Comma = c.Comma
	}

	columns := core.ColumnUnion(records)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(columns))
	for i, rec := range records {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, col := range columns {
			v, _ := rec.Get(col)
			row[j] = v.Text()
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
