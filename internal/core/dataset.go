package core

import (
	"fmt"
	"sync"
)

// DefaultPageSize is the number of rows shown per preview page.
const DefaultPageSize = 10

// Dataset is the ordered, immutable result of normalizing one document.
type Dataset struct {
	records []FlatRecord

	columnsOnce sync.Once
	columns     []string
	collisions  int
}

// BuildDataset flattens every record in order. It fails with
// ErrEmptyDataset when records is empty.
func BuildDataset(records []Value) (*Dataset, error) {
	return Flattener{}.BuildDataset(records)
}

// BuildDataset flattens every record in order with f's settings.
func (f Flattener) BuildDataset(records []Value) (*Dataset, error) {
	if len(records) == 0 {
		return nil, emptyDataset("no records in document")
	}

	d := &Dataset{records: make([]FlatRecord, 0, len(records))}
	for i, rec := range records {
		flat, err := f.Flatten(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		d.collisions += flat.Collisions()
		d.records = append(d.records, flat)
	}
	return d, nil
}

// Len returns the number of records. A nil Dataset has none.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Records returns every record in order.
func (d *Dataset) Records() []FlatRecord {
	if d == nil {
		return nil
	}
	return d.records
}

// Collisions returns the number of overwritten paths across all records.
func (d *Dataset) Collisions() int {
	if d == nil {
		return 0
	}
	return d.collisions
}

// Columns returns the union of keys across every record in first-seen order.
// The result is computed once and shared; callers must not modify it.
func (d *Dataset) Columns() []string {
	if d == nil {
		return nil
	}
	d.columnsOnce.Do(func() {
		d.columns = ColumnUnion(d.records)
	})
	return d.columns
}

// ColumnUnion returns the keys of every record in first-seen order.
func ColumnUnion(records []FlatRecord) []string {
	seen := make(map[string]struct{})
	cols := make([]string, 0)
	for _, rec := range records {
		for _, k := range rec.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	return cols
}

// Page returns records [(page-1)*size, page*size) clamped to the dataset.
// Callers validate page with ValidatePage first.
func (d *Dataset) Page(page, size int) []FlatRecord {
	if d == nil || page < 1 || size < 1 {
		return nil
	}
	start := (page - 1) * size
	if start >= len(d.records) {
		return nil
	}
	end := start + size
	if end > len(d.records) {
		end = len(d.records)
	}
	return d.records[start:end]
}

// PageCount returns ceil(n/size), 0 for an empty dataset.
func PageCount(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// ValidatePage rejects pages outside 1..totalPages.
func ValidatePage(page, totalPages int) error {
	if page <= 0 || page > totalPages {
		return fmt.Errorf("%w: %d not in 1..%d", ErrPageOutOfRange, page, totalPages)
	}
	return nil
}
