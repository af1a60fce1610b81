package core

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// ExportFormat names a download format.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// ParseExportFormat accepts "csv" and "xlsx" in any case.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case ExportCSV, ExportXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrExportFailure, s)
}

// Extension returns the file extension without the dot.
func (f ExportFormat) Extension() string { return string(f) }

// ContentType returns the MIME type served with the download.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportCSV:
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}

// WorkbookSerializer writes a single-sheet spreadsheet workbook. It owns
// header derivation and cell encoding.
type WorkbookSerializer interface {
	SerializeWorkbook(ctx context.Context, records []FlatRecord, w io.Writer) error
}

// CSVSerializer writes comma-separated text. It owns header derivation and
// field quoting.
type CSVSerializer interface {
	SerializeCSV(ctx context.Context, records []FlatRecord, w io.Writer) error
}

// Serializers bundles the export ports. A nil port means the format is
// unavailable.
type Serializers struct {
	Workbook WorkbookSerializer
	CSV      CSVSerializer
}

// ToWorkbookInput exposes the dataset records verbatim.
func ToWorkbookInput(d *Dataset) []FlatRecord { return d.Records() }

// ToCSVInput exposes the dataset records verbatim.
func ToCSVInput(d *Dataset) []FlatRecord { return d.Records() }

// DeriveFilename replaces the last extension of original with ext. A name
// that is empty once its extension is removed becomes "data".
func DeriveFilename(original, ext string) string {
	base := original
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		base = "data"
	}
	return base + "." + ext
}

// Export serializes d in format to w and returns the download filename
// derived from fileName.
func Export(ctx context.Context, s Serializers, d *Dataset, format ExportFormat, fileName string, w io.Writer) (string, error) {
	if d.Len() == 0 {
		return "", emptyDataset("no data to export")
	}

	var err error
	switch format {
	case ExportXLSX:
		if s.Workbook == nil {
			return "", exportLibraryMissing(format)
		}
		err = s.Workbook.SerializeWorkbook(ctx, ToWorkbookInput(d), w)
	case ExportCSV:
		if s.CSV == nil {
			return "", exportLibraryMissing(format)
		}
		err = s.CSV.SerializeCSV(ctx, ToCSVInput(d), w)
	default:
		return "", exportFailure(format, fmt.Errorf("unknown format"))
	}
	if err != nil {
		return "", exportFailure(format, err)
	}
	return DeriveFilename(fileName, format.Extension()), nil
}
