package core

// streaming.go provides the reader chain used while an upload is read.
//
//   - BOMSkippingReader: Removes UTF-8 BOM (0xEF 0xBB 0xBF) from Windows files
//   - ProgressReader: Tracks bytes read and reports a 0-100 percentage
//
// Invalid UTF-8 is replaced once the whole document is in memory, see
// sanitizeUTF8. Use WrapForReading to build the chain in the correct order.

import (
	"bytes"
	"io"
	"unicode/utf8"
)

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	pending    []byte
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !r.bomChecked {
		r.bomChecked = true

		var head [3]byte
		n, err := io.ReadFull(r.reader, head[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if n == 3 && bytes.Equal(head[:], utf8BOM) {
			n = 0
		}
		r.pending = append(r.pending[:0], head[:n]...)
		if err != nil && (err != io.EOF || len(r.pending) == 0) {
			return 0, err
		}
	}

	if len(r.pending) > 0 {
		copied := copy(p, r.pending)
		r.pending = r.pending[copied:]
		return copied, nil
	}

	return r.reader.Read(p)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ProgressFunc receives the read percentage (0-100). It is called only when
// the percentage changes.
type ProgressFunc func(percent int)

// ProgressReader wraps an io.Reader to track bytes read.
type ProgressReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // If known (0 if unknown)

	onProgress ProgressFunc
	last       int
}

// NewProgressReader creates a progress reader with optional total size and
// callback.
func NewProgressReader(r io.Reader, total int64, onProgress ProgressFunc) *ProgressReader {
	return &ProgressReader{
		reader:     r,
		Total:      total,
		onProgress: onProgress,
		last:       -1,
	}
}

// Read implements io.Reader.
func (r *ProgressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.onProgress != nil && r.Total > 0 {
		if pct := r.Progress(); pct != r.last {
			r.last = pct
			r.onProgress(pct)
		}
	}
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *ProgressReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	pct := int(r.BytesRead * 100 / r.Total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// WrapForReading wraps a reader with byte counting and BOM skipping.
//
// Counting wraps the raw reader so the percentage is measured against the
// declared file size, BOM included.
func WrapForReading(r io.Reader, totalSize int64, onProgress ProgressFunc) io.Reader {
	return NewBOMSkippingReader(NewProgressReader(r, totalSize, onProgress))
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.Write(data[:size])
			data = data[size:]
		}
	}

	return buf.Bytes()
}
