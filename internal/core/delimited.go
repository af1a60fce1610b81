package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// delimiterCandidates are tried in order when guessing the delimiter.
var delimiterCandidates = []rune{',', '\t', '|', ';', '\x1e', '\x1f'}

// delimiterGuessRows is how many records are sampled per candidate.
const delimiterGuessRows = 10

// numericRegex matches the literals that dynamic typing turns into numbers.
var numericRegex = regexp.MustCompile(`^\s*-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?\s*$`)

// maxSafeInteger is the largest integer a float64 represents exactly.
const maxSafeInteger = 1<<53 - 1

// DelimitedRowError describes one row that does not fit the header.
type DelimitedRowError struct {
	Line     int
	Expected int
	Got      int
}

func (e DelimitedRowError) Error() string {
	return fmt.Sprintf("line %d: expected %d fields, got %d", e.Line, e.Expected, e.Got)
}

// parseDelimited reads raw as delimited text whose first record is the
// header. Every following record becomes an object keyed by header name.
// Blank lines are skipped. Text without a detectable delimiter, such as a
// single column or prose, is rejected.
func parseDelimited(raw string) (Value, error) {
	delim, err := guessDelimiter(raw)
	if err != nil {
		return Value{}, err
	}

	r := newDelimitedReader(raw, delim)
	header, err := r.Read()
	if err == io.EOF {
		return Array(), nil
	}
	if err != nil {
		return Value{}, fmt.Errorf("read header: %w", err)
	}
	header = uniqueHeaders(header)

	var (
		rows    []Value
		rowErrs []error
	)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Value{}, fmt.Errorf("read row: %w", err)
		}

		line, _ := r.FieldPos(0)
		if len(record) != len(header) {
			rowErrs = append(rowErrs, DelimitedRowError{Line: line, Expected: len(header), Got: len(record)})
			continue
		}

		members := make([]Member, len(header))
		for i, name := range header {
			members[i] = Member{Key: name, Value: inferScalar(record[i])}
		}
		rows = append(rows, Object(members...))
	}

	if len(rowErrs) > 0 {
		return Value{}, fmt.Errorf("%d malformed rows: %w", len(rowErrs), errors.Join(rowErrs...))
	}
	return Array(rows...), nil
}

func newDelimitedReader(raw string, delim rune) *csv.Reader {
	r := csv.NewReader(strings.NewReader(raw))
	r.Comma = delim
	r.FieldsPerRecord = -1
	return r
}

// errDelimiterNotDetected reports text that no candidate splits into columns.
var errDelimiterNotDetected = errors.New("delimiter not detected")

// minDelimitedFields is the average field count a candidate must exceed.
const minDelimitedFields = 1.99

// guessDelimiter picks the candidate with the steadiest field count across
// the sampled records, preferring wider rows. A candidate only qualifies when
// it averages more than minDelimitedFields fields; text that none splits
// fails with errDelimiterNotDetected.
func guessDelimiter(raw string) (rune, error) {
	var (
		best      rune
		bestDelta = math.MaxInt
		bestAvg   float64
	)

	for _, cand := range delimiterCandidates {
		r := newDelimitedReader(raw, cand)
		r.LazyQuotes = true

		var counts []int
		for len(counts) < delimiterGuessRows {
			record, err := r.Read()
			if err != nil {
				break
			}
			counts = append(counts, len(record))
		}
		if len(counts) == 0 {
			continue
		}

		delta, total := 0, 0
		for i, c := range counts {
			total += c
			if i > 0 {
				delta += absInt(c - counts[i-1])
			}
		}
		avg := float64(total) / float64(len(counts))
		if avg > minDelimitedFields && delta <= bestDelta && avg > bestAvg {
			best, bestDelta, bestAvg = cand, delta, avg
		}
	}

	if best == 0 {
		return 0, errDelimiterNotDetected
	}
	return best, nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// uniqueHeaders renames repeated header names to name_1, name_2, ...
func uniqueHeaders(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	suffix := make(map[string]int)
	for i, h := range header {
		name := h
		if used[name] {
			for n := suffix[h] + 1; ; n++ {
				cand := h + "_" + strconv.Itoa(n)
				if !used[cand] {
					name = cand
					suffix[h] = n
					break
				}
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// inferScalar applies dynamic typing to a single cell: booleans and numeric
// literals are converted, an empty cell is null, anything else stays a string.
func inferScalar(cell string) Value {
	switch cell {
	case "":
		return Null()
	case "true", "TRUE":
		return Bool(true)
	case "false", "FALSE":
		return Bool(false)
	}
	if numericRegex.MatchString(cell) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil && math.Abs(f) < maxSafeInteger {
			return Number(f)
		}
	}
	return String(cell)
}
