package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewBOMSkippingReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "valid ASCII",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "valid UTF-8 with multibyte",
			input:    []byte("grüße,日本"),
			expected: "grüße,日本",
		},
		{
			name:     "invalid single byte replaced",
			input:    []byte{'h', 'e', 0x80, 'l', 'o'},
			expected: "he\uFFFDlo",
		},
		{
			name:     "empty input",
			input:    []byte{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(sanitizeUTF8(tt.input)); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestProgressReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	var reports []int
	reader := NewProgressReader(strings.NewReader(input), int64(len(input)), func(pct int) {
		reports = append(reports, pct)
	})

	buf := make([]byte, 100)
	totalRead := 0
	for {
		n, err := reader.Read(buf)
		totalRead += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if totalRead != len(input) {
		t.Errorf("total read = %d, want %d", totalRead, len(input))
	}
	if reader.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(input))
	}
	if reader.Progress() != 100 {
		t.Errorf("Progress = %d, want 100", reader.Progress())
	}

	want := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if len(reports) != len(want) {
		t.Fatalf("reports = %v, want %v", reports, want)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Errorf("reports[%d] = %d, want %d", i, reports[i], want[i])
		}
	}
}

func TestProgressReader_UnknownTotal(t *testing.T) {
	called := false
	reader := NewProgressReader(strings.NewReader("abc"), 0, func(int) { called = true })
	if _, err := io.ReadAll(reader); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("callback should not run without a total")
	}
	if reader.Progress() != 0 {
		t.Errorf("Progress = %d, want 0", reader.Progress())
	}
}

func TestWrapForReading(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`[{"a":1}]`)...)

	last := -1
	reader := WrapForReading(bytes.NewReader(input), int64(len(input)), func(pct int) { last = pct })
	result, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(result) != `[{"a":1}]` {
		t.Errorf("got %q, want BOM stripped", string(result))
	}
	if last != 100 {
		t.Errorf("last progress = %d, want 100", last)
	}
}
