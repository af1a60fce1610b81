package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/flatsheet/internal/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConvert_CSVDefaultOutput(t *testing.T) {
	in := writeFile(t, "orders.json", `[{"id":1,"customer":{"name":"Ada"}},{"id":2,"note":null}]`)

	var stdout, stderr bytes.Buffer
	err := runConvert(context.Background(), convertOptions{input: in, format: "csv"}, &stdout, &stderr)
	require.NoError(t, err)

	out := filepath.Join(filepath.Dir(in), "orders.csv")
	assert.Contains(t, stdout.String(), "wrote "+out+" (2 rows, 3 columns)")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id,customer.name,note\n1,Ada,\n2,,\n", string(data))
}

func TestConvert_XLSXCustomSheet(t *testing.T) {
	in := writeFile(t, "rows.txt", "a\tb\n1\tx\n")
	out := filepath.Join(t.TempDir(), "result.xlsx")

	var stdout bytes.Buffer
	err := runConvert(context.Background(), convertOptions{input: in, format: "XLSX", out: out, sheet: "Rows"}, &stdout, &bytes.Buffer{})
	require.NoError(t, err)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Rows"}, f.GetSheetList())
	rows, err := f.GetRows("Rows")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "x"}}, rows)
}

func TestConvert_Stdout(t *testing.T) {
	in := writeFile(t, "one.json", `{"k":"v"}`)

	var stdout bytes.Buffer
	require.NoError(t, runConvert(context.Background(), convertOptions{input: in, format: "csv", out: "-"}, &stdout, &bytes.Buffer{}))
	assert.Equal(t, "k\nv\n", stdout.String())
}

func TestConvert_Failures(t *testing.T) {
	bad := writeFile(t, "bad.json", `{"a":`)
	out := filepath.Join(t.TempDir(), "bad.csv")

	err := runConvert(context.Background(), convertOptions{input: bad, format: "csv", out: out}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARSE001")
	assert.NoFileExists(t, out)

	err = runConvert(context.Background(), convertOptions{input: bad, format: "pdf"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)

	err = runConvert(context.Background(), convertOptions{input: filepath.Join(t.TempDir(), "missing.json"), format: "csv"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestDeclaredType(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    string
	}{
		{"json extension", "a.json", `[{"a":1}]`, "application/json"},
		{"text extension", "a.txt", "a,b\n1,2\n", "text/plain; charset=utf-8"},
		{"sniffed json", "export.out", `[{"a":1},{"a":2}]`, core.MIMEJSON},
		{"sniffed text", "rows", "a,b\n1,2\n", core.MIMEText},
		{"binary", "photo", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, body := declaredType(tt.path, strings.NewReader(tt.content))
			assert.Equal(t, tt.want, got)

			replayed, err := io.ReadAll(body)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(replayed))
		})
	}
}

func TestConvert_SniffsUnknownExtension(t *testing.T) {
	in := writeFile(t, "dump.out", `[{"k":1},{"k":2}]`)

	var stdout bytes.Buffer
	require.NoError(t, runConvert(context.Background(), convertOptions{input: in, format: "csv", out: "-"}, &stdout, &bytes.Buffer{}))
	assert.Equal(t, "k\n1\n2\n", stdout.String())
}

func TestInspect(t *testing.T) {
	in := writeFile(t, "people.json", `{"Payload":{"Data":[{"id":1,"tags":[{"t":"x"}]},{"id":2}]}}`)

	var stdout bytes.Buffer
	require.NoError(t, runInspect(context.Background(), inspectOptions{input: in}, &stdout))
	out := stdout.String()
	assert.Contains(t, out, "rows:       2\n")
	assert.Contains(t, out, "columns:    2\n")
	assert.Contains(t, out, "  tags_0.t\n")

	stdout.Reset()
	require.NoError(t, runInspect(context.Background(), inspectOptions{input: in, json: true}, &stdout))
	assert.True(t, strings.HasPrefix(stdout.String(), "[\n"))
	assert.Contains(t, stdout.String(), `"tags_0.t": "x"`)
}

func TestRootCommand_Wiring(t *testing.T) {
	cmd := newRootCommand()
	convert, _, err := cmd.Find([]string{"convert"})
	require.NoError(t, err)
	assert.Equal(t, "xlsx", convert.Flags().Lookup("format").DefValue)

	in := writeFile(t, "cli.json", `[{"a":1}]`)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"convert", in, "--format", "csv", "--out", "-"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "a\n1\n", stdout.String())
}
