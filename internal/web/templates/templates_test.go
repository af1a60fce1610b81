package templates

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/JonMunkholm/flatsheet/internal/history"
)

func render(t *testing.T, st core.State) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Workspace(st).Render(context.Background(), &buf))
	return buf.String()
}

func loaded(t *testing.T, n int) core.State {
	t.Helper()
	records := make([]core.Value, n)
	for i := range records {
		records[i] = core.Object(
			core.M("id", core.Number(float64(i+1))),
			core.M("name", core.String("<b>row</b>")),
			core.M("note", core.Null()),
			core.M("ok", core.Bool(i%2 == 0)),
		)
	}
	d, err := core.BuildDataset(records)
	require.NoError(t, err)

	st := core.UploadStart(core.NewState(), "people.json")
	return core.UploadSuccess(st, st.Generation, d)
}

func TestWorkspace_Idle(t *testing.T) {
	out := render(t, core.NewState())
	assert.Contains(t, out, `id="upload-form"`)
	assert.Contains(t, out, `accept=".json,.txt,application/json,text/plain"`)
	assert.NotContains(t, out, `id="error-alert"`)
	assert.NotContains(t, out, `<table`)
}

func TestWorkspace_LoadingShowsProgress(t *testing.T) {
	st := core.UploadStart(core.NewState(), "big.json")
	st = core.UploadProgress(st, st.Generation, 42)

	out := render(t, st)
	assert.Contains(t, out, `Reading big.json`)
	assert.Contains(t, out, `value="42"`)
	assert.Contains(t, out, `data-generation="1"`)
	assert.NotContains(t, out, `id="upload-form"`)
}

func TestWorkspace_ErrorAlertEscapedWithUploadZone(t *testing.T) {
	st := core.UploadStart(core.NewState(), "x.png")
	st = core.UploadError(st, st.Generation, errors.New("unsupported file type: \"image/png\""))

	out := render(t, st)
	assert.Contains(t, out, `role="alert"`)
	assert.Contains(t, out, "FILE001")
	assert.Contains(t, out, `action="/api/error/dismiss"`)
	assert.Contains(t, out, `id="upload-form"`, "failed upload offers a new one")
}

func TestWorkspace_Preview(t *testing.T) {
	out := render(t, loaded(t, 25))

	assert.Contains(t, out, "people.json")
	assert.Contains(t, out, "25 rows, 4 columns")
	assert.Contains(t, out, `<th scope="col">id</th><th scope="col">name</th><th scope="col">note</th><th scope="col">ok</th>`)
	assert.Contains(t, out, `<td>1</td><td>&lt;b&gt;row&lt;/b&gt;</td><td></td><td>true</td>`)
	assert.NotContains(t, out, "<b>row</b>")
	assert.Equal(t, 10, strings.Count(out, "<tr><td>"), "one page of rows")

	assert.Contains(t, out, `href="/api/export/xlsx"`)
	assert.Contains(t, out, `href="/api/export/csv"`)
	assert.Contains(t, out, `action="/api/reset"`)
}

func TestPagination(t *testing.T) {
	st := loaded(t, 25)

	out := render(t, st)
	assert.Contains(t, out, `<span class="page disabled" aria-disabled="true">Previous</span>`)
	assert.Contains(t, out, `<span class="page current" aria-current="page">1</span>`)
	assert.Contains(t, out, `data-page="3"`)
	assert.Contains(t, out, `href="/?page=2"`)

	st, err := core.PageChange(st, 3)
	require.NoError(t, err)
	out = render(t, st)
	assert.Contains(t, out, `<span class="page disabled" aria-disabled="true">Next</span>`)
	assert.Equal(t, 5, strings.Count(out, "<tr><td>"), "last page holds the remainder")
}

func TestPagination_HiddenForSinglePage(t *testing.T) {
	out := render(t, loaded(t, 3))
	assert.NotContains(t, out, `class="pagination"`)
}

func TestPagination_Ellipsis(t *testing.T) {
	st := loaded(t, 200)
	st, err := core.PageChange(st, 10)
	require.NoError(t, err)

	out := render(t, st)
	assert.Equal(t, 2, strings.Count(out, `class="ellipsis"`))
	assert.Contains(t, out, `data-page="20"`)
}

func TestExportBar_DisabledWhileExporting(t *testing.T) {
	st := core.ExportStart(loaded(t, 1), core.ExportCSV)

	var buf bytes.Buffer
	require.NoError(t, ExportBar(st).Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "href=")
	assert.Equal(t, 2, strings.Count(buf.String(), `aria-disabled="true"`))
}

func TestPage_Document(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page(core.NewState()).Render(context.Background(), &buf))
	out := buf.String()
	assert.True(t, strings.HasPrefix(strings.ToLower(out), "<!doctype html>"))
	assert.Contains(t, out, `<script src="/static/app.js" defer></script>`)
	assert.Contains(t, out, `<main id="workspace"`)
}

func TestUploadHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, UploadHistory(nil).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "No uploads recorded yet")

	buf.Reset()
	entries := []history.Entry{
		{FileName: "<x>.json", Rows: 3, Columns: 2, CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{FileName: "bad.png", ErrorCode: "FILE001"},
	}
	require.NoError(t, UploadHistory(entries).Render(context.Background(), &buf))
	out := buf.String()
	assert.Contains(t, out, "<td>2026-01-02 03:04:05</td><td>&lt;x&gt;.json</td><td>3</td><td>2</td><td>ok</td>")
	assert.Contains(t, out, "<td>FILE001</td>")
}

func TestErrorAlert_OptionalParts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorAlert(`"quoted" & <tag>`, "", "").Render(context.Background(), &buf))
	out := buf.String()
	assert.Contains(t, out, "<strong>&#34;quoted&#34; &amp; &lt;tag&gt;</strong>")
	assert.NotContains(t, out, "<p>")
	assert.NotContains(t, out, `class="code"`)
}
