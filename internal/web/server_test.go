package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flatsheet/internal/config"
	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/JonMunkholm/flatsheet/internal/export"
	"github.com/JonMunkholm/flatsheet/internal/history"
)

const peopleJSON = `{"Payload":{"Data":[{"id":1,"name":"Ada","tags":["a","b"]},{"id":2,"name":"Linus","address":{"city":"Helsinki"}}]}}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	cfg.Rate.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	svc := core.NewService(core.ServiceConfig{}, core.Serializers{
		Workbook: export.NewWorkbook(cfg.Export.SheetName),
		CSV:      export.NewCSV(),
	})
	s := NewServer(cfg, svc, opts...)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

// client replays the session cookie between requests.
type client struct {
	t      *testing.T
	s      *Server
	cookie *http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.s.Router().ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == c.s.cfg.Session.CookieName {
			c.cookie = ck
		}
	}
	return rec
}

func uploadRequest(t *testing.T, name, contentType, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("size", fmt.Sprint(len(body))))
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func fragment(req *http.Request) *http.Request {
	req.Header.Set("HX-Request", "true")
	return req
}

func TestIndex_CreatesSession(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	rec := c.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="upload-form"`)
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)
	assert.Equal(t, 1, s.service.Sessions())

	// The cookie is reused, not replaced.
	first := c.cookie.Value
	rec = c.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, first, c.cookie.Value)
	assert.Equal(t, 1, s.service.Sessions())
}

func TestUploadAndExport(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	rec := c.do(fragment(uploadRequest(t, "people.json", "application/json", peopleJSON)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "2 rows, 4 columns")
	assert.Contains(t, body, `<th scope="col">tags</th>`)
	assert.Contains(t, body, `<td>[&#34;a&#34;,&#34;b&#34;]</td>`)

	rec = c.do(httptest.NewRequest(http.MethodGet, "/api/export/csv", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=people.csv`, rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,tags,address.city", strings.TrimSpace(lines[0]))
	assert.Equal(t, `1,Ada,"[""a"",""b""]",`, strings.TrimSpace(lines[1]))

	rec = c.do(httptest.NewRequest(http.MethodGet, "/api/export/XLSX", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=people.xlsx`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip container")
}

func TestUpload_UnsupportedType(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	rec := c.do(fragment(uploadRequest(t, "photo.png", "image/png", "\x89PNG")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE001")
	assert.Contains(t, rec.Body.String(), `id="upload-form"`)
}

func TestUpload_JSONClient(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	rec := c.do(uploadRequest(t, "bad.json", "application/json", `{"a":`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.SessionFailed, resp.Phase)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PARSE001", resp.Error.Code)
	assert.Zero(t, resp.Rows)

	rec = c.do(uploadRequest(t, "rows.txt", "text/plain", "a;b\n1;2\n3;4\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.SessionReady, resp.Phase)
	assert.Equal(t, 2, resp.Rows)
	assert.Equal(t, []string{"a", "b"}, resp.Columns)
	assert.Nil(t, resp.Error)
}

func TestUpload_NoFile(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("size", "10"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := c.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE003")
}

func TestUpload_NotMultipart(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := c.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrowserFormsRedirect(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	req := uploadRequest(t, "people.json", "application/json", peopleJSON)
	req.Header.Set("Accept", "text/html")
	rec := c.do(req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodPost, "/api/reset", nil)
	req.Header.Set("Accept", "text/html")
	rec = c.do(req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	st, err := s.service.Session(c.cookie.Value)
	require.NoError(t, err)
	assert.False(t, st.HasData())
}

func TestExport_NoData(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	rec := c.do(httptest.NewRequest(http.MethodGet, "/api/export/csv", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "DATA002", resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/export/csv", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec = c.do(req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = c.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "There is no data to export")
}

func TestExport_UnknownFormat(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	rec := c.do(httptest.NewRequest(http.MethodGet, "/api/export/pdf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTable_Pages(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	var rows []string
	for i := 1; i <= 25; i++ {
		rows = append(rows, fmt.Sprintf(`{"n":%d}`, i))
	}
	rec := c.do(uploadRequest(t, "n.json", "application/json", "["+strings.Join(rows, ",")+"]"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(fragment(httptest.NewRequest(http.MethodGet, "/table?page=3", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<td>21</td>")
	assert.NotContains(t, rec.Body.String(), "<td>20</td>")

	req := httptest.NewRequest(http.MethodGet, "/table?page=9", nil)
	req.Header.Set("Accept", "application/json")
	rec = c.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAGE001")

	rec = c.do(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Page, "a rejected page keeps the current one")
	assert.Equal(t, 3, resp.TotalPages)
	assert.Len(t, resp.Records, 5)
}

func TestDismissError(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	c.do(uploadRequest(t, "x.png", "image/png", "x"))
	rec := c.do(fragment(httptest.NewRequest(http.MethodPost, "/api/error/dismiss", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `role="alert"`)
}

func TestUploadProgress_StreamsUntilDone(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}

	rec := c.do(uploadRequest(t, "people.json", "application/json", peopleJSON))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(httptest.NewRequest(http.MethodGet, "/api/upload/progress?after=0", nil))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "id: 1\nevent: progress\n")
	assert.Contains(t, body, `"phase":"ready"`)
	assert.True(t, strings.HasSuffix(body, "event: complete\ndata: {}\n\n"))
}

func TestUploadProgress_SkipsOlderGenerations(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	c := &client{t: t, s: s}
	c.do(uploadRequest(t, "people.json", "application/json", peopleJSON))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/upload/progress?after=1", nil).WithContext(ctx)
	rec := c.do(req)
	assert.NotContains(t, rec.Body.String(), "event: progress")
}

type fakeHistory struct {
	entries []history.Entry
	limit   int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	f.limit = limit
	return f.entries, nil
}

func (f *fakeHistory) SummarySince(context.Context, time.Time) (history.Summary, error) {
	return history.Summary{Total: int64(len(f.entries)), Failed: 1}, nil
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, testConfig(t))
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "HIST001")
	})

	t.Run("enabled", func(t *testing.T) {
		h := &fakeHistory{entries: []history.Entry{
			{FileName: "a.json", Rows: 2},
			{FileName: "b.png", ErrorCode: "FILE001"},
		}}
		s := newTestServer(t, testConfig(t), WithHistory(h))

		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=7", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 7, h.limit)
		assert.Contains(t, rec.Body.String(), `"count":2`)

		rec = httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=x", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var status statusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		require.NotNil(t, status.History)
		assert.Equal(t, int64(1), status.History.Failed)
		assert.Equal(t, core.DefaultMaxConcurrentUploads, status.Uploads.Capacity)
	})

	t.Run("api key", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Security.RequireAPIKey = true
		cfg.Security.APIKeys = []string{"secret"}
		s := newTestServer(t, cfg, WithHistory(&fakeHistory{}))

		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
		req.Header.Set("X-API-Key", "secret")
		rec = httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		// The UI does not need a key.
		rec = httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2
	s := newTestServer(t, cfg)

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Other clients have their own budget.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.2:1234"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestStatic(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{badRequest(errors.New("x")), http.StatusBadRequest},
		{core.ErrSessionNotFound, http.StatusNotFound},
		{core.ErrNoFile, http.StatusBadRequest},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{core.ErrExportLibraryMissing, http.StatusNotImplemented},
		{fmt.Errorf("wrapped: %w", core.ErrEmptyDataset), http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestRespondError_LogLevelAndBody(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	s := newTestServer(t, testConfig(t))

	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantCode  string
	}{
		{"mapped client error", core.ErrFileTooLarge, "WARN", "FILE002"},
		{"unmapped client error", badRequest(errors.New("mystery")), "ERROR", "ERR000"},
		{"server error", errors.New("boom"), "ERROR", "ERR000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.Reset()
			rec := httptest.NewRecorder()
			s.respondError(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil), tt.err)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.err.Error(), entry["error"])
		})
	}
}
