package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/JonMunkholm/flatsheet/internal/history"
	"github.com/JonMunkholm/flatsheet/internal/logging"
	"github.com/JonMunkholm/flatsheet/internal/web/templates"
)

// multipartOverhead is the body allowance on top of the file size for
// boundaries and the size field.
const multipartOverhead = 1 << 20

// keepaliveInterval spaces comment lines on an idle progress stream.
const keepaliveInterval = 15 * time.Second

// sessionResponse is the JSON view of a session.
type sessionResponse struct {
	Generation uint64            `json:"generation"`
	Phase      core.SessionPhase `json:"phase"`
	FileName   string            `json:"file_name,omitempty"`
	Progress   int               `json:"progress"`
	Rows       int               `json:"rows"`
	Columns    []string          `json:"columns,omitempty"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Records    []core.FlatRecord `json:"records,omitempty"`
	Error      *ErrorResponse    `json:"error,omitempty"`
}

func toSessionResponse(st core.State) sessionResponse {
	resp := sessionResponse{
		Generation: st.Generation,
		Phase:      st.Phase,
		FileName:   st.FileName,
		Progress:   st.Progress,
		Rows:       st.Dataset.Len(),
		Columns:    st.Columns(),
		Page:       st.Page,
		TotalPages: st.TotalPages(),
		Records:    st.Rows(),
	}
	if st.HasError() {
		resp.Error = errorResponse(st.Message)
	}
	return resp
}

// respondState answers a session change: the workspace fragment for the
// page script, a redirect for plain browser requests, JSON otherwise.
func (s *Server) respondState(w http.ResponseWriter, r *http.Request, st core.State, status int) {
	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		templates.Workspace(st).Render(r.Context(), w)
	case isBrowser(r):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		writeJSON(w, status, toSessionResponse(st))
	}
}

// parsePage returns the page query parameter, or 0 when absent or invalid.
func parsePage(r *http.Request) int {
	p, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 0
	}
	return p
}

// handleIndex renders the page. A valid ?page= moves the preview first.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r.Context())
	st, err := s.service.Session(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if page := parsePage(r); page > 0 && st.HasData() {
		if next, err := s.service.ChangePage(id, page); err == nil {
			st = next
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Page(st).Render(r.Context(), w)
}

// handleTable moves the preview to ?page=N.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	if page == 0 {
		page = 1
	}
	st, err := s.service.ChangePage(sessionID(r.Context()), page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) || wantsJSON(r) {
		s.respondState(w, r, st, http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Page(st).Render(r.Context(), w)
}

// handleSession returns the session as JSON.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Session(sessionID(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(st))
}

// handleUpload streams the multipart "file" field through the pipeline.
// Pipeline failures are part of the returned session state.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	in, err := fileFromMultipart(r)
	if err != nil {
		s.respondError(w, r, badRequest(err))
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	st, err := s.service.Upload(ctx, sessionID(ctx), in)
	if errors.Is(err, core.ErrSessionNotFound) {
		s.respondError(w, r, err)
		return
	}
	s.respondState(w, r, st, statusFor(err))
}

// fileFromMultipart returns the "file" part without buffering it. A
// preceding "size" field supplies the file length for progress; without it
// Size is -1. A missing or unnamed file part leaves Body nil.
func fileFromMultipart(r *http.Request) (core.FileInput, error) {
	in := core.FileInput{Size: -1}

	mr, err := r.MultipartReader()
	if err != nil {
		return in, fmt.Errorf("invalid upload form: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return in, nil
		}
		if err != nil {
			return in, fmt.Errorf("invalid upload form: %w", err)
		}

		switch part.FormName() {
		case "size":
			b, _ := io.ReadAll(io.LimitReader(part, 32))
			if n, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64); err == nil && n >= 0 {
				in.Size = n
			}
		case "file":
			if part.FileName() == "" {
				return in, nil
			}
			in.Name = part.FileName()
			in.DeclaredMIME = part.Header.Get("Content-Type")
			in.Body = part
			return in, nil
		}
	}
}

// handleUploadProgress streams session events as Server-Sent Events.
// Events from generations up to ?after= are skipped; the stream ends with a
// "complete" event once a newer upload finishes, fails or is reset.
func (s *Server) handleUploadProgress(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)

	events, cancel, err := s.service.SubscribeProgress(sessionID(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Warn("progress stream: flush unsupported", "error", err)
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				rc.Flush()
				return
			}
			if ev.Generation <= after {
				continue
			}
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", ev.Generation, data)
			if ev.Done() {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				rc.Flush()
				return
			}
			rc.Flush()

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			rc.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleReset clears the session and retires any running upload.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Reset(sessionID(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondState(w, r, st, http.StatusOK)
}

// handleDismissError clears the error shown in the session.
func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.DismissError(sessionID(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondState(w, r, st, http.StatusOK)
}

// handleExport serves the dataset as an attachment. The file is built in
// memory first so a failure can still be answered with an error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := core.ParseExportFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.respondError(w, r, &httpError{status: http.StatusNotFound, err: err})
		return
	}

	var buf bytes.Buffer
	name, err := s.service.Export(r.Context(), sessionID(r.Context()), format, &buf)
	if err != nil {
		if isBrowser(r) {
			// The session now holds the error; the page shows it.
			logging.FromContext(r.Context()).Warn("export failed", "format", format, "error", err)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("export write", "error", err)
	}
}

// statusResponse is the body of /api/status.
type statusResponse struct {
	Status   string             `json:"status"`
	Uptime   string             `json:"uptime"`
	Sessions int                `json:"sessions"`
	Uploads  core.LimiterStatus `json:"uploads"`
	History  *history.Summary   `json:"history_24h,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:   "ok",
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Sessions: s.service.Sessions(),
		Uploads:  s.service.Limiter().Status(),
	}
	if s.history != nil {
		sum, err := s.history.SummarySince(r.Context(), time.Now().Add(-24*time.Hour))
		if err != nil {
			logging.FromContext(r.Context()).Warn("history summary", "error", err)
		} else {
			resp.History = &sum
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistory lists recent uploads as JSON, or as a table fragment for
// the page script. ?limit= caps the count.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "history disabled",
			Message: "Upload history is not enabled",
			Action:  "Configure DATABASE_URL to record uploads",
			Code:    "HIST001",
		})
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, r, badRequest(fmt.Errorf("invalid limit %q", v)))
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.UploadHistory(entries).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": entries, "count": len(entries)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}
