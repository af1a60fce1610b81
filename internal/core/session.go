package core

// session.go models the per-user session as an immutable State value.
//
// Every transition is a pure function that takes a State and returns a new
// one; nothing mutates a State in place. Upload transitions carry the upload
// generation they belong to and are ignored once a newer upload (or a reset)
// has bumped the session's generation, so a late completion from a discarded
// upload can never overwrite the current one.

// SessionPhase is the stage of the session's current upload.
type SessionPhase string

const (
	SessionIdle       SessionPhase = "idle"
	SessionReading    SessionPhase = "reading"
	SessionProcessing SessionPhase = "processing"
	SessionReady      SessionPhase = "ready"
	SessionFailed     SessionPhase = "failed"
)

// State is a snapshot of one session.
type State struct {
	Generation uint64
	Phase      SessionPhase
	FileName   string
	Progress   int // read progress 0-100
	Dataset    *Dataset
	Page       int
	PageSize   int
	Exporting  ExportFormat // non-empty while an export runs

	// Err is the technical error behind Message. Both are empty unless the
	// last upload or export failed.
	Err     error
	Message UserMessage
}

// NewState returns an idle session state.
func NewState() State {
	return State{Phase: SessionIdle, Page: 1, PageSize: DefaultPageSize}
}

// Loading reports whether an upload is being read or processed.
func (s State) Loading() bool {
	return s.Phase == SessionReading || s.Phase == SessionProcessing
}

// HasData reports whether a dataset is loaded.
func (s State) HasData() bool { return s.Dataset.Len() > 0 }

// HasError reports whether the session holds an error.
func (s State) HasError() bool { return s.Err != nil }

// TotalPages returns the number of pages in the loaded dataset.
func (s State) TotalPages() int { return PageCount(s.Dataset.Len(), s.pageSize()) }

// Columns returns the column union of the loaded dataset.
func (s State) Columns() []string { return s.Dataset.Columns() }

// Rows returns the records on the current page.
func (s State) Rows() []FlatRecord { return s.Dataset.Page(s.Page, s.pageSize()) }

// Window returns the page-number bar for the current page.
func (s State) Window() []PageItem { return PageWindow(s.Page, s.TotalPages()) }

func (s State) pageSize() int {
	if s.PageSize > 0 {
		return s.PageSize
	}
	return DefaultPageSize
}

// UploadStart discards the previous dataset, error and progress and opens a
// new upload generation.
func UploadStart(s State, fileName string) State {
	return State{
		Generation: s.Generation + 1,
		Phase:      SessionReading,
		FileName:   fileName,
		Page:       1,
		PageSize:   s.pageSize(),
	}
}

// UploadProgress records read progress for generation gen.
func UploadProgress(s State, gen uint64, percent int) State {
	if gen != s.Generation || s.Phase != SessionReading {
		return s
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	s.Progress = percent
	return s
}

// UploadProcessing marks the end of reading for generation gen.
func UploadProcessing(s State, gen uint64) State {
	if gen != s.Generation || s.Phase != SessionReading {
		return s
	}
	s.Phase = SessionProcessing
	return s
}

// UploadSuccess installs d as the session dataset for generation gen.
func UploadSuccess(s State, gen uint64, d *Dataset) State {
	if gen != s.Generation || !s.Loading() {
		return s
	}
	s.Phase = SessionReady
	s.Dataset = d
	s.Progress = 100
	s.Page = 1
	s.Err = nil
	s.Message = UserMessage{}
	return s
}

// UploadError records err for generation gen. No dataset is kept alongside
// an upload error.
func UploadError(s State, gen uint64, err error) State {
	if gen != s.Generation || !s.Loading() {
		return s
	}
	s.Phase = SessionFailed
	s.Dataset = nil
	s.Page = 1
	s.Err = err
	s.Message = MapError(err)
	return s
}

// PageChange moves to page, rejecting pages outside 1..TotalPages.
func PageChange(s State, page int) (State, error) {
	if err := ValidatePage(page, s.TotalPages()); err != nil {
		return s, err
	}
	s.Page = page
	return s, nil
}

// ExportStart marks an export of the given format as running.
func ExportStart(s State, format ExportFormat) State {
	s.Exporting = format
	return s
}

// ExportDone clears the running export.
func ExportDone(s State) State {
	s.Exporting = ""
	return s
}

// ExportError records an export failure. The dataset is kept.
func ExportError(s State, err error) State {
	s.Exporting = ""
	s.Err = err
	s.Message = MapError(err)
	return s
}

// ClearError dismisses the current error.
func ClearError(s State) State {
	s.Err = nil
	s.Message = UserMessage{}
	return s
}

// Reset returns the session to idle and retires any upload in flight.
func Reset(s State) State {
	next := NewState()
	next.Generation = s.Generation + 1
	next.PageSize = s.pageSize()
	return next
}
