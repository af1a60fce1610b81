package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Service defaults.
const (
	DefaultMaxSessions   = 1000
	DefaultSessionTTL    = 2 * time.Hour
	DefaultMaxFileSize   = 50 << 20
	DefaultUploadTimeout = 5 * time.Minute
)

// ServiceConfig tunes a Service. Zero fields select the defaults.
type ServiceConfig struct {
	MaxSessions   int
	SessionTTL    time.Duration
	MaxFileSize   int64
	MaxDepth      int
	PageSize      int
	UploadTimeout time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = DefaultUploadTimeout
	}
	return c
}

// FileInput is one uploaded file. Size is the client-reported length, used
// for progress and the early size check; -1 when unknown.
type FileInput struct {
	Name         string
	DeclaredMIME string
	Size         int64
	Body         io.Reader
}

// Progress is a session event published to subscribers.
type Progress struct {
	Generation uint64       `json:"generation"`
	Phase      SessionPhase `json:"phase"`
	Percent    int          `json:"percent"`
	FileName   string       `json:"file_name,omitempty"`
	Rows       int          `json:"rows,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Done reports whether the event ends an upload.
func (p Progress) Done() bool {
	return p.Phase == SessionReady || p.Phase == SessionFailed || p.Phase == SessionIdle
}

// HistoryRecorder persists a summary of every finished upload.
type HistoryRecorder interface {
	RecordUpload(ctx context.Context, rec UploadRecord) error
}

// UploadRecord summarizes one upload attempt.
type UploadRecord struct {
	ID         uuid.UUID
	SessionID  string
	FileName   string
	FileType   DeclaredType
	SizeBytes  int64
	Rows       int
	Columns    int
	Collisions int
	ErrorCode  string // empty on success
	Duration   time.Duration
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHistory records finished uploads to h.
func WithHistory(h HistoryRecorder) Option {
	return func(s *Service) { s.history = h }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service owns the sessions and runs the normalization pipeline for them.
type Service struct {
	cfg         ServiceConfig
	sessions    *expirable.LRU[string, *session]
	limiter     *Limiter
	serializers Serializers
	history     HistoryRecorder
	logger      *slog.Logger
}

type session struct {
	id string

	mu        sync.Mutex
	state     State
	listeners []chan Progress
}

// NewService creates a Service that exports through serializers.
func NewService(cfg ServiceConfig, serializers Serializers, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:         cfg,
		limiter:     NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		serializers: serializers,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = expirable.NewLRU[string, *session](cfg.MaxSessions, func(_ string, sess *session) {
		sess.closeListeners()
	}, cfg.SessionTTL)
	return s
}

// Limiter returns the upload limiter.
func (s *Service) Limiter() *Limiter { return s.limiter }

// NewSession creates an idle session and returns its ID.
func (s *Service) NewSession() string {
	st := NewState()
	st.PageSize = s.cfg.PageSize
	sess := &session{id: uuid.NewString(), state: st}
	s.sessions.Add(sess.id, sess)
	return sess.id
}

// Session returns the current state of session id.
func (s *Service) Session(id string) (State, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return State{}, err
	}
	return sess.snapshot(), nil
}

// Sessions returns the number of live sessions.
func (s *Service) Sessions() int { return s.sessions.Len() }

func (s *Service) lookup(id string) (*session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	// Re-adding refreshes the TTL.
	s.sessions.Add(id, sess)
	return sess, nil
}

// Upload runs the pipeline on in for session id and returns the resulting
// state. The returned error is the pipeline failure, also recorded in the
// state. A type the service cannot parse is rejected before in.Body is read.
func (s *Service) Upload(ctx context.Context, id string, in FileInput) (State, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return State{}, err
	}

	started := time.Now()
	st := sess.apply(func(st State) State { return UploadStart(st, in.Name) })
	gen := st.Generation
	log := s.logger.With("session_id", id, "file", in.Name, "generation", gen)
	log.Info("upload started", "declared_type", in.DeclaredMIME, "size", in.Size)

	rec := UploadRecord{
		ID:        uuid.New(),
		SessionID: id,
		FileName:  in.Name,
		SizeBytes: in.Size,
		IPAddress: IPAddressFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		CreatedAt: started.UTC(),
	}

	d, fileType, err := s.run(ctx, sess, gen, in)
	rec.FileType = fileType
	rec.Duration = time.Since(started)

	if err != nil {
		st = sess.apply(func(st State) State { return UploadError(st, gen, err) })
		rec.ErrorCode = MapError(err).Code
		log.Warn("upload failed", "error", err, "code", rec.ErrorCode, "duration", rec.Duration)
	} else {
		st = sess.apply(func(st State) State { return UploadSuccess(st, gen, d) })
		rec.Rows = d.Len()
		rec.Columns = len(d.Columns())
		rec.Collisions = d.Collisions()
		if rec.Collisions > 0 {
			log.Warn("flattened keys overwritten", "collisions", rec.Collisions)
		}
		log.Info("upload complete", "rows", rec.Rows, "columns", rec.Columns, "duration", rec.Duration)
	}
	if st.Generation != gen {
		log.Info("upload superseded")
	}

	s.record(ctx, rec)
	return st, err
}

// run reads and normalizes one upload. Progress for gen is published as
// bytes arrive.
func (s *Service) run(ctx context.Context, sess *session, gen uint64, in FileInput) (*Dataset, DeclaredType, error) {
	if in.Body == nil {
		return nil, "", ErrNoFile
	}

	fileType, err := DetectType(in.DeclaredMIME)
	if err != nil {
		return nil, "", err
	}
	if in.Size > s.cfg.MaxFileSize {
		return nil, fileType, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, in.Size, s.cfg.MaxFileSize)
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, fileType, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	onProgress := func(pct int) {
		sess.apply(func(st State) State { return UploadProgress(st, gen, pct) })
	}
	r := WrapForReading(&contextReader{ctx: ctx, r: in.Body}, in.Size, onProgress)
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, fileType, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fileType, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, s.cfg.MaxFileSize)
	}
	sess.apply(func(st State) State {
		return UploadProcessing(UploadProgress(st, gen, 100), gen)
	})

	d, err := s.normalize(string(sanitizeUTF8(data)), fileType)
	return d, fileType, err
}

func (s *Service) normalize(raw string, fileType DeclaredType) (*Dataset, error) {
	doc, err := Parser{MaxDepth: s.cfg.MaxDepth}.Parse(raw, fileType)
	if err != nil {
		return nil, err
	}
	records, err := Extract(doc)
	if err != nil {
		return nil, err
	}
	return Flattener{MaxDepth: s.cfg.MaxDepth}.BuildDataset(records)
}

func (s *Service) record(ctx context.Context, rec UploadRecord) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.RecordUpload(ctx, rec); err != nil {
		s.logger.Error("record upload history", "error", err, "upload_id", rec.ID)
	}
}

// ChangePage moves session id to page.
func (s *Service) ChangePage(id string, page int) (State, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return State{}, err
	}
	var pageErr error
	st := sess.apply(func(st State) State {
		next, err := PageChange(st, page)
		pageErr = err
		return next
	})
	return st, pageErr
}

// Export writes session id's dataset to w in format and returns the
// download filename. On failure the error is recorded in the session and
// the dataset kept.
func (s *Service) Export(ctx context.Context, id string, format ExportFormat, w io.Writer) (string, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return "", err
	}

	st := sess.apply(func(st State) State { return ExportStart(st, format) })
	name, err := Export(ctx, s.serializers, st.Dataset, format, st.FileName, w)
	if err != nil {
		sess.apply(func(st State) State { return ExportError(st, err) })
		s.logger.Warn("export failed", "session_id", id, "format", format, "error", err)
		return "", err
	}
	sess.apply(ExportDone)
	s.logger.Info("export complete", "session_id", id, "format", format, "file", name, "rows", st.Dataset.Len())
	return name, nil
}

// Reset returns session id to idle. An upload still running for the
// session is ignored when it finishes.
func (s *Service) Reset(id string) (State, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return State{}, err
	}
	return sess.apply(Reset), nil
}

// DismissError clears the error shown in session id.
func (s *Service) DismissError(id string) (State, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return State{}, err
	}
	return sess.apply(ClearError), nil
}

// SubscribeProgress returns a channel of session events starting with the
// current state. Slow subscribers miss intermediate events. The channel is
// closed by the returned cancel func or when the session expires.
func (s *Service) SubscribeProgress(id string) (<-chan Progress, func(), error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Progress, 16)
	sess.mu.Lock()
	sess.listeners = append(sess.listeners, ch)
	ch <- progressOf(sess.state)
	sess.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { sess.removeListener(ch) })
	}
	return ch, cancel, nil
}

// Close waits for running uploads to finish and drops every session.
func (s *Service) Close(ctx context.Context) error {
	err := s.limiter.Drain(ctx)
	s.sessions.Purge()
	return err
}

func (sess *session) snapshot() State {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}

// apply runs a transition and publishes the new state when it changed the
// visible progress.
func (sess *session) apply(fn func(State) State) State {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	prev := sess.state
	sess.state = fn(prev)
	if ev := progressOf(sess.state); ev != progressOf(prev) {
		for _, ch := range sess.listeners {
			select {
			case ch <- ev:
			default:
			}
		}
	}
	return sess.state
}

func (sess *session) removeListener(ch chan Progress) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for i, l := range sess.listeners {
		if l == ch {
			sess.listeners = append(sess.listeners[:i], sess.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (sess *session) closeListeners() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, ch := range sess.listeners {
		close(ch)
	}
	sess.listeners = nil
}

func progressOf(st State) Progress {
	p := Progress{
		Generation: st.Generation,
		Phase:      st.Phase,
		Percent:    st.Progress,
		FileName:   st.FileName,
		Rows:       st.Dataset.Len(),
	}
	if st.Err != nil {
		p.Error = st.Message.Message
	}
	return p
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
