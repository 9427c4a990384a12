package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/explorer/internal/dataset"
	"github.com/JonMunkholm/explorer/internal/ingest"
	"github.com/JonMunkholm/explorer/internal/logging"
	"github.com/JonMunkholm/explorer/internal/metrics"
	"github.com/JonMunkholm/explorer/internal/query"
	"github.com/JonMunkholm/explorer/internal/sample"
	"github.com/JonMunkholm/explorer/internal/stats"
	"github.com/JonMunkholm/explorer/internal/view"
)

// SessionConfig carries a session's collaborators and limits. Zero values
// are usable: the rule interpreter is used, loads are not throttled, and
// queries answer immediately.
type SessionConfig struct {
	Interpreter  query.Interpreter
	Limiter      *LoadLimiter
	Metrics      *metrics.Metrics
	MaxFileSize  int64
	LoadTimeout  time.Duration
	QueryLatency time.Duration
	HistoryLimit int
	Sample       sample.Options
}

// Session is one user's explorer state: at most one dataset plus the view
// parameters and query history that belong to it.
//
// All methods are safe for concurrent use. Loads and queries do their slow
// work outside the lock and only commit if no newer load, query or reset has
// started in the meantime.
type Session struct {
	id      string
	created time.Time
	cfg     SessionConfig

	mu       sync.Mutex
	state    State
	errMsg   string
	progress int
	fileName string
	ds       *dataset.Dataset
	stats    stats.Set
	params   ViewParams
	history  *History
	loadGen  uint64
	queryGen uint64
	querying bool

	listenerMu sync.Mutex
	listeners  map[chan Progress]struct{}
	closed     bool
}

// NewSession creates an empty session. An empty id gets a random UUID.
func NewSession(id string, cfg SessionConfig) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if cfg.Interpreter == nil {
		cfg.Interpreter = query.NewRuleInterpreter()
	}
	return &Session{
		id:        id,
		created:   time.Now(),
		cfg:       cfg,
		state:     StateEmpty,
		params:    defaultParams(nil, view.DefaultPageSize),
		history:   NewHistory(cfg.HistoryLimit),
		listeners: make(map[chan Progress]struct{}),
	}
}

func defaultParams(headers []string, pageSize int) ViewParams {
	visible := make([]string, len(headers))
	copy(visible, headers)
	return ViewParams{
		SortDirection:  view.Asc,
		VisibleColumns: visible,
		CurrentPage:    1,
		PageSize:       pageSize,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.created }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns the current derived view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// =============================================================================
// Loading
// =============================================================================

type loadFunc func(ctx context.Context, onProgress func(percent int)) (*dataset.Dataset, error)

// Load replaces the dataset with the parsed contents of r. size is the
// byte length of r when known; it is checked against the size cap before
// reading and used for progress.
//
// On failure the session becomes empty and the error message is recorded in
// the view. If another Load, LoadSample or Reset starts before this one
// finishes, the result is discarded and ErrSuperseded is returned.
func (s *Session) Load(ctx context.Context, fileName string, r io.Reader, size int64) (View, error) {
	return s.loadFile(ctx, fileName, r, ingest.Options{Size: size})
}

// LoadStream is Load for a source whose exact length is unknown. approxSize
// bounds the length from above and only drives progress; the size cap is
// enforced on the bytes actually read.
func (s *Session) LoadStream(ctx context.Context, fileName string, r io.Reader, approxSize int64) (View, error) {
	return s.loadFile(ctx, fileName, r, ingest.Options{ApproxSize: approxSize})
}

func (s *Session) loadFile(ctx context.Context, fileName string, r io.Reader, opts ingest.Options) (View, error) {
	format := strings.TrimPrefix(ingest.Ext(fileName), ".")
	if format == "" {
		format = "none"
	}

	return s.load(ctx, fileName, format, func(ctx context.Context, onProgress func(int)) (*dataset.Dataset, error) {
		opts.MaxFileSize = s.cfg.MaxFileSize
		opts.OnProgress = onProgress
		return ingest.Parse(ctx, fileName, r, opts)
	})
}

// LoadSample replaces the dataset with generated stock data, reporting
// progress 0 through 100 in steps of 10.
func (s *Session) LoadSample(ctx context.Context) (View, error) {
	return s.load(ctx, "sample data", "sample", func(ctx context.Context, onProgress func(int)) (*dataset.Dataset, error) {
		return sample.Load(ctx, s.cfg.Sample, onProgress)
	})
}

func (s *Session) load(ctx context.Context, fileName, format string, fn loadFunc) (View, error) {
	start := time.Now()
	fields := append([]any{"session_id", s.id, "file", fileName}, ClientFromContext(ctx).logFields()...)
	log := logging.WithFields(ctx, fields...)

	gen := s.beginLoad(fileName)
	log.Info("load started")

	ds, loadErr := s.runLoader(ctx, log, gen, fn)
	v, err := s.finishLoad(gen, ds, loadErr)

	status, rows := "success", 0
	switch {
	case errors.Is(err, ErrSuperseded):
		status = "superseded"
		log.Info("load superseded")
	case err != nil:
		status = "error"
		log.Warn("load failed", "error", err)
	default:
		rows = v.RowCount
		log.Info("load completed",
			"rows", v.RowCount,
			"columns", v.ColumnCount,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	s.cfg.Metrics.RecordLoad(format, status, time.Since(start), rows)

	return v, err
}

func (s *Session) runLoader(ctx context.Context, log *slog.Logger, gen uint64, fn loadFunc) (ds *dataset.Dataset, err error) {
	if l := s.cfg.Limiter; l != nil {
		if err := l.Acquire(ctx); err != nil {
			return nil, err
		}
		defer l.Release()
	}

	if s.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LoadTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in load", "panic", r)
			ds, err = nil, fmt.Errorf("internal error: %v", r)
		}
	}()

	return fn(ctx, func(p int) { s.setProgress(gen, p) })
}

func (s *Session) beginLoad(fileName string) uint64 {
	s.mu.Lock()
	s.loadGen++
	s.queryGen++
	s.querying = false
	s.state = StateLoading
	s.errMsg = ""
	s.progress = 0
	s.fileName = fileName
	gen := s.loadGen
	s.broadcastLocked(s.progressLocked())
	s.mu.Unlock()

	return gen
}

func (s *Session) setProgress(gen uint64, percent int) {
	s.mu.Lock()
	if gen != s.loadGen || percent <= s.progress {
		s.mu.Unlock()
		return
	}
	s.progress = percent
	s.broadcastLocked(s.progressLocked())
	s.mu.Unlock()
}

func (s *Session) finishLoad(gen uint64, ds *dataset.Dataset, loadErr error) (View, error) {
	s.mu.Lock()

	if gen != s.loadGen {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, ErrSuperseded
	}

	s.history.Clear()
	if loadErr != nil {
		s.state = StateEmpty
		s.ds = nil
		s.stats = stats.Set{}
		s.errMsg = MapError(loadErr).Message
		s.progress = 0
		s.params = defaultParams(nil, s.params.PageSize)
	} else {
		s.state = StateReady
		s.ds = ds
		s.stats = stats.ComputeAll(ds)
		s.errMsg = ""
		s.progress = 100
		s.params = defaultParams(ds.Headers(), s.params.PageSize)
	}

	v := s.viewLocked()
	s.broadcastLocked(s.progressLocked())
	s.mu.Unlock()

	return v, loadErr
}

// =============================================================================
// Queries
// =============================================================================

// Query answers prompt against the loaded dataset and prepends the result
// to the history. The configured latency is simulated before answering and
// ends early if ctx is cancelled. A newer Query, Load or Reset supersedes
// this one.
func (s *Session) Query(ctx context.Context, prompt string) (View, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return s.View(), ErrEmptyPrompt
	}

	s.mu.Lock()
	if s.state != StateReady {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, ErrNotReady
	}
	s.queryGen++
	qgen, lgen, ds := s.queryGen, s.loadGen, s.ds
	s.querying = true
	s.mu.Unlock()

	start := time.Now()
	ans, err := s.answer(ctx, prompt, ds)

	s.mu.Lock()
	defer s.mu.Unlock()

	if qgen != s.queryGen || lgen != s.loadGen {
		return s.viewLocked(), ErrSuperseded
	}
	s.querying = false
	if err != nil {
		return s.viewLocked(), err
	}

	s.history.Add(QueryResult{
		ID:           uuid.NewString(),
		Query:        prompt,
		Response:     ans.Text,
		Timestamp:    time.Now(),
		RowsAffected: ans.RowsAffected,
		Intent:       ans.Intent,
	})
	s.cfg.Metrics.RecordQuery(string(ans.Intent), time.Since(start))

	logging.WithFields(ctx, "session_id", s.id).Debug("query answered",
		"intent", ans.Intent,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s.viewLocked(), nil
}

func (s *Session) answer(ctx context.Context, prompt string, ds *dataset.Dataset) (query.Answer, error) {
	if d := s.cfg.QueryLatency; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return query.Answer{}, ctx.Err()
		case <-t.C:
		}
	}
	return s.cfg.Interpreter.Interpret(ctx, prompt, ds)
}

// History returns the query history, newest first.
func (s *Session) History() []QueryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.All()
}

// =============================================================================
// View parameters
// =============================================================================

// SetViewParameters merges u into the current parameters. Choosing the
// column that is already sorted flips the direction; choosing another
// column sorts it ascending; an empty column clears the sort. An explicit
// SortDirection overrides both while a sort column is set.
// Nothing changes if any field is invalid.
func (s *Session) SetViewParameters(u ViewUpdate) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.params
	next.VisibleColumns = slices.Clone(s.params.VisibleColumns)

	if u.SortColumn != nil {
		col := *u.SortColumn
		switch {
		case col == "":
			next.SortColumn = ""
			next.SortDirection = view.Asc
		case s.ds == nil:
			return s.viewLocked(), ErrNotReady
		case !s.ds.HasColumn(col):
			return s.viewLocked(), fmt.Errorf("sort by %q: %w", col, ErrUnknownColumn)
		case col == next.SortColumn:
			next.SortDirection = next.SortDirection.Toggle()
		default:
			next.SortColumn = col
			next.SortDirection = view.Asc
		}
	}

	if u.SortDirection != nil {
		dir, err := view.ParseDirection(string(*u.SortDirection))
		if err != nil {
			return s.viewLocked(), err
		}
		if next.SortColumn != "" {
			next.SortDirection = dir
		}
	}

	if u.PageSize != nil {
		if *u.PageSize < 1 {
			return s.viewLocked(), fmt.Errorf("%w: %d", ErrInvalidPageSize, *u.PageSize)
		}
		next.PageSize = *u.PageSize
	}

	if u.SearchTerm != nil {
		next.SearchTerm = *u.SearchTerm
	}
	if u.VisibleColumns != nil {
		next.VisibleColumns = slices.Clone(u.VisibleColumns)
	}
	if u.CurrentPage != nil {
		next.CurrentPage = max(1, *u.CurrentPage)
	}

	s.params = next
	return s.viewLocked(), nil
}

// SetSearchTerm filters rows to those containing term in any cell.
func (s *Session) SetSearchTerm(term string) (View, error) {
	return s.SetViewParameters(ViewUpdate{SearchTerm: &term})
}

// ToggleSort sorts by column, flipping the direction if it is already the
// sort column.
func (s *Session) ToggleSort(column string) (View, error) {
	if column == "" {
		return s.View(), fmt.Errorf("sort by %q: %w", column, ErrUnknownColumn)
	}
	return s.SetViewParameters(ViewUpdate{SortColumn: &column})
}

// SortBy sorts by column in the given direction. An empty column clears
// the sort.
func (s *Session) SortBy(column string, dir view.Direction) (View, error) {
	return s.SetViewParameters(ViewUpdate{SortColumn: &column, SortDirection: &dir})
}

// SetPage moves to page n. Pages beyond the last are clamped when the view
// is derived.
func (s *Session) SetPage(n int) (View, error) {
	return s.SetViewParameters(ViewUpdate{CurrentPage: &n})
}

// SetPageSize changes the number of rows per page.
func (s *Session) SetPageSize(n int) (View, error) {
	return s.SetViewParameters(ViewUpdate{PageSize: &n})
}

// ToggleColumnVisibility shows a hidden column or hides a visible one.
// Visible columns keep header order.
func (s *Session) ToggleColumnVisibility(column string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ds == nil {
		return s.viewLocked(), ErrNotReady
	}
	if !s.ds.HasColumn(column) {
		return s.viewLocked(), fmt.Errorf("toggle %q: %w", column, ErrUnknownColumn)
	}

	visible := s.params.VisibleColumns
	shown := slices.Contains(visible, column)

	next := make([]string, 0, len(visible)+1)
	for _, h := range s.ds.Headers() {
		if h == column {
			if !shown {
				next = append(next, h)
			}
			continue
		}
		if slices.Contains(visible, h) {
			next = append(next, h)
		}
	}
	// Names that are not headers have no effect but are kept as given.
	for _, v := range visible {
		if !s.ds.HasColumn(v) {
			next = append(next, v)
		}
	}

	s.params.VisibleColumns = next
	return s.viewLocked(), nil
}

// Reset discards the dataset, parameters and history. Any in-flight load
// or query is superseded.
func (s *Session) Reset() View {
	s.mu.Lock()
	s.loadGen++
	s.queryGen++
	s.querying = false
	s.state = StateEmpty
	s.ds = nil
	s.stats = stats.Set{}
	s.errMsg = ""
	s.progress = 0
	s.fileName = ""
	s.params = defaultParams(nil, view.DefaultPageSize)
	s.history.Clear()
	v := s.viewLocked()
	s.broadcastLocked(s.progressLocked())
	s.mu.Unlock()

	return v
}

// =============================================================================
// Derived output
// =============================================================================

// viewLocked derives the view. Caller must hold s.mu. A current page past
// the last page is clamped and stored.
func (s *Session) viewLocked() View {
	v := View{
		SessionID:  s.id,
		CreatedAt:  s.created,
		State:      s.state,
		Error:      s.errMsg,
		Progress:   s.progress,
		FileName:   s.fileName,
		Querying:   s.querying,
		Headers:    []string{},
		Columns:    []string{},
		Rows:       [][]dataset.Cell{},
		Page:       1,
		PageSize:   s.params.PageSize,
		TotalPages: 1,
		Stats:      s.stats,
		History:    s.history.All(),
	}

	if s.ds != nil {
		rows := s.orderedRowsLocked()
		if total := view.TotalPages(len(rows), s.params.PageSize); s.params.CurrentPage > total {
			s.params.CurrentPage = total
		}
		page := view.Paginate(rows, s.params.CurrentPage, s.params.PageSize)
		cols := s.visibleLocked()

		v.Headers = s.ds.Headers()
		v.Columns = cols
		v.Rows = project(page.Rows, cols)
		v.RowCount = s.ds.RowCount()
		v.ColumnCount = s.ds.ColumnCount()
		v.FilteredCount = len(rows)
		v.Page = page.Page
		v.TotalPages = page.TotalPages
	}

	v.Params = s.params
	v.Params.VisibleColumns = slices.Clone(s.params.VisibleColumns)
	return v
}

// orderedRowsLocked returns the filtered and sorted rows across all pages.
func (s *Session) orderedRowsLocked() []dataset.Row {
	res := view.Apply(s.ds.Rows(), view.Params{
		SearchTerm:    s.params.SearchTerm,
		SortColumn:    s.params.SortColumn,
		SortDirection: s.params.SortDirection,
	})
	return res.Rows
}

// visibleLocked returns the visible headers in header order.
func (s *Session) visibleLocked() []string {
	var cols []string
	for _, h := range s.ds.Headers() {
		if slices.Contains(s.params.VisibleColumns, h) {
			cols = append(cols, h)
		}
	}
	if cols == nil {
		cols = []string{}
	}
	return cols
}

func project(rows []dataset.Row, cols []string) [][]dataset.Cell {
	out := make([][]dataset.Cell, len(rows))
	for i, row := range rows {
		cells := make([]dataset.Cell, len(cols))
		for j, c := range cols {
			cells[j] = row.Cell(c)
		}
		out[i] = cells
	}
	return out
}

// ExportCSV writes every filtered and sorted row, restricted to the visible
// columns, as comma-separated text with a header line.
func (s *Session) ExportCSV(w io.Writer) error {
	s.mu.Lock()
	if s.ds == nil {
		s.mu.Unlock()
		return ErrNotReady
	}
	rows := s.orderedRowsLocked()
	cols := s.visibleLocked()
	s.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			record[i] = row.Cell(c).String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// =============================================================================
// Progress subscription
// =============================================================================

func (s *Session) progressLocked() Progress {
	return Progress{
		SessionID: s.id,
		State:     s.state,
		FileName:  s.fileName,
		Percent:   s.progress,
		Error:     s.errMsg,
	}
}

// Subscribe returns a channel of progress updates, starting with the current
// state, and a function that unsubscribes and closes the channel. Slow
// readers miss intermediate updates but always receive the final one.
//
// Lock order is s.mu then listenerMu, so no state change can be published
// between reading the snapshot and registering the channel.
func (s *Session) Subscribe() (<-chan Progress, func()) {
	ch := make(chan Progress, 16)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.listeners[ch] = struct{}{}
	ch <- s.progressLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.listenerMu.Lock()
			defer s.listenerMu.Unlock()
			if _, ok := s.listeners[ch]; ok {
				delete(s.listeners, ch)
				close(ch)
			}
		})
	}
}

// broadcastLocked sends p to every listener without blocking. Caller must
// hold s.mu, which keeps updates in commit order.
func (s *Session) broadcastLocked(p Progress) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	for ch := range s.listeners {
		select {
		case ch <- p:
			continue
		default:
		}
		if !p.Done() {
			continue // listener is slow, skip this update
		}
		// Make room for the final update.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}

// close ends every subscription. Later subscriptions get a closed channel.
func (s *Session) close() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.closed = true
	for ch := range s.listeners {
		close(ch)
	}
	s.listeners = make(map[chan Progress]struct{})
}
