// Package pipeline drives fetch, extract and merge across every input row.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/dataset"
	"github.com/use-agent/dirscrape/diagnostics"
	"github.com/use-agent/dirscrape/engine"
	"github.com/use-agent/dirscrape/extractor"
	"github.com/use-agent/dirscrape/metrics"
	"github.com/use-agent/dirscrape/models"
)

// previewLen bounds the visible-text preview logged for pages without data.
const previewLen = 160

// EngineFactory opens the fetch engine for a run. The returned close
// function releases it and is called exactly once.
type EngineFactory func(ctx context.Context) (engine.Engine, func() error, error)

// Runner executes enrichment runs. Rows are processed strictly one after
// another over a single engine.
type Runner struct {
	cfg       config.RunConfig
	open      EngineFactory
	extractor *extractor.Extractor
	diag      *diagnostics.Writer
	metrics   *metrics.Metrics

	progress atomic.Pointer[Progress]
	now      func() time.Time
}

// Option customises a Runner.
type Option func(*Runner)

// WithExtractor replaces the default member-directory extractor.
func WithExtractor(e *extractor.Extractor) Option {
	return func(r *Runner) { r.extractor = e }
}

// WithDiagnostics enables artifact persistence.
func WithDiagnostics(w *diagnostics.Writer) Option {
	return func(r *Runner) { r.diag = w }
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a Runner.
func NewRunner(cfg config.RunConfig, open EngineFactory, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		open:      open,
		extractor: extractor.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.progress.Store(&Progress{Status: StatusRunning})
	return r
}

// Progress returns the latest snapshot of the current or last run.
func (r *Runner) Progress() Progress {
	return *r.progress.Load()
}

// Run enriches the table at input and writes it to output.
//
// Only precondition and IO failures abort the run; they are returned as
// the error and reflected in Report.Status. Per-row failures leave that
// row unmodified. When ctx is cancelled the remaining rows pass through
// unmodified and the accumulated table is still written.
func (r *Runner) Run(ctx context.Context, input, output string) (*Report, error) {
	rep := &Report{ID: newRunID(), Input: input, URLColumn: r.cfg.URLColumn, StartedAt: r.now()}
	prog := Progress{Status: StatusRunning, Input: input, StartedAt: rep.StartedAt}
	r.publish(prog)

	abort := func(err error) (*Report, error) {
		slog.Error("run aborted", "input", input, "error", err)
		rep.Status = StatusAborted
		rep.Err = err
		rep.FinishedAt = r.now()
		prog.Status = StatusAborted
		rep.Progress = prog
		r.publish(prog)
		return rep, err
	}

	// ── 1. Read input ───────────────────────────────────────────────
	header, rows, err := dataset.ReadCSV(input)
	if err != nil {
		return abort(err)
	}
	if len(rows) == 0 {
		slog.Warn("input file is empty, nothing to do", "input", input)
		rep.Status = StatusCompleted
		rep.FinishedAt = r.now()
		prog.Status = StatusCompleted
		rep.Progress = prog
		r.publish(prog)
		return rep, nil
	}

	// ── 2. Preconditions ────────────────────────────────────────────
	if !slices.Contains(header, r.cfg.URLColumn) {
		return abort(models.NewScrapeError(models.ErrCodeMissingColumn,
			fmt.Sprintf("column %q not found in %s; available columns: %s",
				r.cfg.URLColumn, input, strings.Join(header, ", ")), nil))
	}

	ds := dataset.New(header, rows)
	rep.Dataset = ds
	prog.Total = ds.Len()
	prog.Columns = len(ds.Columns)
	r.publish(prog)
	r.metrics.SetColumns(len(ds.Columns))

	// ── 3. Open the engine ──────────────────────────────────────────
	eng, closeEngine, err := r.open(ctx)
	if err != nil {
		return abort(err)
	}
	var closeOnce sync.Once
	release := func() {
		closeOnce.Do(func() {
			if closeEngine == nil {
				return
			}
			if err := closeEngine(); err != nil {
				slog.Warn("engine close failed", "error", err)
			}
		})
	}
	defer release()

	slog.Info("run started", "input", input, "rows", ds.Len(), "engine", eng.Name(), "delay", r.cfg.RequestDelay)

	// ── 4. Rows ─────────────────────────────────────────────────────
	fetchedBefore := false
	rep.Rows = make([]RowResult, 0, ds.Len())
	for i := range ds.Rows {
		var res RowResult
		if ctx.Err() != nil {
			res = RowResult{
				Index: i,
				URL:   strings.TrimSpace(ds.Rows[i][r.cfg.URLColumn]),
				State: RowUnmodified,
				Code:  models.ErrCodeInterrupted,
			}
		} else {
			prog.CurrentURL = strings.TrimSpace(ds.Rows[i][r.cfg.URLColumn])
			r.publish(prog)
			var delay time.Duration
			if fetchedBefore {
				delay = r.cfg.RequestDelay
			}
			res = r.processRow(ctx, eng, delay, ds, i)
			if res.State != RowSkipped {
				fetchedBefore = true
			}
		}
		rep.Rows = append(rep.Rows, res)
		prog.count(res)
		prog.Columns = len(ds.Columns)
		prog.CurrentURL = ""
		r.publish(prog)
		r.metrics.IncRow(res.State.String())
	}

	// ── 5. Close, then write ────────────────────────────────────────
	release()

	status := StatusCompleted
	if ctx.Err() != nil {
		status = StatusInterrupted
		slog.Warn("run interrupted, writing accumulated rows", "done", prog.Done, "total", prog.Total)
	}

	rep.Columns = ds.Header()
	if err := dataset.WriteCSV(output, ds); err != nil {
		return abort(err)
	}
	rep.Output = output
	rep.Written = true

	rep.Status = status
	rep.FinishedAt = r.now()
	prog.Status = status
	rep.Progress = prog
	r.publish(prog)
	slog.Info("run finished", "status", status, "rows", prog.Done, "output", output, "columns", len(rep.Columns))
	return rep, nil
}

// processRow takes one row through its states, pausing for delay before the
// fetch. A panic anywhere in the row is contained and leaves the row unmodified.
func (r *Runner) processRow(ctx context.Context, eng engine.Engine, delay time.Duration, ds *dataset.Dataset, i int) (res RowResult) {
	total := ds.Len()
	target := strings.TrimSpace(ds.Rows[i][r.cfg.URLColumn])
	res = RowResult{Index: i, URL: target, State: RowPending}
	start := r.now()
	log := slog.With("row", i+1, "total", total, "url", target)

	defer func() {
		res.Duration = r.now().Sub(start)
		if rec := recover(); rec != nil {
			log.Error("row panicked, leaving it unmodified", "panic", rec)
			res.State = RowUnmodified
			res.Code = models.ErrCodeInternal
			res.Error = fmt.Sprint(rec)
			r.metrics.IncError(res.Code)
		}
	}()

	if target == "" {
		log.Info("skipping row with empty url")
		res.State = RowSkipped
		return res
	}

	if err := pause(ctx, delay); err != nil {
		res.State = RowUnmodified
		res.Code = models.ErrCodeInterrupted
		return res
	}

	log.Info("fetching")
	fetchStart := r.now()
	page, err := eng.Fetch(ctx, target)
	r.metrics.ObserveFetch(r.now().Sub(fetchStart))
	if err != nil {
		res.State = RowFetchFailed
		res.Code = models.CodeOf(err)
		res.Error = err.Error()
		log.Warn("fetch failed, row left unmodified", "code", res.Code, "error", err)
		r.metrics.IncError(res.Code)
		res.State = RowUnmodified
		return res
	}
	res.State = RowFetched

	if r.cfg.Debug && r.diag != nil {
		if _, err := r.diag.SaveDebug(page); err != nil {
			log.Warn("debug save failed", "error", err)
		}
	}

	out := r.extractor.ExtractPage(page)
	res.State = RowExtracted

	if !out.Structured() {
		res.State = RowNoData
		res.Code = models.ErrCodeNoStructuredData
		log.Info("no structured data", "source", out.Source, "frames", page.FrameCount,
			"text", preview(out.VisibleText))
		res.Artifact = r.persist(log, page, out.VisibleText)
		return res
	}

	ds.Apply(i, out.Record)
	res.State = RowMerged
	res.Fields = out.Record.Len()
	r.metrics.ObserveFields(res.Fields)
	r.metrics.SetColumns(len(ds.Columns))
	log.Info("row enriched", "fields", res.Fields, "source", out.Source)
	return res
}

// persist saves the diagnostic artifact for a page without data.
func (r *Runner) persist(log *slog.Logger, page *models.Page, text string) string {
	if !r.diag.Enabled() {
		return ""
	}
	art, err := r.diag.Persist(page, text)
	switch {
	case err != nil:
		log.Warn("diagnostic not saved", "error", err)
		r.metrics.IncDiagnostic("failed")
		return ""
	case art.Duplicate:
		r.metrics.IncDiagnostic("duplicate")
		return art.DuplicateOf
	default:
		r.metrics.IncDiagnostic("written")
		return art.HTMLPath
	}
}

// pause blocks for d or until ctx ends.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) publish(p Progress) {
	r.progress.Store(&p)
}

// preview collapses whitespace and truncates text for a log line.
func preview(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= previewLen {
		return s
	}
	return string([]rune(s)[:previewLen]) + "…"
}
