// Package collect runs the resumable two-phase collection: catalog dates
// first, then last-commit activity, then the combined results file. Every
// processed entry is flushed to its JSON store before the next one starts,
// so re-running over the same directory only does the remaining work.
package collect

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rseng/rseng-activity/internal/checkpoint"
	"github.com/rseng/rseng-activity/internal/model"
	"github.com/rseng/rseng-activity/internal/reconcile"
	"github.com/rseng/rseng-activity/internal/resilience"
)

// ErrResourceExhausted means a scratch clone could not be removed. The stores
// were flushed before it was returned, so the run can be resumed.
var ErrResourceExhausted = eris.New("collect: scratch clone cleanup failed; stores flushed, re-run to resume")

// ExhaustedError carries the cleanup failure behind ErrResourceExhausted.
type ExhaustedError struct {
	URL string
	Err error
	// FDExhausted is set when the cleanup failed because the open file
	// limit was reached.
	FDExhausted bool
}

func (e *ExhaustedError) Error() string {
	return ErrResourceExhausted.Error() + " (" + e.URL + "): " + e.Err.Error()
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Is matches ErrResourceExhausted.
func (e *ExhaustedError) Is(target error) bool { return target == ErrResourceExhausted }

// fdExhaustion is implemented by cleanup errors that know their cause.
type fdExhaustion interface {
	FDExhausted() bool
}

func isFDExhausted(err error) bool {
	var fd fdExhaustion
	if errors.As(err, &fd) {
		return fd.FDExhausted()
	}
	return resilience.IsFDExhaustion(err)
}

// Catalog enumerates entries.
type Catalog interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, uid string) (*model.CatalogEntry, error)
}

// DateSource produces the date bundle for one entry.
type DateSource interface {
	Bundle(ctx context.Context, entry *model.CatalogEntry) model.Outcome[model.DateBundle]
}

// ActivitySource produces the last-commit time for one repository. A non-nil
// error is fatal to the run.
type ActivitySource interface {
	LastCommit(ctx context.Context, url string) (model.Outcome[model.Timestamp], error)
}

// SkipRecorder receives every skipped or excluded entry.
type SkipRecorder interface {
	RecordSkip(ctx context.Context, rec model.SkipRecord) error
}

// Options configures a Pipeline.
type Options struct {
	Reconcile reconcile.Options
	// Recorder is optional.
	Recorder SkipRecorder
	// ProgressEvery logs a progress line every N entries. Default 25.
	ProgressEvery int
}

// PhaseSummary counts what happened to each entry in one phase.
type PhaseSummary struct {
	Processed int `json:"processed"`
	Existing  int `json:"existing"`
	Skipped   int `json:"skipped"`
	Excluded  int `json:"excluded"`
}

// Summary describes a finished (or interrupted) run.
type Summary struct {
	Dates    PhaseSummary  `json:"dates"`
	Activity PhaseSummary  `json:"activity"`
	Combined int           `json:"combined"`
	Duration time.Duration `json:"duration_ns"`
}

// Pipeline collects into a single output directory.
type Pipeline struct {
	catalog  Catalog
	dates    DateSource
	activity ActivitySource
	dir      string
	opts     Options
}

// New creates a Pipeline writing its stores into dir.
func New(cat Catalog, dates DateSource, activity ActivitySource, dir string, opts Options) *Pipeline {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 25
	}
	return &Pipeline{catalog: cat, dates: dates, activity: activity, dir: dir, opts: opts}
}

// ActivityPath returns the last-commit store path.
func (p *Pipeline) ActivityPath() string { return filepath.Join(p.dir, checkpoint.ActivityFile) }

// DatesPath returns the date-bundle store path.
func (p *Pipeline) DatesPath() string { return filepath.Join(p.dir, checkpoint.DatesFile) }

// ResultsPath returns the combined results path.
func (p *Pipeline) ResultsPath() string { return filepath.Join(p.dir, checkpoint.ResultsFile) }

// Run executes both phases and writes results.json. The summary is returned
// even when the run stops early.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	defer func() { summary.Duration = time.Since(start) }()

	uids, err := p.catalog.List(ctx)
	if err != nil {
		return summary, eris.Wrap(err, "collect: list catalog")
	}
	zap.L().Info("collect: starting", zap.String("dir", p.dir), zap.Int("entries", len(uids)))

	dates, err := checkpoint.Open[model.DateBundle](p.DatesPath())
	if err != nil {
		return summary, err
	}
	zap.L().Info("collect: dates store opened", zap.Int("existing", dates.Len()))
	if err := p.runDates(ctx, uids, dates, &summary.Dates); err != nil {
		return summary, err
	}

	activity, err := checkpoint.Open[model.Timestamp](p.ActivityPath())
	if err != nil {
		return summary, err
	}
	zap.L().Info("collect: activity store opened", zap.Int("existing", activity.Len()))
	if err := p.runActivity(ctx, uids, activity, &summary.Activity); err != nil {
		return summary, err
	}

	results := reconcile.Combine(activity.Snapshot(), dates.Snapshot(), p.opts.Reconcile)
	if err := checkpoint.WriteJSON(p.ResultsPath(), results); err != nil {
		return summary, eris.Wrap(err, "collect: write results")
	}
	summary.Combined = len(results)

	zap.L().Info("collect: complete",
		zap.Int("combined", summary.Combined),
		zap.Int("dates_processed", summary.Dates.Processed),
		zap.Int("activity_processed", summary.Activity.Processed),
		zap.Int("activity_skipped", summary.Activity.Skipped),
	)
	return summary, nil
}

func (p *Pipeline) runDates(ctx context.Context, uids []string, store *checkpoint.Store[model.DateBundle], sum *PhaseSummary) error {
	log := zap.L().With(zap.String("phase", string(model.PhaseDates)))

	for i, uid := range uids {
		if err := ctx.Err(); err != nil {
			return p.interrupted(store.Flush(), err)
		}
		p.progress(log, i, len(uids))

		entry, ok := p.entry(ctx, model.PhaseDates, uid, sum)
		if !ok {
			continue
		}
		if store.Has(entry.URL) {
			sum.Existing++
			continue
		}

		out := p.dates.Bundle(ctx, entry)
		if out.Skipped() {
			sum.Skipped++
			log.Warn("collect: skipping entry", zap.String("url", entry.URL), zap.String("reason", string(out.Reason)), zap.Error(out.Err))
			p.record(ctx, model.PhaseDates, entry.UID, entry.URL, out.Reason, out.Err)
			continue
		}

		store.Put(entry.URL, out.Value)
		if err := store.Flush(); err != nil {
			return err
		}
		sum.Processed++
	}
	return store.Flush()
}

func (p *Pipeline) runActivity(ctx context.Context, uids []string, store *checkpoint.Store[model.Timestamp], sum *PhaseSummary) error {
	log := zap.L().With(zap.String("phase", string(model.PhaseActivity)))

	for i, uid := range uids {
		if err := ctx.Err(); err != nil {
			return p.interrupted(store.Flush(), err)
		}
		p.progress(log, i, len(uids))

		entry, ok := p.entry(ctx, model.PhaseActivity, uid, sum)
		if !ok {
			continue
		}
		if store.Has(entry.URL) {
			sum.Existing++
			continue
		}

		out, err := p.activity.LastCommit(ctx, entry.URL)
		if err != nil {
			fd := isFDExhausted(err)
			log.Error("collect: cleanup failed, stopping",
				zap.String("url", entry.URL),
				zap.Bool("fd_exhausted", fd),
				zap.Error(err),
			)
			if flushErr := store.Flush(); flushErr != nil {
				log.Error("collect: flush after cleanup failure", zap.Error(flushErr))
			}
			return &ExhaustedError{URL: entry.URL, Err: err, FDExhausted: fd}
		}
		if out.Skipped() {
			sum.Skipped++
			log.Warn("collect: skipping entry", zap.String("url", entry.URL), zap.String("reason", string(out.Reason)), zap.Error(out.Err))
			p.record(ctx, model.PhaseActivity, entry.UID, entry.URL, out.Reason, out.Err)
			continue
		}

		store.Put(entry.URL, out.Value)
		if err := store.Flush(); err != nil {
			return err
		}
		sum.Processed++
	}
	return store.Flush()
}

// entry loads one catalog entry. Unreadable entries and entries without a URL
// are counted and recorded; ok is false for both.
func (p *Pipeline) entry(ctx context.Context, phase model.Phase, uid string, sum *PhaseSummary) (*model.CatalogEntry, bool) {
	entry, err := p.catalog.Get(ctx, uid)
	if err != nil {
		sum.Skipped++
		zap.L().Warn("collect: read catalog entry", zap.String("uid", uid), zap.Error(err))
		p.record(ctx, phase, uid, "", model.ReasonCatalogRead, err)
		return nil, false
	}
	if entry.URL == "" {
		sum.Excluded++
		p.record(ctx, phase, uid, "", model.ReasonNoURL, nil)
		return nil, false
	}
	return entry, true
}

func (p *Pipeline) record(ctx context.Context, phase model.Phase, uid, url string, reason model.SkipReason, cause error) {
	if p.opts.Recorder == nil {
		return
	}
	rec := model.SkipRecord{
		URL:    url,
		UID:    uid,
		Phase:  phase,
		Reason: reason,
	}
	if cause != nil {
		rec.Error = cause.Error()
		rec.ErrorType = resilience.ClassifyError(cause)
	}
	if err := p.opts.Recorder.RecordSkip(ctx, rec); err != nil {
		zap.L().Warn("collect: record skip", zap.String("uid", uid), zap.Error(err))
	}
}

func (p *Pipeline) progress(log *zap.Logger, i, total int) {
	if i%p.opts.ProgressEvery == 0 {
		log.Info("collect: progress", zap.Int("index", i), zap.Int("total", total))
	}
}

func (p *Pipeline) interrupted(flushErr, cause error) error {
	if flushErr != nil {
		return errors.Join(eris.Wrap(cause, "collect: interrupted"), flushErr)
	}
	return eris.Wrap(cause, "collect: interrupted")
}
