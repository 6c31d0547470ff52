package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rseng/rseng-activity/internal/catalog"
	"github.com/rseng/rseng-activity/internal/checkpoint"
	"github.com/rseng/rseng-activity/internal/collect"
	"github.com/rseng/rseng-activity/internal/doi"
	"github.com/rseng/rseng-activity/internal/fetcher"
	"github.com/rseng/rseng-activity/internal/history"
	"github.com/rseng/rseng-activity/internal/model"
	"github.com/rseng/rseng-activity/internal/reconcile"
	"github.com/rseng/rseng-activity/internal/resilience"
	"github.com/rseng/rseng-activity/internal/store"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect publication dates and last-commit times for the catalog",
	Long: "Walks every catalog entry twice: first resolving DOI publication and catalog add dates, " +
		"then shallow-cloning each repository to read its last commit. Results are checkpointed into " +
		"a dated directory after every entry; re-running the same day resumes where it stopped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		settingsFile, _ := cmd.Flags().GetString("settings-file")
		if settingsFile == "" {
			settingsFile = cfg.Catalog.SettingsFile
		}
		if settingsFile == "" {
			return eris.New("collect: --settings-file is required (or RSENG_CATALOG_SETTINGS_FILE)")
		}
		outRoot := outputRoot(cmd)

		cat, err := catalog.Open(settingsFile)
		if err != nil {
			return err
		}

		outDir := filepath.Join(outRoot, runDirName(time.Now()))
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return eris.Wrap(err, "collect: create output directory")
		}
		if cfg.Lock.Enabled {
			unlock, err := checkpoint.Lock(outDir)
			if err != nil {
				return err
			}
			defer unlock() //nolint:errcheck
		}

		scratch, cleanupScratch, err := scratchDir()
		if err != nil {
			return err
		}
		defer cleanupScratch()

		extractor := history.NewExtractor(history.NewGitRunner(cfg.Git.Binary), history.Options{
			ScratchDir:    scratch,
			Depth:         cfg.Git.Depth,
			CloneAttempts: cfg.Git.CloneAttempts,
		})
		reconciler := reconcile.New(newResolver(), extractor, cat.Root())

		opts := collect.Options{
			Reconcile: reconcile.Options{UseDOIPriority: cfg.Reconcile.UseDOIPriority},
		}
		finish := func(model.RunStatus, *collect.Summary) {}
		if cfg.Store.Enabled {
			ledger, run, err := startRun(ctx, outRoot, outDir)
			if err != nil {
				zap.L().Warn("collect: run ledger unavailable", zap.Error(err))
			} else {
				defer ledger.Close() //nolint:errcheck
				opts.Recorder = &store.RunRecorder{Ledger: ledger, RunID: run.ID}
				finish = func(status model.RunStatus, s *collect.Summary) {
					finishRun(context.WithoutCancel(ctx), ledger, run.ID, status, s)
				}
			}
		}

		summary, err := collect.New(cat, reconciler, extractor, outDir, opts).Run(ctx)
		status, hint := collectOutcome(err)
		finish(status, summary)
		if hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		if err != nil {
			return err
		}

		fmt.Println(formatSummary(summary))
		fmt.Printf("Results written to %s\n", filepath.Join(outDir, checkpoint.ResultsFile))
		return nil
	},
}

func init() {
	collectCmd.Flags().String("settings-file", "", "catalog settings file (TOML or YAML)")
	collectCmd.Flags().String("outdir", "", "root for dated output directories (default output.dir)")
	rootCmd.AddCommand(collectCmd)
}

// runDirName names the output directory for the run day: YYYY-M-D without
// zero padding, so all runs on one day share (and resume) a directory.
func runDirName(t time.Time) string {
	y, m, d := t.Date()
	return strconv.Itoa(y) + "-" + strconv.Itoa(int(m)) + "-" + strconv.Itoa(d)
}

// scratchDir returns the clone scratch directory and its cleanup. A
// configured directory is kept; a temporary one is removed.
func scratchDir() (string, func(), error) {
	if cfg.Git.ScratchDir != "" {
		if err := os.MkdirAll(cfg.Git.ScratchDir, 0o755); err != nil {
			return "", nil, eris.Wrap(err, "collect: create scratch directory")
		}
		return cfg.Git.ScratchDir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "rseng-activity-")
	if err != nil {
		return "", nil, eris.Wrap(err, "collect: create scratch directory")
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			zap.L().Warn("collect: remove scratch directory", zap.String("path", dir), zap.Error(err))
		}
	}, nil
}

// Remediation hints printed after a cleanup failure.
const (
	hintFDExhausted  = "Likely too many open files, check with ulimit -n and set with ulimit -n 4096"
	hintCleanupError = "Scratch clone cleanup failed; check the scratch directory (git.scratch_dir) and re-run to resume"
)

// collectOutcome maps the result of a collection run to the ledger status
// and the hint to print, if any.
func collectOutcome(err error) (model.RunStatus, string) {
	var exhausted *collect.ExhaustedError
	switch {
	case err == nil:
		return model.RunStatusComplete, ""
	case errors.As(err, &exhausted):
		if exhausted.FDExhausted {
			return model.RunStatusExhausted, hintFDExhausted
		}
		return model.RunStatusExhausted, hintCleanupError
	case errors.Is(err, collect.ErrResourceExhausted):
		return model.RunStatusExhausted, hintCleanupError
	default:
		return model.RunStatusFailed, ""
	}
}

func newResolver() *doi.Resolver {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   cfg.DOI.UserAgent,
		Timeout:     time.Duration(cfg.DOI.TimeoutSecs) * time.Second,
		MaxRetries:  cfg.DOI.MaxRetries,
		DefaultRate: rate.Limit(cfg.DOI.RatePerSec),
	})
	breaker := resilience.BreakerConfig{
		Threshold:    cfg.DOI.BreakerThreshold,
		ResetTimeout: time.Duration(cfg.DOI.BreakerResetSecs) * time.Second,
		OnStateChange: func(from, to resilience.State) {
			zap.L().Warn("doi: circuit breaker state change",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	}
	return doi.NewResolver(breaker, doi.NewZenodo(cfg.DOI.BaseURL, f))
}

func startRun(ctx context.Context, outRoot, outDir string) (*store.SQLiteStore, *model.Run, error) {
	ledger, err := initLedger(ctx, outRoot)
	if err != nil {
		return nil, nil, err
	}
	abs, err := filepath.Abs(outDir)
	if err != nil {
		abs = outDir
	}
	run, err := ledger.CreateRun(ctx, abs)
	if err != nil {
		ledger.Close() //nolint:errcheck
		return nil, nil, err
	}
	zap.L().Info("collect: run started", zap.String("run_id", run.ID), zap.String("dir", abs))
	return ledger, run, nil
}

func finishRun(ctx context.Context, ledger store.Ledger, runID string, status model.RunStatus, s *collect.Summary) {
	var summary string
	if s != nil {
		if b, err := json.Marshal(s); err == nil {
			summary = string(b)
		}
	}
	if err := ledger.FinishRun(ctx, runID, status, summary); err != nil {
		zap.L().Warn("collect: finish run", zap.String("run_id", runID), zap.Error(err))
	}
}

func formatSummary(s *collect.Summary) string {
	row := func(name string, p collect.PhaseSummary) []string {
		return []string{
			name,
			strconv.Itoa(p.Processed),
			strconv.Itoa(p.Existing),
			strconv.Itoa(p.Skipped),
			strconv.Itoa(p.Excluded),
		}
	}
	headers := []string{"Phase", "Processed", "Existing", "Skipped", "Excluded"}
	rows := [][]string{
		row(string(model.PhaseDates), s.Dates),
		row(string(model.PhaseActivity), s.Activity),
	}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}
	return renderTable(headers, rows, aligns) + fmt.Sprintf("\nCombined records: %d (%s)", s.Combined, s.Duration.Round(time.Second))
}
