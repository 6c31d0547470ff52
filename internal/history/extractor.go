package history

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rseng/rseng-activity/internal/model"
	"github.com/rseng/rseng-activity/internal/resilience"
)

// CleanupError reports that a scratch clone could not be removed. Callers
// must stop processing: repeated failures usually mean the process has run
// out of file descriptors.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return "history: remove scratch clone " + e.Path + ": " + e.Err.Error()
}

func (e *CleanupError) Unwrap() error { return e.Err }

// FDExhausted reports whether the failure was caused by the open file limit.
func (e *CleanupError) FDExhausted() bool {
	return resilience.IsFDExhaustion(e.Err)
}

// Options configures an Extractor.
type Options struct {
	// ScratchDir receives one shallow clone at a time.
	ScratchDir string
	// Depth is the clone depth. Default 1.
	Depth int
	// CloneAttempts bounds retries of transient clone failures. Default 1.
	CloneAttempts int
	// RetryBackoff is the initial delay between clone attempts. Default 2s.
	RetryBackoff time.Duration
	// Remove deletes a clone directory. Default os.RemoveAll.
	Remove func(path string) error
}

// Extractor clones repositories into scratch space and queries their history.
type Extractor struct {
	runner Runner
	opts   Options
}

// NewExtractor creates an Extractor.
func NewExtractor(runner Runner, opts Options) *Extractor {
	if opts.Depth <= 0 {
		opts.Depth = 1
	}
	if opts.CloneAttempts <= 0 {
		opts.CloneAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.Remove == nil {
		opts.Remove = os.RemoveAll
	}
	return &Extractor{runner: runner, opts: opts}
}

// AddedAt returns when relPath was first added to the repository at repoDir.
// Only additions are considered (renames are followed); the earliest one wins.
func (e *Extractor) AddedAt(ctx context.Context, repoDir, relPath string) (model.Timestamp, error) {
	out, err := e.runner.Run(ctx, repoDir, "log", "--diff-filter=A", "--follow", "--format=%ct", "--", relPath)
	if err != nil {
		return model.Timestamp{}, eris.Wrapf(err, "history: added-at query for %s", relPath)
	}

	var earliest int64
	found := false
	for _, line := range strings.Fields(string(out)) {
		epoch, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return model.Timestamp{}, eris.Wrapf(err, "history: parse added-at epoch for %s", relPath)
		}
		if !found || epoch < earliest {
			earliest = epoch
			found = true
		}
	}
	if !found {
		return model.Timestamp{}, eris.Errorf("history: no commit adds %s", relPath)
	}
	return model.FromEpoch(earliest), nil
}

// LastCommit shallow-clones repoURL, reads the timestamp of its most recent
// commit and removes the clone. Clone and query failures come back as skip
// outcomes. The returned error is non-nil only when the clone directory could
// not be removed, and is then a *CleanupError.
func (e *Extractor) LastCommit(ctx context.Context, repoURL string) (out model.Outcome[model.Timestamp], err error) {
	dest := filepath.Join(e.opts.ScratchDir, CloneDirName(repoURL))

	// A crashed earlier run may have left this directory behind.
	if rmErr := e.opts.Remove(dest); rmErr != nil {
		return out, &CleanupError{Path: dest, Err: rmErr}
	}
	defer func() {
		if rmErr := e.opts.Remove(dest); rmErr != nil {
			err = &CleanupError{Path: dest, Err: rmErr}
		}
	}()

	if cloneErr := e.clone(ctx, repoURL, dest); cloneErr != nil {
		return model.Skip[model.Timestamp](model.ReasonClone, cloneErr), nil
	}

	raw, logErr := e.runner.Run(ctx, dest, "log", "-1", "--format=%ct")
	if logErr != nil {
		return model.Skip[model.Timestamp](model.ReasonLogQuery, eris.Wrap(logErr, "history: last commit query")), nil
	}
	ts, parseErr := model.ParseEpoch(string(raw))
	if parseErr != nil {
		return model.Skip[model.Timestamp](model.ReasonLogQuery, parseErr), nil
	}
	return model.Success(ts), nil
}

func (e *Extractor) clone(ctx context.Context, repoURL, dest string) error {
	cfg := resilience.RetryConfig{
		Attempts: e.opts.CloneAttempts,
		Backoff:  e.opts.RetryBackoff,
		OnRetry:  resilience.RetryLogger("clone", repoURL),
		ShouldRetry: func(err error) bool {
			if !resilience.IsTransient(err) {
				return false
			}
			// git refuses to clone into a non-empty directory left by the failed attempt.
			if rmErr := e.opts.Remove(dest); rmErr != nil {
				zap.L().Warn("remove partial clone", zap.String("path", dest), zap.Error(rmErr))
				return false
			}
			return true
		},
	}
	return resilience.Retry(ctx, cfg, func(ctx context.Context) error {
		_, err := e.runner.Run(ctx, "", "clone", "--depth", strconv.Itoa(e.opts.Depth), "--quiet", repoURL, dest)
		return eris.Wrapf(err, "history: clone %s", repoURL)
	})
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CloneDirName derives a filesystem-safe directory name from a repository URL.
func CloneDirName(repoURL string) string {
	name := repoURL
	if u, err := url.Parse(repoURL); err == nil && u.Host != "" {
		name = u.Host + "/" + u.Path
	}
	name = strings.TrimSuffix(strings.Trim(name, "/"), ".git")
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_.")
	if name == "" {
		return "repository"
	}
	return name
}
