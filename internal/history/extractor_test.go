package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner answers git invocations from canned responses. A clone creates
// the destination directory so cleanup has something to remove.
type fakeRunner struct {
	calls      [][]string
	cloneErrs  []error
	logOut     string
	logErr     error
	addedOut   string
	addedErr   error
	cloneCount int
}

func (f *fakeRunner) Run(_ context.Context, dir string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{dir}, args...))
	switch args[0] {
	case "clone":
		f.cloneCount++
		dest := args[len(args)-1]
		if err := os.MkdirAll(filepath.Join(dest, ".git"), 0o755); err != nil {
			return nil, err
		}
		if len(f.cloneErrs) > 0 {
			err := f.cloneErrs[0]
			f.cloneErrs = f.cloneErrs[1:]
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	case "log":
		if strings.Contains(strings.Join(args, " "), "--diff-filter=A") {
			return []byte(f.addedOut), f.addedErr
		}
		return []byte(f.logOut), f.logErr
	}
	return nil, errors.New("unexpected git call")
}

func newTestExtractor(t *testing.T, r Runner) (*Extractor, string) {
	t.Helper()
	scratch := t.TempDir()
	return NewExtractor(r, Options{ScratchDir: scratch, CloneAttempts: 2, RetryBackoff: time.Millisecond}), scratch
}

func TestLastCommit_Success(t *testing.T) {
	r := &fakeRunner{logOut: "1654041600\n"}
	e, scratch := newTestExtractor(t, r)

	out, err := e.LastCommit(context.Background(), "https://github.com/rseng/rse")
	require.NoError(t, err)
	require.False(t, out.Skipped())
	assert.Equal(t, "2022-06-01 00:00:00", out.Value.String())

	clone := r.calls[0]
	assert.Equal(t, []string{"", "clone", "--depth", "1", "--quiet", "https://github.com/rseng/rse"}, clone[:6])
	assert.Equal(t, filepath.Join(scratch, "github.com_rseng_rse"), clone[6])

	_, statErr := os.Stat(clone[6])
	assert.True(t, os.IsNotExist(statErr), "clone directory should be removed")
}

func TestLastCommit_CloneFailureSkips(t *testing.T) {
	r := &fakeRunner{cloneErrs: []error{errors.New("remote: Repository not found.")}}
	e, scratch := newTestExtractor(t, r)

	out, err := e.LastCommit(context.Background(), "https://github.com/gone/away")
	require.NoError(t, err)
	assert.True(t, out.Skipped())
	assert.Equal(t, "clone_failed", string(out.Reason))
	assert.Equal(t, 1, r.cloneCount, "permanent clone failure is not retried")

	entries, _ := os.ReadDir(scratch)
	assert.Empty(t, entries)
}

func TestLastCommit_TransientCloneRetried(t *testing.T) {
	r := &fakeRunner{
		cloneErrs: []error{errors.New("fatal: unable to access: Could not resolve host: github.com"), nil},
		logOut:    "1577836800",
	}
	e, _ := newTestExtractor(t, r)

	out, err := e.LastCommit(context.Background(), "https://github.com/a/b")
	require.NoError(t, err)
	require.False(t, out.Skipped())
	assert.Equal(t, 2, r.cloneCount)
}

func TestLastCommit_LogFailureSkips(t *testing.T) {
	r := &fakeRunner{logErr: errors.New("fatal: your current branch does not have any commits yet")}
	e, scratch := newTestExtractor(t, r)

	out, err := e.LastCommit(context.Background(), "https://github.com/empty/repo")
	require.NoError(t, err)
	assert.True(t, out.Skipped())
	assert.Equal(t, "log_query_failed", string(out.Reason))

	entries, _ := os.ReadDir(scratch)
	assert.Empty(t, entries)
}

func TestLastCommit_UnparseableLogSkips(t *testing.T) {
	r := &fakeRunner{logOut: "not-a-number"}
	e, _ := newTestExtractor(t, r)

	out, err := e.LastCommit(context.Background(), "https://github.com/a/b")
	require.NoError(t, err)
	assert.Equal(t, "log_query_failed", string(out.Reason))
}

func TestLastCommit_CleanupFailure(t *testing.T) {
	r := &fakeRunner{logOut: "1577836800"}
	removals := 0
	e := NewExtractor(r, Options{
		ScratchDir: t.TempDir(),
		Remove: func(path string) error {
			removals++
			if removals == 2 {
				return &os.PathError{Op: "unlinkat", Path: path, Err: syscall.EMFILE}
			}
			return os.RemoveAll(path)
		},
	})

	_, err := e.LastCommit(context.Background(), "https://github.com/a/b")
	require.Error(t, err)

	var cleanupErr *CleanupError
	require.ErrorAs(t, err, &cleanupErr)
	assert.True(t, cleanupErr.FDExhausted())
	assert.Contains(t, cleanupErr.Error(), "github.com_a_b")
}

func TestLastCommit_CleanupRunsOnSkip(t *testing.T) {
	r := &fakeRunner{logErr: errors.New("boom")}
	removals := 0
	e := NewExtractor(r, Options{
		ScratchDir: t.TempDir(),
		Remove: func(path string) error {
			removals++
			if removals > 1 {
				return errors.New("device busy")
			}
			return os.RemoveAll(path)
		},
	})

	_, err := e.LastCommit(context.Background(), "https://github.com/a/b")
	var cleanupErr *CleanupError
	require.ErrorAs(t, err, &cleanupErr)
	assert.False(t, cleanupErr.FDExhausted())
	assert.Equal(t, 2, removals)
}

func TestAddedAt(t *testing.T) {
	r := &fakeRunner{addedOut: "1600000000\n1500000000\n1550000000\n"}
	e, _ := newTestExtractor(t, r)

	ts, err := e.AddedAt(context.Background(), "/catalog", "database/github/a/b/metadata.json")
	require.NoError(t, err)
	assert.Equal(t, "2017-07-14 02:40:00", ts.String())
	assert.Equal(t, []string{"/catalog", "log", "--diff-filter=A", "--follow", "--format=%ct", "--", "database/github/a/b/metadata.json"}, r.calls[0])
}

func TestAddedAt_Errors(t *testing.T) {
	e, _ := newTestExtractor(t, &fakeRunner{addedOut: ""})
	_, err := e.AddedAt(context.Background(), "/catalog", "x.json")
	assert.Error(t, err)

	e, _ = newTestExtractor(t, &fakeRunner{addedErr: errors.New("not a git repository")})
	_, err = e.AddedAt(context.Background(), "/catalog", "x.json")
	assert.Error(t, err)

	e, _ = newTestExtractor(t, &fakeRunner{addedOut: "abc"})
	_, err = e.AddedAt(context.Background(), "/catalog", "x.json")
	assert.Error(t, err)
}

func TestCloneDirName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://github.com/rseng/rse", "github.com_rseng_rse"},
		{"https://gitlab.com/group/sub/project.git", "gitlab.com_group_sub_project"},
		{"https://github.com/a/b/", "github.com_a_b"},
		{"git@github.com:a/b.git", "git_github.com_a_b"},
		{"", "repository"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CloneDirName(tt.in))
		})
	}
}

func TestGitRunner_ReportsStderr(t *testing.T) {
	if _, err := os.Stat("/usr/bin/git"); err != nil {
		t.Skip("git not installed")
	}
	_, err := NewGitRunner("").Run(context.Background(), t.TempDir(), "log", "-1")
	require.Error(t, err)
	assert.Contains(t, strings.ToLower(err.Error()), "not a git repository")
}
