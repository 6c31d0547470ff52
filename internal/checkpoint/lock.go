package checkpoint

import (
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// LockFile is the advisory lock held by a collection process in its run
// directory.
const LockFile = ".collect.lock"

// ErrLocked is returned when another process holds the run directory.
var ErrLocked = eris.New("run directory is locked by another collection process")

// Lock takes the run directory's writer lock without blocking. The returned
// function releases it.
func Lock(dir string) (func() error, error) {
	lk := flock.New(filepath.Join(dir, LockFile))
	ok, err := lk.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: lock %s", dir)
	}
	if !ok {
		return nil, eris.Wrapf(ErrLocked, "checkpoint: lock %s", dir)
	}
	return lk.Unlock, nil
}
