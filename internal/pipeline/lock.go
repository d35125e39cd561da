package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"spotroi/internal/core"
)

// LockFileName is created in the output directory for the duration of a run.
const LockFileName = ".spotroi.lock"

// ErrOutputLocked is returned when another run holds the output directory.
var ErrOutputLocked = errors.New("output directory is in use by another run")

// prepareOutput creates dir if needed and locks it against concurrent runs.
// The returned function releases the lock.
func prepareOutput(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &core.DirectoryAccessError{Path: dir, Err: err}
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, &core.DirectoryAccessError{Path: dir, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrOutputLocked)
	}

	return func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}, nil
}
