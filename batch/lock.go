package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// acquireLock takes a non-blocking exclusive lock at path so that only one
// batch, and therefore one encoder, runs per machine. An empty path disables locking.
func acquireLock(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: lock dir: %w", ErrBatchAborted, err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %w", ErrBatchAborted, path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock %s)", ErrBatchRunning, path)
	}
	return func() { _ = lock.Unlock() }, nil
}
