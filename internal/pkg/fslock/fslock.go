// Package fslock guards files shared between separate conv processes.
//
// Each guarded file gets a sibling "<name>.lock" file. Locks are advisory and
// held only for the duration of one read-modify-write.
package fslock

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const retryDelay = 25 * time.Millisecond

// Exclusive runs fn while holding the exclusive lock for path.
func Exclusive(ctx context.Context, path string, fn func() error) error {
	return withLock(ctx, path, false, fn)
}

// Shared runs fn while holding a shared lock for path.
func Shared(ctx context.Context, path string, fn func() error) error {
	return withLock(ctx, path, true, fn)
}

// LockPath returns the lock file used for path.
func LockPath(path string) string {
	return path + ".lock"
}

func withLock(ctx context.Context, path string, shared bool, fn func() error) (err error) {
	lockPath := LockPath(path)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return errors.Wrapf(err, "create lock dir for %s", path)
	}

	lock := flock.New(lockPath)
	var locked bool
	if shared {
		locked, err = lock.TryRLockContext(ctx, retryDelay)
	} else {
		locked, err = lock.TryLockContext(ctx, retryDelay)
	}
	if err != nil {
		return errors.Wrapf(err, "lock %s", lockPath)
	}
	if !locked {
		return errors.Errorf("lock %s: not acquired", lockPath)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil && err == nil {
			err = errors.Wrapf(unlockErr, "unlock %s", lockPath)
		}
	}()

	return fn()
}
