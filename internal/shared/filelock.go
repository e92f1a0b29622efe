package shared

import (
	"os"

	"golang.org/x/sys/unix"
)

// WithSharedLock holds a shared flock on path+".lock" while fn runs. Readers
// of a cached download take it so a concurrent writer cannot replace the
// file mid-copy.
func WithSharedLock(path string, fn func() error) error {
	return withLock(path, unix.LOCK_SH, fn)
}

// WithExclusiveLock is the writer side of WithSharedLock.
func WithExclusiveLock(path string, fn func() error) error {
	return withLock(path, unix.LOCK_EX, fn)
}

func withLock(path string, how int, fn func() error) error {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return fn()
}
