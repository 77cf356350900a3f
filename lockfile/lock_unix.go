//go:build unix

package lockfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryLockFile attempts a non-blocking exclusive advisory lock on the
// provided file handle.
func tryLockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

// unlockFile releases any advisory lock held on the provided file handle.
func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
