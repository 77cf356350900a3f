//go:build !unix && !windows

package lockfile

import "os"

// tryLockFile is a stub where no native lock primitive exists. Operations
// still retry their opens and write atomically, but concurrent writers are
// not serialized; callers on such platforms are unprotected.
func tryLockFile(f *os.File) error { return nil }

// unlockFile is the stub counterpart to tryLockFile.
func unlockFile(f *os.File) error { return nil }
