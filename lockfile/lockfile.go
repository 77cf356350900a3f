// Package lockfile provides exclusive-locked, atomic JSON document I/O for
// state files shared between unrelated processes.
//
// One JSON document is the unit of locking. Every operation acquires an OS
// advisory exclusive lock on a sidecar "<path>.lock" file in a bounded
// non-blocking retry loop, so a slow or dead peer can delay an operation but
// never wedge it: on deadline the operation fails with [ErrLockTimeout] and
// the caller is expected to continue in degraded mode. Locking the sidecar
// rather than the document itself keeps the lock valid while the document is
// replaced by rename.
//
// Writes are atomic: the document is serialized to a temporary file in the
// target directory and renamed over the destination, so a reader never
// observes a partially written document even if the writer is killed
// mid-write. Reads tolerate documents with or without a UTF-8 byte order
// mark, since historical writers of these files emitted one.
//
// On platforms without a native lock primitive (anything that is neither
// unix nor windows) the lock degrades to a best-effort no-op and callers are
// unprotected against concurrent writers.
package lockfile

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"pkt.systems/pslog"
)

var (
	// ErrLockTimeout marks failures to acquire the file lock within the
	// configured deadline.
	ErrLockTimeout = errors.New("lockfile: lock not acquired within deadline")

	// ErrCorrupted marks documents that exist but cannot be parsed. Read
	// treats them as absent; the sentinel exists for logging and tests.
	ErrCorrupted = errors.New("lockfile: document corrupted")

	// ErrWriteFailure marks disk or permission failures during an atomic
	// write.
	ErrWriteFailure = errors.New("lockfile: write failed")
)

// DefaultTimeout bounds lock acquisition when no override is supplied.
const DefaultTimeout = 5 * time.Second

// retryInterval is the pause between non-blocking lock attempts.
const retryInterval = 100 * time.Millisecond

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

type config struct {
	timeout time.Duration
	logger  pslog.Logger
}

// Option configures a single Read, Write or Update operation.
type Option func(*config)

// WithTimeout overrides the lock-acquisition deadline. Defaults to
// DefaultTimeout (5 seconds).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithLogger attaches a logger for soft-failure diagnostics. Defaults to a
// disabled logger.
func WithLogger(l pslog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func applyOptions(opts []Option) config {
	cfg := config{
		timeout: DefaultTimeout,
		logger:  pslog.NoopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// fileLock holds the sidecar lock file for the duration of one operation.
type fileLock struct {
	file *os.File
}

func (l *fileLock) release() {
	if l == nil || l.file == nil {
		return
	}
	unlockFile(l.file)
	l.file.Close()
	l.file = nil
}

// acquire opens "<path>.lock" and attempts a non-blocking exclusive lock
// every retryInterval until the deadline passes. Parent directories are
// created as needed.
func acquire(path string, cfg config) (*fileLock, error) {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "lockfile: prepare directory for %s", lockPath), ErrWriteFailure)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "lockfile: open lock %s", lockPath), ErrWriteFailure)
	}
	start := time.Now()
	deadline := start.Add(cfg.timeout)
	for {
		err := tryLockFile(f)
		if err == nil {
			return &fileLock{file: f}, nil
		}
		if time.Now().After(deadline) {
			f.Close()
			cfg.logger.Warn("lockfile.acquire.timeout",
				"path", path, "timeout", cfg.timeout, "elapsed", time.Since(start))
			return nil, errors.Mark(errors.Wrapf(err, "lockfile: lock %s held elsewhere", lockPath), ErrLockTimeout)
		}
		time.Sleep(retryInterval)
	}
}

// Write atomically replaces the JSON document at path with doc while holding
// the document's lock. It never leaves path holding a partially serialized
// document, even if the process is killed mid-write.
func Write(path string, doc any, opts ...Option) error {
	cfg := applyOptions(opts)
	start := time.Now()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "lockfile: marshal %s", path), ErrWriteFailure)
	}

	lock, err := acquire(path, cfg)
	if err != nil {
		return err
	}
	defer lock.release()

	if err := writeAtomic(path, data); err != nil {
		cfg.logger.Error("lockfile.write.failed",
			"path", path, "error", err, "elapsed", time.Since(start))
		return errors.Mark(err, ErrWriteFailure)
	}
	cfg.logger.Debug("lockfile.write.ok",
		"path", path, "bytes", len(data), "elapsed", time.Since(start))
	return nil
}

// Read unmarshals the JSON document at path into out while holding the
// document's lock. A missing document yields (false, nil); a document that
// exists but fails to parse is treated as absent and logged, never surfaced
// as an error. Only a lock timeout is reported to the caller.
func Read(path string, out any, opts ...Option) (bool, error) {
	cfg := applyOptions(opts)
	start := time.Now()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	lock, err := acquire(path, cfg)
	if err != nil {
		return false, err
	}
	defer lock.release()

	found, err := readLocked(path, out, cfg, start)
	return found, err
}

// Update atomically transforms the document at path under a single lock
// acquisition: read, apply, write. The apply callback receives the current
// document and whether one existed; it returns the next document and whether
// it should be written back. Returning write=false leaves the document
// untouched, which makes check-without-stamp decisions race-free.
func Update[T any](path string, apply func(current T, found bool) (next T, write bool, err error), opts ...Option) error {
	cfg := applyOptions(opts)
	start := time.Now()

	lock, err := acquire(path, cfg)
	if err != nil {
		return err
	}
	defer lock.release()

	var current T
	found, err := readLocked(path, &current, cfg, start)
	if err != nil {
		return err
	}

	next, write, err := apply(current, found)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "lockfile: marshal %s", path), ErrWriteFailure)
	}
	if err := writeAtomic(path, data); err != nil {
		cfg.logger.Error("lockfile.update.failed",
			"path", path, "error", err, "elapsed", time.Since(start))
		return errors.Mark(err, ErrWriteFailure)
	}
	return nil
}

// readLocked reads and parses path assuming the caller holds its lock.
func readLocked(path string, out any, cfg config, start time.Time) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		cfg.logger.Warn("lockfile.read.failed",
			"path", path, "error", err, "elapsed", time.Since(start))
		return false, nil
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if err := json.Unmarshal(data, out); err != nil {
		cfg.logger.Warn("lockfile.read.corrupted",
			"path", path, "error", errors.Mark(err, ErrCorrupted), "elapsed", time.Since(start))
		return false, nil
	}
	return true, nil
}

// writeAtomic serializes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrapf(err, "lockfile: create temp in %s", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "lockfile: write temp %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "lockfile: sync temp %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "lockfile: close temp %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "lockfile: rename %s over %s", tmpName, path)
	}
	return nil
}
