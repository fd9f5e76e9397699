// Package vfs is the path-based layer over the filesystem drivers. It probes
// backends at mount time, keeps a global open-file table with lazily loaded
// whole-file buffers, and hands out POSIX-flavored descriptor tables whose
// fds 1 and 2 are wired to a console writer.
package vfs

import (
	"errors"
	"fmt"
	"io"

	litecore "github.com/nekogakure/liteCore"
)

// MaxOpenFiles bounds the global open-file table.
const MaxOpenFiles = 32

// defaultReadAttempts is how often ReadFileAll retries a full read before
// giving up.
const defaultReadAttempts = 3

type options struct {
	logger       *litecore.Logger
	console      io.Writer
	readAttempts int
}

func defaultOptions() options {
	return options{
		logger:       litecore.NoopLogger(),
		console:      io.Discard,
		readAttempts: defaultReadAttempts,
	}
}

// Option configures the FS at mount time.
type Option func(*options)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *litecore.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConsole sets the writer behind descriptor 0, 1 and 2 writes. Defaults
// to io.Discard.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.console = w
		}
	}
}

// WithReadAttempts sets how often ReadFileAll retries a failing full read.
// Defaults to 3.
func WithReadAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readAttempts = n
		}
	}
}

// file is one global open-file table entry. Content is loaded whole into buf
// on the first read and served from memory afterwards.
type file struct {
	path string
	size uint32
	buf  []byte
}

// FS is a mounted volume seen through the VFS. It owns the global open-file
// table; descriptor tables reference into it.
type FS struct {
	mounted      Mounted
	files        [MaxOpenFiles]*file
	logger       *litecore.Logger
	console      io.Writer
	readAttempts int
}

func newFS(m Mounted, opts options) *FS {
	return &FS{
		mounted:      m,
		logger:       opts.logger,
		console:      opts.console,
		readAttempts: opts.readAttempts,
	}
}

// Backend returns the name of the backend serving this volume.
func (fs *FS) Backend() string { return fs.mounted.Name() }

// openFile allocates a global table entry for path, reading the size eagerly
// so a bad path fails at open time. Content stays unloaded until the first
// read.
func (fs *FS) openFile(path string) (int, error) {
	size, err := fs.mounted.FileSize(path)
	if err != nil {
		return 0, narrowResolveErr(path, err)
	}

	for i := range fs.files {
		if fs.files[i] == nil {
			fs.files[i] = &file{path: path, size: size}
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: open-file table is full", litecore.ErrLimitExceeded)
}

func (fs *FS) closeFile(idx int) {
	if idx >= 0 && idx < len(fs.files) {
		fs.files[idx] = nil
	}
}

// loadFile fills f.buf with the file's content. A short read means the
// backend disagrees with the size it reported earlier; that buffer is
// discarded rather than served truncated.
func (fs *FS) loadFile(f *file) error {
	if f.buf != nil {
		return nil
	}
	buf := make([]byte, f.size)
	n, err := fs.mounted.ReadFile(f.path, buf, 0)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", litecore.ErrIO, f.path, err)
	}
	if uint32(n) != f.size {
		return fmt.Errorf("%w: %s: got %d of %d bytes", litecore.ErrIO, f.path, n, f.size)
	}
	f.buf = buf
	return nil
}

// ListPath returns the entries of the directory at path.
func (fs *FS) ListPath(path string) ([]Entry, error) {
	entries, err := fs.mounted.List(path)
	if err != nil {
		return nil, narrowResolveErr(path, err)
	}
	return entries, nil
}

// ResolvePath resolves path and reports whether it is a directory and its
// size.
func (fs *FS) ResolvePath(path string) (PathInfo, error) {
	info, err := fs.mounted.Stat(path)
	if err != nil {
		return PathInfo{}, narrowResolveErr(path, err)
	}
	return info, nil
}

// WriteFile replaces the file's content through the backend, creating it
// when absent. Open descriptors on the same path refresh their buffer on the
// next read.
func (fs *FS) WriteFile(path string, p []byte) error {
	if err := fs.mounted.WriteFile(path, p); err != nil {
		return err
	}
	for _, f := range fs.files {
		if f != nil && f.path == path {
			f.size = uint32(len(p))
			f.buf = append(f.buf[:0:0], p...)
		}
	}
	return nil
}

// ReadFileAll reads the whole file at path. Each attempt covers the size
// fetch and the full read together, so a transient failure in either is
// absorbed; after the configured attempt count (default 3) the last error is
// returned.
func (fs *FS) ReadFileAll(path string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= fs.readAttempts; attempt++ {
		size, err := fs.mounted.FileSize(path)
		if err != nil {
			lastErr = narrowResolveErr(path, err)
			fs.logger.Warn("full read failed", "path", path, "attempt", attempt, "err", err)
			continue
		}
		buf := make([]byte, size)
		n, err := fs.mounted.ReadFile(path, buf, 0)
		if err == nil && uint32(n) == size {
			return buf, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: %s: got %d of %d bytes", litecore.ErrIO, path, n, size)
		}
		lastErr = err
		fs.logger.Warn("full read failed", "path", path, "attempt", attempt, "err", err)
	}
	return nil, lastErr
}

// narrowResolveErr keeps not-found as-is and folds every other driver error
// into litecore.ErrIO, so callers above the VFS see a two-valued failure
// mode.
func narrowResolveErr(path string, err error) error {
	if errors.Is(err, litecore.ErrNotFound) {
		return fmt.Errorf("%s: %w", path, litecore.ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %v", litecore.ErrIO, path, err)
}
