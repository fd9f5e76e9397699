package litecore

import "errors"

// Error taxonomy shared by every layer of the storage stack. Drivers return
// the most specific sentinel to their direct caller, usually wrapped with
// fmt.Errorf("%w: ...") for context; the VFS narrows everything it forwards
// to ErrNotFound or ErrIO.
var (
	// ErrInvalidArgument is returned for nil buffers, empty paths and
	// zero-length requests.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a path or directory entry lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrWrongType is returned when a file was expected but a directory was
	// found, or vice versa.
	ErrWrongType = errors.New("wrong type")

	// ErrCorrupt is returned for bad magic numbers and malformed on-disk
	// records.
	ErrCorrupt = errors.New("corrupt volume")

	// ErrIO is returned when the underlying device or cache read/write
	// failed.
	ErrIO = errors.New("i/o failure")

	// ErrNoSpace is returned when an allocation bitmap or the FAT is
	// exhausted, or a directory has no usable slot left.
	ErrNoSpace = errors.New("no space")

	// ErrLimitExceeded is returned when a bounded resource runs out:
	// symlink depth, open-file tables, name lengths.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrUnsupported is returned for on-disk features this stack does not
	// implement, e.g. FAT16 sector sizes other than 512.
	ErrUnsupported = errors.New("unsupported")
)
