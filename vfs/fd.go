package vfs

import (
	"fmt"
	"io"

	litecore "github.com/nekogakure/liteCore"
)

// MaxDescriptors bounds one table's file descriptors, the console ones
// included.
const MaxDescriptors = 16

// Well-known console descriptors.
const (
	FdStdin  = 0
	FdStdout = 1
	FdStderr = 2
)

// consoleChunk is the largest run handed to the console writer per call.
const consoleChunk = 1024

// File mode values reported by Fstat.
const (
	StatModeCharDev = 0o020000 | 0o666
	StatModeRegular = 0o100000 | 0o644
)

// Stat is the file status reported by Fstat.
type Stat struct {
	Mode uint32
	Size uint32
}

// descriptor is one table slot.
type descriptor struct {
	fileIdx int // index into the FS's global file table
	pos     uint32
}

// DescriptorTable maps per-task file descriptors onto the FS's global
// open-file table. Descriptors 0, 1 and 2 are the console; opened files get
// 3 and up.
type DescriptorTable struct {
	fs    *FS
	slots [MaxDescriptors]*descriptor
}

// NewDescriptorTable returns a fresh table with only the console
// descriptors live.
func (fs *FS) NewDescriptorTable() *DescriptorTable {
	return &DescriptorTable{fs: fs}
}

func isConsole(fd int) bool { return fd == FdStdin || fd == FdStdout || fd == FdStderr }

func (dt *DescriptorTable) slot(fd int) (*descriptor, error) {
	if fd < 0 || fd >= MaxDescriptors || isConsole(fd) || dt.slots[fd] == nil {
		return nil, fmt.Errorf("%w: descriptor %d", litecore.ErrInvalidArgument, fd)
	}
	return dt.slots[fd], nil
}

// Open opens the file at path and returns its descriptor. The size is read
// eagerly, so opening a missing path fails here; the content is not loaded
// until the first Read.
func (dt *DescriptorTable) Open(path string) (int, error) {
	fd := -1
	for i := FdStderr + 1; i < MaxDescriptors; i++ {
		if dt.slots[i] == nil {
			fd = i
			break
		}
	}
	if fd < 0 {
		return 0, fmt.Errorf("%w: descriptor table is full", litecore.ErrLimitExceeded)
	}

	idx, err := dt.fs.openFile(path)
	if err != nil {
		return 0, err
	}
	dt.slots[fd] = &descriptor{fileIdx: idx}
	return fd, nil
}

// Close releases the descriptor and its global table entry.
func (dt *DescriptorTable) Close(fd int) error {
	d, err := dt.slot(fd)
	if err != nil {
		return err
	}
	dt.fs.closeFile(d.fileIdx)
	dt.slots[fd] = nil
	return nil
}

// Read copies bytes from the descriptor's position into p and advances the
// position. The first read loads the whole file into memory; later reads are
// served from that buffer. Reading the console returns 0 bytes.
func (dt *DescriptorTable) Read(fd int, p []byte) (int, error) {
	if isConsole(fd) {
		return 0, nil
	}
	d, err := dt.slot(fd)
	if err != nil {
		return 0, err
	}
	f := dt.fs.files[d.fileIdx]
	if f == nil {
		return 0, fmt.Errorf("%w: stale descriptor %d", litecore.ErrInvalidArgument, fd)
	}
	if err := dt.fs.loadFile(f); err != nil {
		return 0, err
	}
	if d.pos >= uint32(len(f.buf)) {
		return 0, nil
	}
	n := copy(p, f.buf[d.pos:])
	d.pos += uint32(n)
	return n, nil
}

// Write sends p to the console for descriptors 1 and 2, in chunks of at
// most 1024 bytes. Descriptor 0 is read-only and rejects writes. For file
// descriptors it replaces the file's content with p regardless of the
// position, mirroring the whole-file write the backends implement, and
// leaves the position at the new end of file.
func (dt *DescriptorTable) Write(fd int, p []byte) (int, error) {
	if fd == FdStdin {
		return 0, fmt.Errorf("%w: descriptor %d is read-only", litecore.ErrInvalidArgument, fd)
	}
	if isConsole(fd) {
		written := 0
		for written < len(p) {
			end := written + consoleChunk
			if end > len(p) {
				end = len(p)
			}
			n, err := dt.fs.console.Write(p[written:end])
			written += n
			if err != nil {
				return written, fmt.Errorf("%w: console write: %v", litecore.ErrIO, err)
			}
		}
		return written, nil
	}

	d, err := dt.slot(fd)
	if err != nil {
		return 0, err
	}
	f := dt.fs.files[d.fileIdx]
	if f == nil {
		return 0, fmt.Errorf("%w: stale descriptor %d", litecore.ErrInvalidArgument, fd)
	}
	if err := dt.fs.WriteFile(f.path, p); err != nil {
		return 0, err
	}
	d.pos = uint32(len(p))
	return len(p), nil
}

// Seek repositions the descriptor. Whence is io.SeekStart, io.SeekCurrent or
// io.SeekEnd; the resulting position must land inside [0, size].
func (dt *DescriptorTable) Seek(fd int, offset int64, whence int) (int64, error) {
	d, err := dt.slot(fd)
	if err != nil {
		return 0, err
	}
	f := dt.fs.files[d.fileIdx]
	if f == nil {
		return 0, fmt.Errorf("%w: stale descriptor %d", litecore.ErrInvalidArgument, fd)
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(d.pos) + offset
	case io.SeekEnd:
		pos = int64(f.size) + offset
	default:
		return 0, fmt.Errorf("%w: whence %d", litecore.ErrInvalidArgument, whence)
	}
	if pos < 0 || pos > int64(f.size) {
		return 0, fmt.Errorf("%w: seek to %d outside [0, %d]", litecore.ErrInvalidArgument, pos, f.size)
	}
	d.pos = uint32(pos)
	return pos, nil
}

// Fstat reports the descriptor's status. Console descriptors show up as
// character devices.
func (dt *DescriptorTable) Fstat(fd int) (Stat, error) {
	if isConsole(fd) {
		return Stat{Mode: StatModeCharDev}, nil
	}
	d, err := dt.slot(fd)
	if err != nil {
		return Stat{}, err
	}
	f := dt.fs.files[d.fileIdx]
	if f == nil {
		return Stat{}, fmt.Errorf("%w: stale descriptor %d", litecore.ErrInvalidArgument, fd)
	}
	return Stat{Mode: StatModeRegular, Size: f.size}, nil
}

// Isatty reports whether the descriptor is a console one.
func (dt *DescriptorTable) Isatty(fd int) bool { return isConsole(fd) }
