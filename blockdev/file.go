package blockdev

import (
	"fmt"
	"os"

	litecore "github.com/nekogakure/liteCore"
)

// File is a Device backed by a disk image file, using positional reads and
// writes so no seek state is shared.
type File struct {
	drive uint8
	f     *os.File
}

var _ Device = (*File)(nil)

// OpenFile opens the image at path as drive number drive. If readOnly is
// false the file is opened read-write.
func OpenFile(drive uint8, path string, readOnly bool) (*File, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", litecore.ErrIO, path, err)
	}
	return &File{drive: drive, f: f}, nil
}

// Close closes the underlying file.
func (d *File) Close() error {
	return d.f.Close()
}

// ReadSectors implements Device.
func (d *File) ReadSectors(drive uint8, lba uint32, count uint8, buf []byte) error {
	if err := checkTransfer(lba, count, buf); err != nil {
		return err
	}
	if drive != d.drive {
		return fmt.Errorf("%w: no drive %d", litecore.ErrInvalidArgument, drive)
	}
	n := int(count) * SectorSize
	if _, err := d.f.ReadAt(buf[:n], int64(lba)*SectorSize); err != nil {
		return fmt.Errorf("%w: read lba %d: %w", litecore.ErrIO, lba, err)
	}
	return nil
}

// WriteSectors implements Device.
func (d *File) WriteSectors(drive uint8, lba uint32, count uint8, data []byte) error {
	if err := checkTransfer(lba, count, data); err != nil {
		return err
	}
	if drive != d.drive {
		return fmt.Errorf("%w: no drive %d", litecore.ErrInvalidArgument, drive)
	}
	n := int(count) * SectorSize
	if _, err := d.f.WriteAt(data[:n], int64(lba)*SectorSize); err != nil {
		return fmt.Errorf("%w: write lba %d: %w", litecore.ErrIO, lba, err)
	}
	return nil
}
