//go:build unix

package blockdev

import (
	"fmt"
	"os"

	litecore "github.com/nekogakure/liteCore"
	"golang.org/x/sys/unix"
)

// Mmap is a read-only Device over a memory-mapped disk image file. Reads are
// plain copies out of the mapping; writes are rejected.
type Mmap struct {
	drive uint8
	data  []byte
}

var _ Device = (*Mmap)(nil)

// OpenMmap maps the image at path read-only as drive number drive.
// Call Close to release the mapping.
func OpenMmap(drive uint8, path string) (*Mmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", litecore.ErrIO, path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", litecore.ErrIO, path, err)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("%w: empty image %s", litecore.ErrInvalidArgument, path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s: %w", litecore.ErrIO, path, err)
	}
	return &Mmap{drive: drive, data: data}, nil
}

// Close unmaps the image. Any reads after Close fail.
func (d *Mmap) Close() error {
	if d.data == nil {
		return nil
	}
	err := unix.Munmap(d.data)
	d.data = nil
	return err
}

// ReadSectors implements Device.
func (d *Mmap) ReadSectors(drive uint8, lba uint32, count uint8, buf []byte) error {
	if err := checkTransfer(lba, count, buf); err != nil {
		return err
	}
	if drive != d.drive {
		return fmt.Errorf("%w: no drive %d", litecore.ErrInvalidArgument, drive)
	}
	if d.data == nil {
		return fmt.Errorf("%w: device closed", litecore.ErrIO)
	}
	start := int(lba) * SectorSize
	end := start + int(count)*SectorSize
	if end > len(d.data) {
		return fmt.Errorf("%w: lba %d count %d beyond image", litecore.ErrIO, lba, count)
	}
	copy(buf, d.data[start:end])
	return nil
}

// WriteSectors implements Device. Mmap devices are read-only.
func (d *Mmap) WriteSectors(drive uint8, lba uint32, count uint8, data []byte) error {
	return fmt.Errorf("%w: mmap device is read-only", litecore.ErrUnsupported)
}
