package blockdev

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
)

// Memory is a Device backed by an in-RAM disk image. It is the workhorse for
// tests and for volumes assembled on the fly.
type Memory struct {
	drive uint8
	image []byte
}

var _ Device = (*Memory)(nil)

// NewMemory wraps image as drive number drive. The image is used in place,
// not copied; writes mutate it.
func NewMemory(drive uint8, image []byte) *Memory {
	return &Memory{drive: drive, image: image}
}

// NewMemorySized creates a zero-filled in-RAM device of the given sector
// count.
func NewMemorySized(drive uint8, sectors uint32) *Memory {
	return &Memory{drive: drive, image: make([]byte, int(sectors)*SectorSize)}
}

// Image returns the backing image.
func (m *Memory) Image() []byte { return m.image }

func (m *Memory) span(drive uint8, lba uint32, count uint8) (int, int, error) {
	if drive != m.drive {
		return 0, 0, fmt.Errorf("%w: no drive %d", litecore.ErrInvalidArgument, drive)
	}
	start := int(lba) * SectorSize
	end := start + int(count)*SectorSize
	if end > len(m.image) {
		return 0, 0, fmt.Errorf("%w: lba %d count %d beyond image (%d sectors)",
			litecore.ErrIO, lba, count, len(m.image)/SectorSize)
	}
	return start, end, nil
}

// ReadSectors implements Device.
func (m *Memory) ReadSectors(drive uint8, lba uint32, count uint8, buf []byte) error {
	if err := checkTransfer(lba, count, buf); err != nil {
		return err
	}
	start, end, err := m.span(drive, lba, count)
	if err != nil {
		return err
	}
	copy(buf, m.image[start:end])
	return nil
}

// WriteSectors implements Device.
func (m *Memory) WriteSectors(drive uint8, lba uint32, count uint8, data []byte) error {
	if err := checkTransfer(lba, count, data); err != nil {
		return err
	}
	start, end, err := m.span(drive, lba, count)
	if err != nil {
		return err
	}
	copy(m.image[start:end], data[:end-start])
	return nil
}
