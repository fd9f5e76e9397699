package blockdev

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
)

// SectorSize is the fixed sector size of every device in this stack.
const SectorSize = 512

// MaxSectorsPerCall is the largest transfer a single device call accepts,
// matching the 8-bit count register of the original ATA interface.
const MaxSectorsPerCall = 255

// Device is the boundary to the physical block driver. Implementations
// transfer whole 512-byte sectors addressed by LBA. The count is limited to
// MaxSectorsPerCall per invocation.
//
// Device implementations are not required to be safe for concurrent use; the
// storage stack above them is single-threaded by construction.
type Device interface {
	// ReadSectors reads count sectors starting at lba into buf. buf must
	// hold at least count*SectorSize bytes.
	ReadSectors(drive uint8, lba uint32, count uint8, buf []byte) error

	// WriteSectors writes count sectors starting at lba from data. data
	// must hold at least count*SectorSize bytes.
	WriteSectors(drive uint8, lba uint32, count uint8, data []byte) error
}

func checkTransfer(lba uint32, count uint8, buf []byte) error {
	if count == 0 {
		return fmt.Errorf("%w: zero sector count", litecore.ErrInvalidArgument)
	}
	if len(buf) < int(count)*SectorSize {
		return fmt.Errorf("%w: buffer %d bytes, need %d", litecore.ErrInvalidArgument,
			len(buf), int(count)*SectorSize)
	}
	return nil
}
