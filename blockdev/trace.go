package blockdev

// Op records one sector transfer seen by a Trace device.
type Op struct {
	Write bool
	Drive uint8
	LBA   uint32
	Count uint8
}

// Trace wraps a Device and records every transfer. The block cache tests use
// it to observe write-back and flush behavior at the device boundary.
type Trace struct {
	inner Device
	ops   []Op
}

var _ Device = (*Trace)(nil)

// NewTrace wraps inner.
func NewTrace(inner Device) *Trace {
	return &Trace{inner: inner}
}

// Ops returns all recorded transfers in order.
func (t *Trace) Ops() []Op { return t.ops }

// Writes returns only the recorded write transfers, in order.
func (t *Trace) Writes() []Op {
	var w []Op
	for _, op := range t.ops {
		if op.Write {
			w = append(w, op)
		}
	}
	return w
}

// Reset discards the recorded transfers.
func (t *Trace) Reset() { t.ops = nil }

// ReadSectors implements Device.
func (t *Trace) ReadSectors(drive uint8, lba uint32, count uint8, buf []byte) error {
	t.ops = append(t.ops, Op{Drive: drive, LBA: lba, Count: count})
	return t.inner.ReadSectors(drive, lba, count, buf)
}

// WriteSectors implements Device.
func (t *Trace) WriteSectors(drive uint8, lba uint32, count uint8, data []byte) error {
	t.ops = append(t.ops, Op{Write: true, Drive: drive, LBA: lba, Count: count})
	return t.inner.WriteSectors(drive, lba, count, data)
}
