package blockdev

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle wraps a Device and limits its throughput to a fixed number of
// sectors per second. It exists to make slow-media behavior reproducible in
// tests and benchmarks; the limiter blocks the caller, which matches the
// blocking I/O model of the rest of the stack.
type Throttle struct {
	inner   Device
	limiter *rate.Limiter
}

var _ Device = (*Throttle)(nil)

// NewThrottle wraps inner with a sectorsPerSecond budget. Bursts up to one
// maximal transfer are allowed so a single call can never deadlock.
func NewThrottle(inner Device, sectorsPerSecond int) *Throttle {
	burst := sectorsPerSecond
	if burst < MaxSectorsPerCall {
		burst = MaxSectorsPerCall
	}
	return &Throttle{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(sectorsPerSecond), burst),
	}
}

// ReadSectors implements Device.
func (t *Throttle) ReadSectors(drive uint8, lba uint32, count uint8, buf []byte) error {
	if err := t.limiter.WaitN(context.Background(), int(count)); err != nil {
		return err
	}
	return t.inner.ReadSectors(drive, lba, count, buf)
}

// WriteSectors implements Device.
func (t *Throttle) WriteSectors(drive uint8, lba uint32, count uint8, data []byte) error {
	if err := t.limiter.WaitN(context.Background(), int(count)); err != nil {
		return err
	}
	return t.inner.WriteSectors(drive, lba, count, data)
}
