package container

import (
	"fmt"
	"math/big"

	"github.com/c360/mspikes/errors"
)

// DataOffset returns the start of a dataset in seconds on the container
// timeline. The entry start is entryTime in samples at entryRate, or in
// seconds when entryRate is zero; dsetTime and dsetRate give the dataset
// offset within the entry the same way, and a nil dsetTime means the dataset
// starts with the entry.
//
// When both the entry and the dataset are sampled, the dataset offset must
// land on a whole sample of the entry clock.
func DataOffset(entryTime *big.Rat, entryRate int64, dsetTime *big.Rat, dsetRate int64) (*big.Rat, error) {
	out := toSeconds(entryTime, entryRate)
	if dsetTime == nil {
		return out, nil
	}
	if entryRate > 0 && dsetRate > 0 {
		onEntryClock := new(big.Rat).Mul(dsetTime, big.NewRat(entryRate, dsetRate))
		if !onEntryClock.IsInt() {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: offset %s at %d Hz is not a whole sample at %d Hz",
					errors.ErrInvalidData, dsetTime.RatString(), dsetRate, entryRate),
				"Container", "DataOffset", "convert timebase")
		}
	}
	return out.Add(out, toSeconds(dsetTime, dsetRate)), nil
}

func toSeconds(t *big.Rat, rate int64) *big.Rat {
	out := new(big.Rat)
	if t == nil {
		return out
	}
	out.Set(t)
	if rate > 0 {
		out.Quo(out, new(big.Rat).SetInt64(rate))
	}
	return out
}

// FrameCounter converts a wrapping 32-bit frame clock into a monotonic
// 64-bit count. The first frame seen is counted as zero; each later frame
// advances the count by its distance from the previous frame modulo 2^32.
// Frames must be supplied in acquisition order.
type FrameCounter struct {
	started bool
	last    uint32
	count   uint64
}

// Next returns the count for frame.
func (f *FrameCounter) Next(frame uint32) uint64 {
	if !f.started {
		f.started = true
		f.last = frame
		return 0
	}
	f.count += uint64(frame - f.last)
	f.last = frame
	return f.count
}
