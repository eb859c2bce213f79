package containerreader

import (
	"cmp"
	"log/slog"
	"math/big"
	"slices"
	"strconv"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/storage/container"
)

// Entry attributes written by the JACK-based recorder. jack_frame is a
// wrapping 32-bit frame clock; jack_usec orders entries across wraps.
const (
	AttrJackFrame = "jack_frame"
	AttrJackUsec  = "jack_usec"
)

// Ordering keys
const (
	KeyTimestamp   = "timestamp"
	KeySampleCount = "sample_count"
	KeyJackFrame   = "jack_frame"
)

// placedEntry is an entry with its start on the container timeline: time in
// samples at rate, or in seconds when rate is zero.
type placedEntry struct {
	info container.EntryInfo
	time *big.Rat
	rate int64
}

func (e placedEntry) seconds() *big.Rat {
	return toSeconds(e.time, e.rate)
}

func toSeconds(t *big.Rat, rate int64) *big.Rat {
	out := new(big.Rat).Set(t)
	if rate > 0 {
		out.Quo(out, new(big.Rat).SetInt64(rate))
	}
	return out
}

// orderKey picks how entries are placed: by timestamp when asked or when the
// container has no clock, by the JACK frame clock when entries carry it, and
// by sample count otherwise.
func orderKey(entries []container.EntryInfo, rate int64, useTimestamp bool) string {
	if useTimestamp || rate <= 0 {
		return KeyTimestamp
	}
	for _, e := range entries {
		if _, ok := e.Attrs[AttrJackFrame]; ok {
			return KeyJackFrame
		}
	}
	return KeySampleCount
}

// placeEntries sorts entries by key and positions them on the container
// timeline. Entries missing the key are skipped.
func placeEntries(entries []container.EntryInfo, key string, rate int64, logger *slog.Logger) []placedEntry {
	var out []placedEntry
	switch key {
	case KeyTimestamp:
		sorted := slices.Clone(entries)
		slices.SortStableFunc(sorted, func(a, b container.EntryInfo) int { return a.Timestamp.Compare(b.Timestamp) })
		if len(sorted) == 0 {
			return nil
		}
		origin := chunk.FromTime(sorted[0].Timestamp)
		for _, e := range sorted {
			t := chunk.FromTime(e.Timestamp)
			out = append(out, placedEntry{info: e, time: t.Sub(t, origin)})
		}

	case KeySampleCount:
		for _, e := range entries {
			if e.SampleCount == nil {
				logger.Info("Entry skipped", "entry", e.Name, "missing", KeySampleCount)
				continue
			}
			out = append(out, placedEntry{info: e, time: new(big.Rat).SetInt64(*e.SampleCount), rate: rate})
		}
		slices.SortStableFunc(out, func(a, b placedEntry) int { return a.time.Cmp(b.time) })

	case KeyJackFrame:
		type keyed struct {
			usec  uint64
			frame uint32
			info  container.EntryInfo
		}
		var ks []keyed
		for _, e := range entries {
			usec, err1 := strconv.ParseUint(e.Attrs[AttrJackUsec], 10, 64)
			frame, err2 := strconv.ParseUint(e.Attrs[AttrJackFrame], 10, 32)
			if err1 != nil || err2 != nil {
				logger.Info("Entry skipped", "entry", e.Name, "missing", KeyJackFrame)
				continue
			}
			ks = append(ks, keyed{usec, uint32(frame), e})
		}
		slices.SortStableFunc(ks, func(a, b keyed) int { return cmp.Compare(a.usec, b.usec) })
		var fc container.FrameCounter
		for _, k := range ks {
			n := fc.Next(k.frame)
			out = append(out, placedEntry{info: k.info, time: new(big.Rat).SetInt(new(big.Int).SetUint64(n)), rate: rate})
		}
	}
	return out
}
