// Package containerreader provides the container_reader source.
//
// Entries are replayed in time order. How that order is found depends on
// what the container records:
//
//   - timestamp: when use_timestamp is set or the container has no clock
//     rate; offsets are seconds from the earliest entry
//   - jack_frame: when entries carry jack_frame/jack_usec attributes; entries
//     are sorted by jack_usec and the wrapping 32-bit frame clock is unwrapped
//     with container.FrameCounter
//   - sample_count: otherwise; offsets are sample_count / rate
//
// Entries lacking the chosen attribute are skipped. Every selected dataset is
// recorded in the channel register so sinks can reuse its uuid and units.
package containerreader
