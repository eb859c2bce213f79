// Package spikedetect implements the spike_extract node: threshold
// crossing detection on sampled chunks and extraction of a fixed window of
// samples around each peak.
//
// Detection runs independently per channel. A window that straddles two
// chunks is completed when the next chunk arrives, so the output does not
// depend on how the signal was divided. Windows that would start before the
// first retained sample, or that are still incomplete at Close or at a
// discontinuity, are dropped and counted.
//
// Example definition:
//
//	spikes = spike_extract((hpass, samples), thresh=-4.5, interval=[1.0, 2.0])
package spikedetect
