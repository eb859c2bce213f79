// Package spikefeatures aligns extracted spike waveforms and computes their
// features.
//
// Waveforms are upsampled with an FFT resampler, shifted so their peaks line
// up with the peak of the mean waveform, and projected onto their principal
// components. Because the basis needs every waveform of a channel, the
// spike_features node buffers event chunks until it is closed:
//
//	spikes = spike_extract(data, thresh_rel=4.5)
//	feats = spike_features(spikes, resamp=3, nfeats=3, measurements=["height", "ptt"])
//
// Each output event carries fields pc0..pcK-1 and the requested
// measurements. Start times are corrected by the sub-sample shift.
package spikefeatures
