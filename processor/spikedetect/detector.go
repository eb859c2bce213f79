package spikedetect

import (
	"fmt"

	"github.com/c360/mspikes/errors"
)

type detectorState int

const (
	belowThreshold detectorState = iota
	searching
	refractory
)

// Detector finds threshold-crossing peaks in a sampled signal. It keeps
// its position between calls, so a signal may be fed in consecutive blocks
// and peaks are reported as indices from the first sample ever seen.
//
// A positive threshold detects upward crossings and reports maxima; a
// negative threshold detects downward crossings and reports minima. A
// crossing starts a search over the crossing sample and the following
// window-1 samples; the first most extreme sample is the peak. Scanning
// resumes refractory samples after the peak.
type Detector struct {
	thresh     float64
	window     int64
	refractory int64

	pos      int64
	state    detectorState
	trigger  int64
	peakIdx  int64
	peakVal  float64
	resumeAt int64
}

// NewDetector creates a detector. A refractory period of zero defaults to
// the search window.
func NewDetector(thresh float64, window, refractory int64) (*Detector, error) {
	if thresh == 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: threshold must be nonzero", errors.ErrInvalidConfig),
			"Detector", "NewDetector", "check threshold")
	}
	if window < 1 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: window must be at least one sample", errors.ErrInvalidConfig),
			"Detector", "NewDetector", "check window")
	}
	if refractory < 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: negative refractory period", errors.ErrInvalidConfig),
			"Detector", "NewDetector", "check refractory period")
	}
	if refractory == 0 {
		refractory = window
	}
	return &Detector{thresh: thresh, window: window, refractory: refractory}, nil
}

// Threshold returns the current threshold
func (d *Detector) Threshold() float64 {
	return d.thresh
}

// SetThreshold changes the threshold for samples not yet seen. A search in
// progress is not affected. Zero is ignored.
func (d *Detector) SetThreshold(thresh float64) {
	if thresh != 0 {
		d.thresh = thresh
	}
}

// Window returns the peak search window in samples
func (d *Detector) Window() int64 {
	return d.window
}

// Position returns the index of the next sample
func (d *Detector) Position() int64 {
	return d.pos
}

// Reset returns the detector to its initial state.
func (d *Detector) Reset() {
	*d = Detector{thresh: d.thresh, window: d.window, refractory: d.refractory}
}

// Advance moves the clock forward over n samples that are not examined.
// Any search in progress is abandoned.
func (d *Detector) Advance(n int64) {
	d.pos += n
	if d.state == searching {
		d.state = belowThreshold
	}
}

// Detect scans samples and returns the indices of peaks completed in this call.
func (d *Detector) Detect(samples []float64) []int64 {
	var out []int64
	for i, x := range samples {
		t := d.pos + int64(i)
		switch d.state {
		case refractory:
			if t < d.resumeAt {
				continue
			}
			d.state = belowThreshold
			fallthrough
		case belowThreshold:
			if d.beyond(x, d.thresh) {
				d.state = searching
				d.trigger, d.peakIdx, d.peakVal = t, t, x
			}
		case searching:
			if d.beyond(x, d.peakVal) {
				d.peakIdx, d.peakVal = t, x
			}
		}
		if d.state == searching && t-d.trigger+1 >= d.window {
			out = append(out, d.peakIdx)
			d.state = refractory
			d.resumeAt = d.peakIdx + d.refractory
		}
	}
	d.pos += int64(len(samples))
	return out
}

// beyond reports whether x lies past ref in the detection direction.
func (d *Detector) beyond(x, ref float64) bool {
	if d.thresh > 0 {
		return x > ref
	}
	return x < ref
}
