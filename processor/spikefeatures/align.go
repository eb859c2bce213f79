package spikefeatures

import (
	"fmt"
	"math"

	"github.com/c360/mspikes/errors"
)

// Alignment is the result of Align.
type Alignment struct {
	// Rows are the upsampled waveforms cropped to (n-2)*U samples around
	// their peaks, one per kept input.
	Rows [][]float64
	// Shifts holds the peak displacement of each kept waveform in
	// upsampled samples.
	Shifts []int
	// Kept maps each row to its input index.
	Kept []int
	// Peak is the index of the peak in every aligned row.
	Peak int
	// Dropped counts waveforms whose shift exceeded the limit.
	Dropped int
}

// Align upsamples waves by a factor of upsample and shifts each one so its
// peak lines up with the peak of the mean waveform. Waveforms whose peak is
// more than maxShift upsampled samples away are dropped. All waves must
// have the same length.
func Align(waves [][]float64, upsample, maxShift int) (*Alignment, error) {
	if upsample <= 1 {
		return nil, alignInvalid(fmt.Errorf("%w: upsampling factor must be > 1, got %d", errors.ErrInvalidConfig, upsample))
	}
	if maxShift < 0 || maxShift > upsample {
		return nil, alignInvalid(fmt.Errorf("%w: max shift %d outside [0, %d]", errors.ErrInvalidConfig, maxShift, upsample))
	}
	if len(waves) == 0 {
		return nil, errors.WrapInvalid(errors.ErrAlignment, "SpikeFeatures", "Align", "align waveforms")
	}
	n := len(waves[0])
	if n < 3 {
		return nil, alignInvalid(fmt.Errorf("%w: waveforms need at least 3 samples, got %d", errors.ErrInvalidData, n))
	}
	for i, w := range waves {
		if len(w) != n {
			return nil, alignInvalid(fmt.Errorf("%w: waveform %d has %d samples, expected %d", errors.ErrInvalidData, i, len(w), n))
		}
	}

	nu := n * upsample
	rs := newResampler(n, nu)
	up := make([][]float64, len(waves))
	mean := make([]float64, nu)
	for i, w := range waves {
		up[i] = rs.resample(w)
		for j, v := range up[i] {
			mean[j] += v
		}
	}

	r, positive := expectedPeak(mean, upsample)
	width := (n - 2) * upsample
	out := &Alignment{Peak: r - upsample}
	for i, w := range up {
		shift := extremeIndex(w[r-upsample:r+upsample+1], positive) - upsample
		if abs(shift) > maxShift {
			out.Dropped++
			continue
		}
		start := upsample + shift
		row := make([]float64, width)
		copy(row, w[start:start+width])
		out.Rows = append(out.Rows, row)
		out.Shifts = append(out.Shifts, shift)
		out.Kept = append(out.Kept, i)
	}
	return out, nil
}

// expectedPeak locates the largest excursion of the (unscaled) mean
// waveform, leaving a margin of one original sample on either side.
func expectedPeak(mean []float64, upsample int) (int, bool) {
	lo, hi := upsample, len(mean)-upsample
	imax, imin := lo, lo
	for i := lo; i < hi; i++ {
		if mean[i] > mean[imax] {
			imax = i
		}
		if mean[i] < mean[imin] {
			imin = i
		}
	}
	if math.Abs(mean[imin]) > math.Abs(mean[imax]) {
		return imin, false
	}
	return imax, true
}

// extremeIndex returns the index of the first maximum (or minimum) of x.
func extremeIndex(x []float64, positive bool) int {
	best := 0
	for i, v := range x {
		if (positive && v > x[best]) || (!positive && v < x[best]) {
			best = i
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func alignInvalid(err error) error {
	return errors.WrapInvalid(err, "SpikeFeatures", "Align", "align waveforms")
}
