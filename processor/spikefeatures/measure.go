package spikefeatures

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/c360/mspikes/errors"
)

// Measurement names.
const (
	Height  = "height"  // maximum of the waveform
	Trough1 = "trough1" // minimum before the peak
	Trough2 = "trough2" // minimum from the peak on
	PTT     = "ptt"     // samples from the peak to trough2
	PeakW   = "peakw"   // samples at or above half the height
	TroughW = "troughw" // samples from the peak on at or below half of trough2
)

// Measurements lists every supported measurement.
var Measurements = []string{Height, Trough1, Trough2, PTT, PeakW, TroughW}

// timeMeasurement reports whether name is counted in samples.
func timeMeasurement(name string) bool {
	return name == PTT || name == PeakW || name == TroughW
}

// Measure computes the named shape measurements of each row. peak is the
// index of the aligned peak in every row.
func Measure(rows [][]float64, peak int, names []string) ([][]float64, error) {
	for _, name := range names {
		if !slices.Contains(Measurements, name) {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: unknown measurement %q", errors.ErrInvalidConfig, name),
				"SpikeFeatures", "Measure", "measure waveforms")
		}
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if peak <= 0 || peak >= len(row) {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: peak %d outside waveform of %d samples", errors.ErrInvalidData, peak, len(row)),
				"SpikeFeatures", "Measure", "measure waveforms")
		}
		before, after := row[:peak], row[peak:]
		vals := make([]float64, len(names))
		for j, name := range names {
			switch name {
			case Height:
				vals[j] = floats.Max(row)
			case Trough1:
				vals[j] = floats.Min(before)
			case Trough2:
				vals[j] = floats.Min(after)
			case PTT:
				vals[j] = float64(floats.MinIdx(after))
			case PeakW:
				half := floats.Max(row) / 2
				vals[j] = float64(count(row, func(v float64) bool { return v >= half }))
			case TroughW:
				half := floats.Min(after) / 2
				vals[j] = float64(count(after, func(v float64) bool { return v <= half }))
			}
		}
		out[i] = vals
	}
	return out, nil
}

func count(x []float64, pred func(float64) bool) int {
	n := 0
	for _, v := range x {
		if pred(v) {
			n++
		}
	}
	return n
}
