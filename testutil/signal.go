package testutil

import "math"

// Ramp returns 0, 1, ..., n-1.
func Ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// Sine returns n samples of a sinusoid of the given frequency and amplitude
// sampled at rate.
func Sine(n int, freq, amplitude float64, rate int64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// Gaussian returns n samples of a gaussian bump of the given width centred
// at center, scaled to peak at amplitude.
func Gaussian(n int, center, width, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := (float64(i) - center) / width
		out[i] = amplitude * math.Exp(-x*x/2)
	}
	return out
}
