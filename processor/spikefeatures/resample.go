package spikefeatures

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Resample returns x resampled to npoints by zero-padding or truncating its
// real Fourier spectrum. For band-limited signals this is equivalent to sinc
// interpolation.
func Resample(x []float64, npoints int) []float64 {
	n := len(x)
	if n == 0 || npoints <= 0 {
		return nil
	}
	if npoints == n {
		out := make([]float64, n)
		copy(out, x)
		return out
	}

	return newResampler(n, npoints).resample(x)
}

// resampler caches transforms for a fixed input and output length.
type resampler struct {
	n, npoints int
	fwd, inv   *fourier.FFT
	coeff      []complex128
	padded     []complex128
}

func newResampler(n, npoints int) *resampler {
	return &resampler{
		n:       n,
		npoints: npoints,
		fwd:     fourier.NewFFT(n),
		inv:     fourier.NewFFT(npoints),
		coeff:   make([]complex128, n/2+1),
		padded:  make([]complex128, npoints/2+1),
	}
}

func (r *resampler) resample(x []float64) []float64 {
	r.fwd.Coefficients(r.coeff, x)
	clear(r.padded)
	copy(r.padded, r.coeff)
	// the inverse transform is unnormalized: dividing by n applies both the
	// 1/npoints normalization and the npoints/n amplitude correction
	out := r.inv.Sequence(nil, r.padded)
	scale := 1 / float64(r.n)
	for i := range out {
		out[i] *= scale
	}
	return out
}
