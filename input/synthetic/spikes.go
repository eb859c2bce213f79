package synthetic

import (
	"math"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
)

// Template is a biphasic spike waveform: a gaussian trough followed by a
// broader, shallower rebound.
type Template struct {
	Shape  []float64
	Trough int // index of the minimum
}

// NewTemplate samples a template of n samples with a trough of depth amplitude.
func NewTemplate(n int, amplitude float64) Template {
	trough := n / 3
	sigma := math.Max(float64(n)/10, 0.5)
	rebound := float64(2 * n / 3)
	shape := make([]float64, n)
	for k := range shape {
		x := (float64(k) - float64(trough)) / sigma
		y := (float64(k) - rebound) / (2 * sigma)
		shape[k] = -amplitude*math.Exp(-x*x/2) + 0.35*amplitude*math.Exp(-y*y/2)
	}
	return Template{Shape: shape, Trough: trough}
}

// Train places a template every period samples, with the first trough half a
// period in.
type Train struct {
	Template Template
	Period   float64 // in samples
}

// Peak returns the sample index of the trough of spike i.
func (t Train) Peak(i int64) int64 {
	return int64(math.Round((float64(i) + 0.5) * t.Period))
}

// Add adds every spike overlapping [pos, pos+len(buf)) to buf and returns the
// troughs that fall inside the range.
func (t Train) Add(pos int64, buf []float64) []int64 {
	end := pos + int64(len(buf))
	n := int64(len(t.Template.Shape))
	first := max(int64(math.Floor(float64(pos-n)/t.Period))-1, 0)
	var peaks []int64
	for i := first; ; i++ {
		peak := t.Peak(i)
		start := peak - int64(t.Template.Trough)
		if start >= end {
			break
		}
		if start+n <= pos {
			continue
		}
		for k, v := range t.Template.Shape {
			j := start + int64(k)
			if j >= pos && j < end {
				buf[j-pos] += v
			}
		}
		if peak >= pos && peak < end {
			peaks = append(peaks, peak)
		}
	}
	return peaks
}

// NewSpikeTrain creates a source of noise with periodically injected spikes.
func NewSpikeTrain(name string, cfg SpikeConfig, deps component.Dependencies) *Source {
	rng := newRand(cfg.Seed)
	rate := float64(cfg.SamplingRate)
	train := Train{
		Template: NewTemplate(int(math.Round(cfg.Width*rate)), cfg.Amplitude),
		Period:   cfg.Period * rate,
	}
	truth := cfg.Channel + "_truth"
	return newSource(name, cfg.Common, deps, func(pos int64, buf []float64) []*chunk.Chunk {
		for i := range buf {
			buf[i] = cfg.Noise * rng.NormFloat64()
		}
		peaks := train.Add(pos, buf)
		if !cfg.Truth || len(peaks) == 0 {
			return nil
		}
		events := make([]chunk.Event, len(peaks))
		for i, p := range peaks {
			events[i] = chunk.Event{Start: float64(p - pos)}
		}
		offset := chunk.SamplesToSeconds(pos, cfg.SamplingRate)
		return []*chunk.Chunk{chunk.NewEvents(truth, offset, cfg.SamplingRate, events)}
	})
}
