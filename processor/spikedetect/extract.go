package spikedetect

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// Extractor detects spikes in the sampled chunks of one channel and emits
// their waveforms as events. Other chunks are forwarded unchanged; scalar
// chunks carrying mean and rms also update a relative threshold.
type Extractor struct {
	component.Base
	cfg     Config
	metrics *detectMetrics

	detector *Detector
	rate     int64
	next     *big.Rat // expected offset of the next sampled chunk
	origin   *big.Rat // time of detector sample 0

	tail      []float64 // retained samples, tail[0] is detector sample tailStart
	tailStart int64
	pending   []int64 // peaks waiting for the rest of their window

	nBefore, nAfter int64
	haveStats       bool
	mean, rms       float64
}

// NewExtractor creates an extractor for one channel.
func NewExtractor(name string, cfg Config, deps component.Dependencies, metrics *detectMetrics) *Extractor {
	return &Extractor{
		Base:    component.NewBase(name, deps),
		cfg:     cfg,
		metrics: metrics,
	}
}

// Send handles one chunk.
func (e *Extractor) Send(ctx context.Context, c *chunk.Chunk) error {
	e.Received(c)
	switch c.Kind {
	case chunk.Sampled:
		return e.Fail(e.sendSamples(ctx, c))
	case chunk.Scalar:
		if mean, ok := c.Scalar["mean"]; ok {
			if rms, ok := c.Scalar["rms"]; ok {
				e.mean, e.rms, e.haveStats = mean, rms, true
			}
		}
	}
	return e.Emit(ctx, c)
}

func (e *Extractor) sendSamples(ctx context.Context, c *chunk.Chunk) error {
	if c.SamplingRate <= 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: sampled chunk %s has no sampling rate", errors.ErrInvalidData, c),
			"SpikeExtract", "Send", "check chunk")
	}
	if err := e.sync(c); err != nil {
		return err
	}
	start := e.detector.Position()
	e.next = c.End()

	if e.cfg.ThreshRel != nil {
		if !e.haveStats || e.rms == 0 {
			e.metrics.recordUndetected(c.ID)
			e.Logger().Debug("No signal statistics yet, passing chunk undetected", "chunk", c.String())
			e.detector.Advance(int64(len(c.Samples)))
			e.retain(c.Samples)
			return e.Emit(ctx, c)
		}
		e.detector.SetThreshold(e.mean + *e.cfg.ThreshRel*e.rms)
	}

	peaks := e.detector.Detect(c.Samples)
	e.pending = append(e.pending, peaks...)
	e.retain(c.Samples)

	events, first := e.collect()
	if len(events) == 0 {
		return nil
	}
	e.metrics.recordSpikes(c.ID, len(events))

	offset := c.Offset
	base := start
	if first < start {
		base = first
		offset = chunk.ToSeconds(first, e.rate, e.origin)
	}
	for i := range events {
		events[i].Start -= float64(base)
	}
	return e.Emit(ctx, chunk.NewEvents(c.ID, offset, e.rate, events))
}

// sync starts a new detector on the first chunk, after a gap of more than
// one sample or an overlap, and when the sampling rate changes.
func (e *Extractor) sync(c *chunk.Chunk) error {
	cause := ""
	switch {
	case e.detector == nil:
		cause = "start"
	case c.SamplingRate != e.rate:
		cause = "rate"
	default:
		gap := chunk.ToSamples(new(big.Rat).Sub(c.Offset, e.next), e.rate)
		if gap > 1 || gap < 0 {
			cause = "gap"
		}
	}
	if cause == "" {
		return nil
	}

	if cause != "start" {
		e.Logger().Debug("Resetting detector", "cause", cause, "chunk", c.String(), "pending", len(e.pending))
		e.metrics.recordDropped("incomplete", len(e.pending))
		e.metrics.recordReset(cause)
	}

	rate := c.SamplingRate
	e.nBefore = msToSamples(e.cfg.Interval[0], rate)
	e.nAfter = msToSamples(e.cfg.Interval[1], rate)
	window := max(msToSamples(e.cfg.window(), rate), 1)
	refractory := msToSamples(e.cfg.refractory(), rate)

	thresh := 0.0
	if e.cfg.Thresh != nil {
		thresh = *e.cfg.Thresh
	} else if e.detector != nil {
		thresh = e.detector.Threshold()
	} else {
		// placeholder until statistics arrive
		thresh = *e.cfg.ThreshRel
	}
	d, err := NewDetector(thresh, window, refractory)
	if err != nil {
		return err
	}
	e.detector = d
	e.rate = rate
	e.origin = new(big.Rat).Set(c.Offset)
	e.tail = e.tail[:0]
	e.tailStart = 0
	e.pending = e.pending[:0]
	return nil
}

func msToSamples(ms float64, rate int64) int64 {
	return chunk.ToSamples(chunk.FromFloat(ms/1000), rate)
}

// retain appends samples to the tail and trims what no future window needs.
func (e *Extractor) retain(samples []float64) {
	e.tail = append(e.tail, samples...)
	end := e.tailStart + int64(len(e.tail))

	// the earliest peak a later chunk can report is inside the current
	// search window
	keep := end - e.detector.Window() - e.nBefore
	for _, p := range e.pending {
		keep = min(keep, p-e.nBefore)
	}
	if drop := keep - e.tailStart; drop > 0 {
		e.tail = slices.Delete(e.tail, 0, int(min(drop, int64(len(e.tail)))))
		e.tailStart += min(drop, end-e.tailStart)
	}
}

// collect extracts every pending window now complete. Event starts are
// detector sample indices. It also returns the earliest start.
func (e *Extractor) collect() ([]chunk.Event, int64) {
	var events []chunk.Event
	first := int64(-1)
	end := e.tailStart + int64(len(e.tail))
	dropped := 0
	kept := e.pending[:0]
	for _, p := range e.pending {
		lo, hi := p-e.nBefore, p+e.nAfter
		switch {
		case lo < e.tailStart:
			dropped++
		case hi > end:
			kept = append(kept, p)
		default:
			events = append(events, chunk.Event{
				Start: float64(lo),
				Spike: slices.Clone(e.tail[lo-e.tailStart : hi-e.tailStart]),
			})
			if first < 0 || lo < first {
				first = lo
			}
		}
	}
	e.pending = kept
	if dropped > 0 {
		e.metrics.recordDropped("start", dropped)
		e.Logger().Debug("Dropped spikes too close to the start of the signal", "count", dropped)
	}
	return events, first
}

// Close drops incomplete windows and closes the targets.
func (e *Extractor) Close(ctx context.Context) error {
	if !e.Closed() && len(e.pending) > 0 {
		e.Logger().Debug("Dropping incomplete spikes at close", "count", len(e.pending))
		e.metrics.recordDropped("incomplete", len(e.pending))
		e.pending = nil
	}
	return e.Base.Close(ctx)
}
