package spikefeatures

import (
	"context"
	"fmt"
	"maps"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// Aligner collects the spike waveforms of one channel and, when closed,
// aligns them, computes their features and emits them as events.
type Aligner struct {
	component.Base
	cfg     Config
	metrics *featureMetrics

	rate    int64
	pending []*chunk.Chunk
}

// NewAligner creates an aligner for one channel.
func NewAligner(name string, cfg Config, deps component.Dependencies, metrics *featureMetrics) *Aligner {
	return &Aligner{
		Base:    component.NewBase(name, deps),
		cfg:     cfg,
		metrics: metrics,
	}
}

// Send buffers event chunks and forwards everything else.
func (a *Aligner) Send(ctx context.Context, c *chunk.Chunk) error {
	a.Received(c)
	if c.Kind != chunk.Events {
		return a.Emit(ctx, c)
	}
	if len(c.Events) == 0 {
		return nil
	}
	if c.SamplingRate <= 0 {
		return a.Fail(errors.WrapInvalid(fmt.Errorf("%w: event chunk %s has no sampling rate", errors.ErrInvalidData, c),
			"SpikeFeatures", "Send", "buffer spikes"))
	}
	if a.rate != 0 && c.SamplingRate != a.rate {
		return a.Fail(errors.WrapFatal(fmt.Errorf("%w: %s has rate %d, expected %d", errors.ErrRateMismatch, c, c.SamplingRate, a.rate),
			"SpikeFeatures", "Send", "buffer spikes"))
	}
	a.rate = c.SamplingRate
	a.pending = append(a.pending, c)
	return nil
}

// Close processes the buffered spikes, emits the results and closes the
// targets.
func (a *Aligner) Close(ctx context.Context) error {
	if a.Closed() {
		return nil
	}
	if err := a.flush(ctx); err != nil {
		return a.Fail(err)
	}
	return a.Base.Close(ctx)
}

func (a *Aligner) flush(ctx context.Context) error {
	if len(a.pending) == 0 {
		return nil
	}
	var waves [][]float64
	for _, c := range a.pending {
		for _, ev := range c.Events {
			waves = append(waves, ev.Spike)
		}
	}

	al, err := Align(waves, a.cfg.Resamp, a.cfg.maxShift())
	if err != nil {
		return err
	}
	id := a.pending[0].ID
	a.metrics.recordAligned(id, len(al.Rows), al.Dropped)
	if al.Dropped > 0 {
		a.Logger().Info("Dropped misaligned spikes", "channel", id, "dropped", al.Dropped, "kept", len(al.Rows))
	}
	if len(al.Rows) == 0 {
		return errors.WrapFatal(fmt.Errorf("%w: all %d spikes of %s exceeded the shift limit", errors.ErrAlignment, len(waves), id),
			"SpikeFeatures", "Close", "align spikes")
	}

	fields, err := a.features(al)
	if err != nil {
		return err
	}

	// walk the buffered chunks in order, pairing each kept spike with its
	// source event
	row, index := 0, 0
	for _, c := range a.pending {
		var events []chunk.Event
		for _, ev := range c.Events {
			if row < len(al.Kept) && al.Kept[row] == index {
				events = append(events, a.alignedEvent(ev, al.Rows[row], al.Shifts[row], fields[row]))
				row++
			}
			index++
		}
		if len(events) == 0 {
			continue
		}
		rate := c.SamplingRate
		if !a.cfg.Decimate {
			rate *= int64(a.cfg.Resamp)
		}
		if err := a.Emit(ctx, chunk.NewEvents(c.ID, c.Offset, rate, events)); err != nil {
			return err
		}
	}
	a.pending = nil
	return nil
}

// features computes the principal component scores and measurements of
// every aligned row.
func (a *Aligner) features(al *Alignment) ([]map[string]float64, error) {
	out := make([]map[string]float64, len(al.Rows))
	for i := range out {
		out[i] = make(map[string]float64, a.cfg.NFeats+len(a.cfg.Measurements))
	}

	if a.cfg.NFeats > 0 {
		proj, err := Project(al.Rows, a.cfg.NFeats, a.cfg.MaxPCA, a.Logger())
		if err != nil {
			return nil, err
		}
		if proj.Fallback {
			a.metrics.recordFallback()
		}
		_, k := proj.Scores.Dims()
		for i := range out {
			for j := 0; j < k; j++ {
				out[i][fmt.Sprintf("pc%d", j)] = proj.Scores.At(i, j)
			}
		}
	}

	if len(a.cfg.Measurements) > 0 {
		vals, err := Measure(al.Rows, al.Peak, a.cfg.Measurements)
		if err != nil {
			return nil, err
		}
		for i := range out {
			for j, name := range a.cfg.Measurements {
				v := vals[i][j]
				if a.cfg.Decimate && timeMeasurement(name) {
					v /= float64(a.cfg.Resamp)
				}
				out[i][name] = v
			}
		}
	}
	return out, nil
}

// alignedEvent rebuilds ev around its aligned waveform. The aligned row
// starts resamp+shift upsampled samples into the original window.
func (a *Aligner) alignedEvent(ev chunk.Event, row []float64, shift int, fields map[string]float64) chunk.Event {
	u := a.cfg.Resamp
	out := chunk.Event{Fields: maps.Clone(ev.Fields)}
	if out.Fields == nil {
		out.Fields = make(map[string]float64, len(fields))
	}
	maps.Copy(out.Fields, fields)

	if a.cfg.Decimate {
		out.Start = ev.Start + float64(u+shift)/float64(u)
		out.Spike = make([]float64, 0, len(row)/u)
		for i := 0; i < len(row); i += u {
			out.Spike = append(out.Spike, row[i])
		}
		return out
	}
	out.Start = ev.Start*float64(u) + float64(u+shift)
	out.Spike = row
	return out
}
