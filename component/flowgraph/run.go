package flowgraph

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/metric"
)

// PipelineHealth is the health monitor entry for the run as a whole.
const PipelineHealth = "pipeline"

// Run pulls every root source to exhaustion, one after another in
// declaration order, and then closes the graph. The context is checked
// between records.
//
// If a record fails, or ctx is cancelled, every root is thrown the error and
// then closed. The returned error names the chunk being processed when it is
// known, and includes any errors raised while closing.
func (g *Graph) Run(ctx context.Context) error {
	g.metrics.SetRunStatus(metric.RunRunning)
	g.health.Running(PipelineHealth, "running")
	start := time.Now()

	err := g.pull(ctx)
	if err != nil {
		g.logger.Error("Pipeline failed", "error", err)
		g.throw(context.WithoutCancel(ctx), err)
	}
	if closeErr := g.close(context.WithoutCancel(ctx)); closeErr != nil {
		err = stderrors.Join(err, closeErr)
	}

	g.metrics.ObserveRun(time.Since(start).Seconds())
	if err != nil {
		g.metrics.SetRunStatus(metric.RunFailed)
		g.health.Fail(PipelineHealth, err)
		return err
	}
	g.metrics.SetRunStatus(metric.RunSucceeded)
	g.health.Running(PipelineHealth, "finished")
	g.logger.Info("Pipeline finished", "duration", time.Since(start))
	return nil
}

func (g *Graph) pull(ctx context.Context) error {
	for _, name := range g.roots {
		src := g.nodes[name].(component.Source)
		g.logger.Debug("Pulling source", "node", name)
		g.health.Running(name, "pulling")
		var last *chunk.Chunk
		var pulled int64
		for {
			if err := ctx.Err(); err != nil {
				g.health.Degrade(name, "cancelled")
				return atChunk(errors.WrapTransient(err, "Flowgraph", "Run", "pull "+name), last)
			}
			c, err := src.Next(ctx)
			if err == io.EOF {
				break
			}
			if c != nil {
				last = c
			}
			if err != nil {
				g.health.Fail(name, err)
				return atChunk(err, c)
			}
			pulled++
			g.metrics.RecordPulled(name)
			g.health.Progress(name, pulled)
		}
		g.health.Running(name, "exhausted")
		g.health.Progress(name, pulled)
	}
	return nil
}

func atChunk(err error, c *chunk.Chunk) error {
	if c == nil {
		return err
	}
	return errors.AtChunk(err, c.ID, c.Offset)
}

func (g *Graph) throw(ctx context.Context, err error) {
	for _, name := range g.roots {
		g.nodes[name].Throw(ctx, err)
	}
}

// close closes every node without sources. Closing propagates downstream.
func (g *Graph) close(ctx context.Context) error {
	var errs []error
	for _, name := range g.heads {
		if err := g.nodes[name].Close(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, "Flowgraph", "Close", "close "+name))
		}
	}
	return stderrors.Join(errs...)
}
