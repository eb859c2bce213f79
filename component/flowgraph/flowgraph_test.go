package flowgraph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	mserrors "github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/health"
)

func TestParse(t *testing.T) {
	t.Run("sources and params", func(t *testing.T) {
		defs, err := Parse(`node_name = node_type(source1, (source2, events), param1=1234)`)
		require.NoError(t, err)
		want := []NodeDef{{
			Name: "node_name",
			Type: "node_type",
			Sources: []SourceRef{
				{Name: "source1"},
				{Name: "source2", Filters: []string{"events"}},
			},
			Params: map[string]any{"param1": int64(1234)},
		}}
		if diff := cmp.Diff(want, defs); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("toolchain layout", func(t *testing.T) {
		defs, err := Parse("input = container_reader()\nout = entry_writer((input, structure), (input, samples), create=True)")
		require.NoError(t, err)
		want := []NodeDef{
			{Name: "input", Type: "container_reader", Params: map[string]any{}},
			{Name: "out", Type: "entry_writer", Sources: []SourceRef{
				{Name: "input", Filters: []string{"structure"}},
				{Name: "input", Filters: []string{"samples"}},
			}, Params: map[string]any{"create": true}},
		}
		if diff := cmp.Diff(want, defs, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("statements and literals", func(t *testing.T) {
		src := `
# extract spikes
input = rand_samples(nsamples=1000, seed=7)
spikes = spike_extract((input, sampled), thresh=-4.5, interval=[1.0, 2.0],
                       name="x", relative=False, missing=None); out = chunk_log(spikes)
`
		defs, err := Parse(src)
		require.NoError(t, err)
		require.Len(t, defs, 3)
		assert.Equal(t, "spike_extract", defs[1].Type)
		assert.Equal(t, -4.5, defs[1].Params["thresh"])
		assert.Equal(t, []any{1.0, 2.0}, defs[1].Params["interval"])
		assert.Equal(t, "x", defs[1].Params["name"])
		assert.Equal(t, false, defs[1].Params["relative"])
		assert.Contains(t, defs[1].Params, "missing")
		assert.Nil(t, defs[1].Params["missing"])
		assert.Equal(t, []SourceRef{{Name: "spikes"}}, defs[2].Sources)
	})

	errorCases := []struct {
		name string
		src  string
	}{
		{"missing parenthesis", "a = b(c"},
		{"positional after keyword", "a = b(x=1, c)"},
		{"duplicate keyword", "a = b(x=1, x=2)"},
		{"missing type", "a = (c)"},
		{"bad value", "a = b(x=foo)"},
		{"trailing tokens", "a = b() c"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, mserrors.ErrDefinition)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("[1, 2.5, \"a\"]")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), 2.5, "a"}, v)

	_, err = ParseValue("1 2")
	assert.Error(t, err)
}

// counting is a source producing n sampled chunks on channel "ch".
type counting struct {
	component.Base
	n, i int
}

func (s *counting) Next(ctx context.Context) (*chunk.Chunk, error) {
	if s.i >= s.n {
		return nil, io.EOF
	}
	c := chunk.NewSampled("ch", big.NewRat(int64(s.i), 1), 1, []float64{float64(s.i)})
	s.i++
	return c, s.Emit(ctx, c)
}

// collector records chunks and can fail on a given sample value.
type collector struct {
	component.Base
	got    []*chunk.Chunk
	failAt float64
	closes int
	thrown error
}

func (c *collector) Send(ctx context.Context, ch *chunk.Chunk) error {
	if c.Closed() {
		return mserrors.ErrClosed
	}
	if c.failAt > 0 && ch.Kind == chunk.Sampled && ch.Samples[0] == c.failAt {
		return errors.New("rejected")
	}
	c.got = append(c.got, ch)
	return c.Emit(ctx, ch)
}

func (c *collector) Close(ctx context.Context) error {
	c.closes++
	return c.Base.Close(ctx)
}

func (c *collector) Throw(ctx context.Context, err error) {
	c.thrown = err
	c.Base.Throw(ctx, err)
}

// buffer holds every chunk back and emits them all when closed.
type buffer struct {
	component.Base
	held []*chunk.Chunk
}

func (b *buffer) Send(_ context.Context, c *chunk.Chunk) error {
	b.held = append(b.held, c)
	return nil
}

func (b *buffer) Close(ctx context.Context) error {
	for _, c := range b.held {
		if err := b.Emit(ctx, c); err != nil {
			return err
		}
	}
	b.held = nil
	return b.Base.Close(ctx)
}

type testParams struct {
	N      int     `json:"n"`
	FailAt float64 `json:"fail_at"`
}

func testRegistry(t *testing.T) *component.Registry {
	t.Helper()
	r := component.NewRegistry()
	require.NoError(t, r.RegisterWithConfig(component.RegistrationConfig{
		Name: "counting",
		Type: component.TypeSource,
		Factory: func(name string, raw json.RawMessage, deps component.Dependencies) (component.Component, error) {
			var p testParams
			if err := component.SafeUnmarshal(raw, &p); err != nil {
				return nil, err
			}
			return &counting{Base: component.NewBase(name, deps), n: p.N}, nil
		},
	}))
	require.NoError(t, r.RegisterWithConfig(component.RegistrationConfig{
		Name: "collector",
		Type: component.TypeSink,
		Factory: func(name string, raw json.RawMessage, deps component.Dependencies) (component.Component, error) {
			var p testParams
			if err := component.SafeUnmarshal(raw, &p); err != nil {
				return nil, err
			}
			return &collector{Base: component.NewBase(name, deps), failAt: p.FailAt}, nil
		},
	}))
	require.NoError(t, r.RegisterWithConfig(component.RegistrationConfig{
		Name: "buffer",
		Type: component.TypeProcessor,
		Factory: func(name string, _ json.RawMessage, deps component.Dependencies) (component.Component, error) {
			return &buffer{Base: component.NewBase(name, deps)}, nil
		},
	}))
	return r
}

func build(t *testing.T, src string) (*Graph, error) {
	t.Helper()
	defs, err := Parse(src)
	require.NoError(t, err)
	return Build(defs, testRegistry(t), component.Dependencies{})
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		is   error
	}{
		{"duplicate name", "a = counting(n=1); a = collector(a)", mserrors.ErrDefinition},
		{"unknown source", "a = collector(b)", mserrors.ErrDefinition},
		{"self reference", "a = counting(n=1); b = collector(a, b)", mserrors.ErrDefinition},
		{"cycle", "a = counting(n=1); b = collector(a, c); c = collector(b)", mserrors.ErrDefinition},
		{"unknown filter", "a = counting(n=1); b = collector((a, bogus))", mserrors.ErrDefinition},
		{"unknown type", "a = counting(n=1); b = nothing(a)", mserrors.ErrUnknownType},
		{"no source", "a = collector()", mserrors.ErrDefinition},
		{"bad param", "a = counting(n=1, m=2)", mserrors.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, tt.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
			assert.True(t, mserrors.IsFatal(err))
		})
	}
}

func TestRun(t *testing.T) {
	t.Run("fan out with filters", func(t *testing.T) {
		g, err := build(t, `
src = counting(n=3)
all = collector(src)
events = collector((src, events))
`)
		require.NoError(t, err)
		require.NoError(t, g.Run(context.Background()))

		all, _ := g.Node("all")
		events, _ := g.Node("events")
		assert.Len(t, all.(*collector).got, 3)
		assert.Empty(t, events.(*collector).got)
		assert.Equal(t, 1, all.(*collector).closes)
		assert.Equal(t, []string{"src"}, g.Roots())
		assert.Len(t, g.Edges(), 2)
	})

	t.Run("two roots share a sink", func(t *testing.T) {
		g, err := build(t, "a = counting(n=2); b = counting(n=1); sink = collector(a, b)")
		require.NoError(t, err)
		require.NoError(t, g.Run(context.Background()))
		sink, _ := g.Node("sink")
		assert.Len(t, sink.(*collector).got, 3)
		assert.Equal(t, 1, sink.(*collector).closes)
	})

	t.Run("sink declared before its upstream chain", func(t *testing.T) {
		g, err := build(t, `
sink = collector(src, held)
src = counting(n=3)
held = buffer(src)
`)
		require.NoError(t, err)
		require.NoError(t, g.Run(context.Background()))
		sink, _ := g.Node("sink")
		assert.Len(t, sink.(*collector).got, 6)
		assert.Equal(t, 1, sink.(*collector).closes)
	})

	t.Run("same source twice", func(t *testing.T) {
		g, err := build(t, "src = counting(n=2); sink = collector(src, (src, samples))")
		require.NoError(t, err)
		require.NoError(t, g.Run(context.Background()))
		sink, _ := g.Node("sink")
		assert.Len(t, sink.(*collector).got, 4)
		assert.Equal(t, 1, sink.(*collector).closes)
	})

	t.Run("error names the chunk", func(t *testing.T) {
		g, err := build(t, "src = counting(n=5); sink = collector(src, fail_at=2)")
		require.NoError(t, err)
		err = g.Run(context.Background())
		require.Error(t, err)

		var ce *mserrors.ChunkError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "ch", ce.ID)
		assert.Equal(t, "2/1", ce.Offset)

		sink, _ := g.Node("sink")
		assert.Len(t, sink.(*collector).got, 2)
		assert.Error(t, sink.(*collector).thrown)
		assert.Equal(t, 1, sink.(*collector).closes)
	})

	t.Run("cancellation", func(t *testing.T) {
		g, err := build(t, "src = counting(n=5); sink = collector(src)")
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = g.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		sink, _ := g.Node("sink")
		assert.Empty(t, sink.(*collector).got)
		assert.Equal(t, 1, sink.(*collector).closes)
	})
}

func TestRun_Health(t *testing.T) {
	run := func(t *testing.T, ctx context.Context, src string) (*health.Monitor, error) {
		t.Helper()
		defs, err := Parse(src)
		require.NoError(t, err)
		monitor := health.NewMonitor()
		g, err := Build(defs, testRegistry(t), component.Dependencies{Health: monitor})
		require.NoError(t, err)
		return monitor, g.Run(ctx)
	}

	t.Run("finished", func(t *testing.T) {
		monitor, err := run(t, context.Background(), "src = counting(n=3); sink = collector(src)")
		require.NoError(t, err)
		src, ok := monitor.Get("src")
		require.True(t, ok)
		assert.Equal(t, int64(3), src.Chunks)
		assert.Equal(t, "exhausted", src.Message)
		assert.True(t, monitor.AggregateHealth("run").IsHealthy())
	})

	t.Run("failed", func(t *testing.T) {
		monitor, err := run(t, context.Background(), "src = counting(n=5); sink = collector(src, fail_at=2)")
		require.Error(t, err)
		src, _ := monitor.Get("src")
		assert.True(t, src.IsUnhealthy())
		pipeline, _ := monitor.Get(PipelineHealth)
		assert.True(t, pipeline.IsUnhealthy())
		assert.True(t, monitor.AggregateHealth("run").IsUnhealthy())
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		monitor, err := run(t, ctx, "src = counting(n=5); sink = collector(src)")
		require.Error(t, err)
		src, _ := monitor.Get("src")
		assert.True(t, src.IsDegraded())
		assert.Equal(t, "cancelled", src.Message)
	})
}

func TestAnalyzeConnectivity(t *testing.T) {
	g, err := build(t, "a = counting(n=1); b = collector(a); lonely = counting(n=1)")
	require.NoError(t, err)
	result := g.AnalyzeConnectivity()
	assert.Equal(t, "warnings", result.ValidationStatus)
	assert.Equal(t, []string{"lonely"}, result.DisconnectedNodes)
	assert.Len(t, result.ConnectedComponents, 2)
}
