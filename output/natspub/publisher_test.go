package natspub

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math/big"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/metric"
	"github.com/c360/mspikes/testutil"
)

// streamConn adds stream support to the mock publisher.
type streamConn struct {
	*testutil.MockPublisher
	streams  map[string][]string
	streamed *testutil.MockPublisher
}

func newStreamConn() *streamConn {
	return &streamConn{
		MockPublisher: testutil.NewMockPublisher(),
		streams:       make(map[string][]string),
		streamed:      testutil.NewMockPublisher(),
	}
}

func (f *streamConn) EnsureStream(_ context.Context, name string, subjects ...string) (jetstream.Stream, error) {
	f.streams[name] = subjects
	return nil, nil
}

func (f *streamConn) PublishToStream(ctx context.Context, subject string, data []byte) error {
	return f.streamed.Publish(ctx, subject, data)
}

func newPublisher(t *testing.T, cfg Config, pub component.Publisher) *Publisher {
	t.Helper()
	deps := component.NewDependencies(nil, nil)
	deps.Publisher = pub
	p, err := NewPublisher(context.Background(), "pub", cfg, deps)
	require.NoError(t, err)
	return p
}

func TestSubject(t *testing.T) {
	tests := []struct {
		name string
		c    *chunk.Chunk
		want string
	}{
		{"sampled", chunk.NewSampled("pen", nil, 20000, []float64{1}), "mspikes.sampled.pen"},
		{"events", chunk.NewEvents("pen", nil, 20000, nil), "mspikes.events.pen"},
		{"dots replaced", chunk.NewScalar("pen.rms", nil, nil), "mspikes.scalar.pen_rms"},
		{"wildcards replaced", chunk.NewStructure("a*b >c", nil, 0, chunk.StructureInfo{}), "mspikes.structure.a_b__c"},
		{"empty id", chunk.NewScalar("", nil, nil), "mspikes.scalar._"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject("mspikes", tt.c))
		})
	}
}

func TestPublisher_Send(t *testing.T) {
	conn := testutil.NewMockPublisher()
	p := newPublisher(t, DefaultConfig(), conn)
	ctx := context.Background()

	c := chunk.NewSampled("pen", big.NewRat(3, 2), 20000, []float64{1, 2, 3})
	require.NoError(t, p.Send(ctx, c))
	require.NoError(t, p.Send(ctx, chunk.NewEvents("pen", big.NewRat(3, 2), 20000,
		[]chunk.Event{{Start: 10, Spike: []float64{1, 2}}})))

	assert.Equal(t, []string{"mspikes.sampled.pen", "mspikes.events.pen"}, conn.Subjects())

	sampled := conn.Messages("mspikes.sampled.pen")
	require.Len(t, sampled, 1)
	var got chunk.Chunk
	require.NoError(t, json.Unmarshal(sampled[0], &got))
	assert.Equal(t, "pen", got.ID)
	assert.Equal(t, 0, got.Offset.Cmp(big.NewRat(3, 2)))
	assert.Equal(t, []float64{1, 2, 3}, got.Samples)

	require.NoError(t, p.Close(ctx))
	assert.ErrorIs(t, p.Send(ctx, c), errors.ErrClosed)
}

func TestPublisher_PublishError(t *testing.T) {
	boom := stderrors.New("boom")
	conn := testutil.NewMockPublisher()
	conn.Err = boom
	p := newPublisher(t, DefaultConfig(), conn)

	err := p.Send(context.Background(), chunk.NewScalar("pen", nil, map[string]float64{"mean": 1}))
	assert.ErrorIs(t, err, boom)
}

func TestPublisher_Stream(t *testing.T) {
	conn := newStreamConn()
	cfg := DefaultConfig()
	cfg.Prefix = "lab"
	cfg.Stream = "LAB"
	p := newPublisher(t, cfg, conn)

	assert.Equal(t, []string{"lab.>"}, conn.streams["LAB"])
	require.NoError(t, p.Send(context.Background(), chunk.NewSampled("pen", nil, 100, []float64{1})))
	assert.Zero(t, conn.Count())
	assert.Equal(t, []string{"lab.sampled.pen"}, conn.streamed.Subjects())
}

func TestPublisher_Connection(t *testing.T) {
	t.Run("missing connection", func(t *testing.T) {
		_, err := NewPublisher(context.Background(), "pub", DefaultConfig(), component.NewDependencies(nil, nil))
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("stream needs stream support", func(t *testing.T) {
		deps := component.NewDependencies(nil, nil)
		deps.Publisher = testutil.NewMockPublisher()
		cfg := DefaultConfig()
		cfg.Stream = "LAB"
		_, err := NewPublisher(context.Background(), "pub", cfg, deps)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})
}

func TestPublisher_Rate(t *testing.T) {
	conn := testutil.NewMockPublisher()
	cfg := DefaultConfig()
	cfg.Rate = 1
	p := newPublisher(t, cfg, conn)

	c := chunk.NewScalar("pen", nil, map[string]float64{"rms": 1})
	require.NoError(t, p.Send(context.Background(), c), "first chunk uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Send(ctx, c)
	assert.True(t, errors.IsTransient(err), "second chunk cannot wait a full second")
	assert.Equal(t, 1, conn.Count())
}

func TestPublisher_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	deps := component.NewDependencies(nil, registry)
	deps.Publisher = testutil.NewMockPublisher()
	p, err := NewPublisher(context.Background(), "pub", DefaultConfig(), deps)
	require.NoError(t, err)

	require.NoError(t, p.Send(context.Background(), chunk.NewSampled("pen", nil, 100, []float64{1})))

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	var count float64
	for _, f := range families {
		if f.GetName() == "mspikes_nats_publisher_chunks_total" {
			count = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, count)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"defaults", `{}`, false},
		{"prefix and stream", `{"prefix":"lab.rig1","stream":"LAB"}`, false},
		{"empty prefix", `{"prefix":""}`, true},
		{"wildcard prefix", `{"prefix":"lab.>"}`, true},
		{"trailing dot", `{"prefix":"lab."}`, true},
		{"dotted stream", `{"stream":"a.b"}`, true},
		{"rate and burst", `{"rate":50,"burst":5}`, false},
		{"negative rate", `{"rate":-1}`, true},
		{"burst without rate", `{"burst":3}`, true},
		{"unknown key", `{"subject":"x"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := component.SafeUnmarshal(json.RawMessage(tt.raw), &cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}
