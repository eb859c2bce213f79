package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mspikes/chunk"
)

func TestCollector(t *testing.T) {
	ctx := context.Background()
	c := NewCollector()

	require.NoError(t, c.Send(ctx, chunk.NewSampled("a", nil, 10, []float64{1, 2})))
	require.NoError(t, c.Send(ctx, chunk.NewEvents("a", nil, 10, []chunk.Event{{Start: 1}})))
	require.NoError(t, c.Send(ctx, chunk.NewSampled("a", nil, 10, []float64{3})))
	require.NoError(t, c.Send(ctx, chunk.NewSampled("b", nil, 10, []float64{9})))

	assert.Len(t, c.Chunks(), 4)
	assert.Len(t, c.OfKind(chunk.Events), 1)
	assert.Equal(t, []float64{1, 2, 3}, c.Samples("a"))

	require.NoError(t, c.Close(ctx))
	c.Throw(ctx, assert.AnError)
	assert.Equal(t, 1, c.Closes())
	assert.Equal(t, assert.AnError, c.Thrown())

	c.SendErr = assert.AnError
	assert.Equal(t, assert.AnError, c.Send(ctx, chunk.NewSampled("a", nil, 10, nil)))

	c.Reset()
	assert.Empty(t, c.Chunks())
	assert.Zero(t, c.Closes())
	assert.NoError(t, c.Thrown())
}

func TestMockPublisher_Concurrent(t *testing.T) {
	p := NewMockPublisher()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Publish(context.Background(), fmt.Sprintf("s.%d", i%2), []byte{byte(i)})
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, p.Count())
	assert.Len(t, p.Messages("s.0"), 4)
	assert.Len(t, p.Subjects(), 8)

	p.Err = assert.AnError
	assert.Error(t, p.Publish(context.Background(), "s.0", nil))
	assert.Equal(t, 8, p.Count())
}

func TestSignals(t *testing.T) {
	assert.Equal(t, []float64{0, 1, 2}, Ramp(3))
	s := Sine(4, 1, 2, 4)
	assert.InDelta(t, 0, s[0], 1e-12)
	assert.InDelta(t, 2, s[1], 1e-12)
	g := Gaussian(5, 2, 1, 3)
	assert.Equal(t, 3.0, g[2])
	assert.Equal(t, g[1], g[3])
}
