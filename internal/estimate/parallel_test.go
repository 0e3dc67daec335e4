package estimate

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/MeKo-Tech/packdim/internal/imageheader"
	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProgress struct {
	mu       sync.Mutex
	started  int
	progress []int
	errors   []int
	done     bool
}

func (r *recordingProgress) OnStart(total int) { r.started = total }

func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}

func (r *recordingProgress) OnComplete() { r.done = true }

func (r *recordingProgress) OnError(index int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, index)
}

func TestEstimateBatch(t *testing.T) {
	est := New(nil, DefaultOptions())
	inputs := []Input{
		{Name: "a.png", Data: labelPayload(100, 100, "\nW 10 mm")},
		{Name: "empty.png"},
		{Name: "c.png", Data: labelPayload(50, 100, "\nH 30 mm")},
	}
	progress := &recordingProgress{}
	var handled []int

	reports, err := est.EstimateBatch(context.Background(), inputs, ParallelConfig{
		MaxWorkers:       2,
		ProgressCallback: progress,
		ErrorHandler:     func(i int, _ Input, _ error) { handled = append(handled, i) },
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, imageheader.ErrEmptyInput)
	assert.Contains(t, err.Error(), "input 1 (empty.png)")

	require.Len(t, reports, 3)
	assert.Nil(t, reports[1])
	require.NotNil(t, reports[0])
	require.NotNil(t, reports[2])
	assert.Equal(t, "a.png", reports[0].Source)
	assert.Equal(t, "c.png", reports[2].Source)
	assert.InDelta(t, 10.0, reports[0].DimensionsMM()[mapper.Width], 1e-9)
	assert.InDelta(t, 30.0, reports[2].DimensionsMM()[mapper.Height], 1e-9)

	assert.Equal(t, 3, progress.started)
	assert.Equal(t, []int{1, 2, 3}, progress.progress)
	assert.Equal(t, []int{1}, progress.errors)
	assert.True(t, progress.done)
	assert.Equal(t, []int{1}, handled)
}

func TestEstimateBatch_NoInputs(t *testing.T) {
	_, err := New(nil, DefaultOptions()).EstimateBatch(context.Background(), nil, DefaultParallelConfig())
	assert.Error(t, err)
}

func TestEstimateBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := []Input{{Name: "a", Data: labelPayload(10, 10, "")}, {Name: "b", Data: labelPayload(10, 10, "")}}
	_, err := New(nil, DefaultOptions()).EstimateBatch(ctx, inputs, ParallelConfig{MaxWorkers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "estimate ")

	cb.OnStart(2)
	cb.OnProgress(1, 2)
	cb.OnError(1, assert.AnError)
	cb.OnProgress(2, 2)
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "estimate 0/2")
	assert.Contains(t, out, "] 2/2")
	assert.Contains(t, out, "Error at input 1")
	assert.Contains(t, out, "Completed in")
}
