package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/MeKo-Tech/packdim/internal/testutil"
	"github.com/MeKo-Tech/packdim/internal/tokens"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore()

	created := s.Create("sample.jpg", "image/jpeg", 11, "ref")
	_, err := uuid.Parse(created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, created.Status)

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "sample.jpg", got.Filename)
	assert.Equal(t, "image/jpeg", got.ContentType)
	assert.Equal(t, 11, got.Size)
	assert.Equal(t, "ref", got.FileRef)
	assert.False(t, got.CreatedAt.IsZero())
	assert.NotNil(t, got.Corrections)
	assert.Equal(t, 1, s.Len())
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore()

	_, err := s.Get("not-found-id")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update("not-found-id", func(*Job) {})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Start("not-found-id")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("not-found-id"), ErrNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	job := s.Create("a.png", "image/png", 1, "")

	_, err := s.AddCorrection(job.ID, Correction{Axis: mapper.Width, ValueMM: 10})
	require.NoError(t, err)

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	got.Corrections[0].ValueMM = 99
	got.Status = StatusFailed

	again, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, again.Corrections[0].ValueMM, 1e-9)
	assert.Equal(t, StatusUploaded, again.Status)
}

func TestStore_Lifecycle(t *testing.T) {
	s := fixedStore(t)
	job := s.Create("box.png", "image/png", 100, "")

	started, err := s.Start(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, started.Status)

	_, err = s.Start(job.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessing)

	rep, err := estimate.New(nil, estimate.DefaultOptions()).Estimate(context.Background(), testutil.ScenePNG(t), []tokens.Item{
		tokens.TextItem("W 10 mm", 0.9),
	})
	require.NoError(t, err)

	done, err := s.Complete(job.ID, rep)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.Image)
	require.NotNil(t, done.Mapping)
	assert.Equal(t, rep.Dimensions, done.Dimensions)
	assert.Equal(t, rep.Warnings, done.Warnings)
	assert.True(t, done.UpdatedAt.After(done.CreatedAt))

	rep.Mapping.MappedDimensionsMM[mapper.Width] = 1234
	stored, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, stored.Mapping.MappedDimensionsMM[mapper.Width], 1e-9)

	_, err = s.Start(job.ID)
	require.NoError(t, err)
	failed, err := s.Fail(job.ID, errors.New("estimate: preprocess: boom"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "estimate: preprocess: boom", failed.ErrorMessage)
}

func TestStore_AddCorrection(t *testing.T) {
	s := fixedStore(t)
	job := s.Create("box.png", "image/png", 100, "")

	first, err := s.AddCorrection(job.ID, Correction{Axis: mapper.Width, ValueMM: 12, Note: "caliper"})
	require.NoError(t, err)
	require.Len(t, first.Corrections, 1)
	assert.False(t, first.Corrections[0].CreatedAt.IsZero())

	second, err := s.AddCorrection(job.ID, Correction{Axis: mapper.Width, ValueMM: 13})
	require.NoError(t, err)
	require.Len(t, second.Corrections, 2)
	assert.Equal(t, "caliper", second.Corrections[0].Note)
	assert.True(t, second.Corrections[1].CreatedAt.After(second.Corrections[0].CreatedAt))

	assert.Equal(t, map[mapper.Axis]float64{mapper.Width: 13}, second.CorrectedDimensions())
}

func TestStore_AddCorrectionInvalid(t *testing.T) {
	s := NewStore()
	job := s.Create("box.png", "image/png", 100, "")

	tests := []Correction{
		{Axis: mapper.Width, ValueMM: -1},
		{Axis: mapper.Width, ValueMM: math.NaN()},
		{Axis: mapper.Width, ValueMM: math.Inf(1)},
		{Axis: mapper.Axis(7), ValueMM: 1},
	}
	for _, c := range tests {
		_, err := s.AddCorrection(job.ID, c)
		assert.ErrorIs(t, err, ErrInvalidCorrection)
	}

	_, err := s.AddCorrection("missing", Correction{Axis: mapper.Depth, ValueMM: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListOrder(t *testing.T) {
	s := fixedStore(t)
	a := s.Create("a.png", "image/png", 1, "")
	b := s.Create("b.png", "image/png", 1, "")
	c := s.Create("c.png", "image/png", 1, "")

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	require.NoError(t, s.Delete(b.ID))
	assert.Equal(t, 2, s.Len())
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	job := s.Create("box.png", "image/png", 1, "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.AddCorrection(job.ID, Correction{Axis: mapper.Depth, ValueMM: float64(i)})
			_ = s.Create(fmt.Sprintf("%d.png", i), "image/png", i, "")
			_, _ = s.Get(job.ID)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Len(t, got.Corrections, 50)
	assert.Equal(t, 51, s.Len())
}
