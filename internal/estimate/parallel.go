package estimate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/packdim/internal/tokens"
)

// Input is one unit of batch work.
type Input struct {
	Name  string
	Data  []byte
	Items []tokens.Item
}

// ParallelConfig holds configuration for batch estimation.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // Optional progress reporting
	ErrorHandler     func(int, Input, error)
}

// DefaultParallelConfig returns sensible defaults for batch estimation.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type batchJob struct {
	index int
	input Input
}

type batchResult struct {
	index  int
	report *Report
	err    error
}

// EstimateBatch estimates every input with a worker pool. Reports keep input
// order; a failed input leaves a nil entry and the first failure is returned
// after all inputs have been attempted.
func (e *Estimator) EstimateBatch(ctx context.Context, inputs []Input, config ParallelConfig) ([]*Report, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no inputs provided")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(inputs))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(inputs))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan batchJob, len(inputs))
	results := make(chan batchResult, len(inputs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go e.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, in := range inputs {
			select {
			case jobs <- batchJob{index: i, input: in}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*Report, len(inputs))
	errs := make([]error, len(inputs))
	processed := 0
	for res := range results {
		ordered[res.index] = res.report
		errs[res.index] = res.err
		processed++
		if res.err != nil && config.ProgressCallback != nil {
			config.ProgressCallback.OnError(res.index, res.err)
		}
		if config.ProgressCallback != nil {
			config.ProgressCallback.OnProgress(processed, len(inputs))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstError error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstError == nil {
			firstError = fmt.Errorf("input %d (%s): %w", i, inputs[i].Name, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, inputs[i], err)
		}
	}
	return ordered, firstError
}

func (e *Estimator) worker(ctx context.Context, jobs <-chan batchJob, results chan<- batchResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			rep, err := e.Estimate(ctx, job.input.Data, job.input.Items)
			if rep != nil {
				rep.Source = job.input.Name
			}
			select {
			case results <- batchResult{index: job.index, report: rep, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
