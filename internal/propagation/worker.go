package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	entry tle.TLE
	model Model // may be nil; built from the factory then
}

// propagateResult is the output of a single satellite propagation.
type propagateResult struct {
	position SatellitePosition
	err      error
	noradID  int
}

// WorkerPool manages a fixed number of goroutines for parallel propagation.
type WorkerPool struct {
	workers  int
	newModel ModelFactory
	logger   *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
// A nil factory uses KeplerModel.
func NewWorkerPool(workers int, factory ModelFactory, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if factory == nil {
		factory = KeplerModel
	}
	return &WorkerPool{
		workers:  workers,
		newModel: factory,
		logger:   logger,
	}
}

// PropagateBatch propagates all satellites to the target time. Positions
// are Topocentric when obs is non-nil and Geocentric otherwise. Failed
// satellites are logged and skipped; the counts of successes and failures
// are returned alongside.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, entries []tle.TLE, targetTime time.Time, obs *transform.Observer) ([]SatellitePosition, int, int) {
	return wp.propagate(ctx, entries, nil, targetTime, obs)
}

func (wp *WorkerPool) propagate(ctx context.Context, entries []tle.TLE, models map[int]Model, targetTime time.Time, obs *transform.Observer) ([]SatellitePosition, int, int) {
	if len(entries) == 0 {
		return nil, 0, 0
	}

	jobs := make(chan propagateJob, wp.workers*2)
	results := make(chan propagateResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := wp.propagateSingle(job, targetTime, obs)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, entry := range entries {
			select {
			case jobs <- propagateJob{entry: entry, model: models[entry.CatalogNumber]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	positions := make([]SatellitePosition, 0, len(entries))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			wp.logger.Warn("propagation failed",
				"norad_id", result.noradID,
				"error", result.err,
			)
			continue
		}
		successCount++
		positions = append(positions, result.position)
	}

	return positions, successCount, errorCount
}

func (wp *WorkerPool) propagateSingle(job propagateJob, t time.Time, obs *transform.Observer) propagateResult {
	id := job.entry.CatalogNumber
	model := job.model
	if model == nil {
		m, err := wp.newModel(job.entry)
		if err != nil {
			return propagateResult{noradID: id, err: err}
		}
		model = m
	}

	eci, err := model.ECI(t)
	if err != nil {
		return propagateResult{noradID: id, err: err}
	}

	return propagateResult{
		noradID: id,
		position: SatellitePosition{
			NORADID:  id,
			Name:     job.entry.Name,
			Position: positionFor(eci, t, obs),
		},
	}
}
