package propagation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/skypass/internal/metrics"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// ErrNoCatalog is returned when the store holds no catalog yet.
var ErrNoCatalog = errors.New("no TLE catalog loaded")

// modelCache holds initialized models for one catalog. Immutable after
// construction; safe for concurrent reads.
type modelCache struct {
	models  map[int]Model
	catalog *tle.Catalog
}

// Propagator propagates the current catalog of a tle.Store.
type Propagator struct {
	store   *tle.Store
	pool    *WorkerPool
	config  PropConfig
	logger  *slog.Logger
	cache   atomic.Pointer[modelCache]
	cacheMu sync.Mutex // serializes cache rebuilds
}

// NewPropagator creates a Propagator over store.
func NewPropagator(store *tle.Store, config PropConfig, logger *slog.Logger) *Propagator {
	if config.Model == nil {
		config.Model = KeplerModel
	}
	return &Propagator{
		store:  store,
		pool:   NewWorkerPool(config.Workers, config.Model, logger),
		config: config,
		logger: logger,
	}
}

// Model returns the model for a satellite of the current catalog.
func (p *Propagator) Model(norad int) (tle.TLE, Model, error) {
	c := p.store.Get()
	if c == nil {
		return tle.TLE{}, nil, ErrNoCatalog
	}
	entry, ok := c.Lookup(norad)
	if !ok {
		return tle.TLE{}, nil, tle.ErrNotFound
	}
	if m, ok := p.cachedModels(c)[norad]; ok {
		return entry, m, nil
	}
	m, err := p.config.Model(entry)
	return entry, m, err
}

// cachedModels returns initialized models for c, rebuilding them when the
// catalog has been replaced (double-checked locking).
func (p *Propagator) cachedModels(c *tle.Catalog) map[int]Model {
	if mc := p.cache.Load(); mc != nil && mc.catalog == c {
		return mc.models
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	if mc := p.cache.Load(); mc != nil && mc.catalog == c {
		return mc.models
	}

	models := make(map[int]Model, len(c.Satellites))
	var skipped int
	for _, entry := range c.Satellites {
		if _, ok := models[entry.CatalogNumber]; ok {
			continue
		}
		m, err := p.config.Model(entry)
		if err != nil {
			p.logger.Warn("model init failed", "norad_id", entry.CatalogNumber, "error", err)
			skipped++
			continue
		}
		models[entry.CatalogNumber] = m
	}

	p.logger.Info("propagation model cache rebuilt",
		"cached", len(models),
		"skipped", skipped,
		"catalog_fetched_at", c.FetchedAt.UTC().Format(time.RFC3339),
	)
	p.cache.Store(&modelCache{models: models, catalog: c})
	return models
}

// PropagateToTime computes the positions of every satellite in the current
// catalog at targetTime, sorted by catalog number.
func (p *Propagator) PropagateToTime(ctx context.Context, targetTime time.Time, obs *transform.Observer) (*Snapshot, error) {
	c := p.store.Get()
	if c == nil {
		return nil, ErrNoCatalog
	}
	models := p.cachedModels(c)

	p.logger.Debug("propagating",
		"satellite_count", len(c.Satellites),
		"target_time", targetTime.UTC().Format(time.RFC3339),
		"workers", p.config.Workers,
	)

	start := time.Now()
	positions, successCount, errorCount := p.pool.propagate(ctx, c.Satellites, models, targetTime, obs)
	duration := time.Since(start)

	metrics.RecordPropagation(duration, successCount, errorCount)

	p.logger.Debug("propagation complete",
		"success", successCount,
		"errors", errorCount,
		"duration_ms", duration.Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(positions, func(a, b SatellitePosition) int {
		return a.NORADID - b.NORADID
	})
	return &Snapshot{
		Timestamp:  targetTime,
		Satellites: positions,
		Errors:     errorCount,
	}, nil
}
