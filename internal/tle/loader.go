package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/star/skypass/internal/metrics"
)

// Loader keeps the Store populated: from the disk cache at startup, then
// from the remote sources. A failed refresh never replaces the catalog
// already in the Store.
type Loader struct {
	store    *Store
	cache    *Cache
	fetchers []*Fetcher
	logger   *slog.Logger
	mu       sync.Mutex // serializes refreshes
}

// NewLoader creates a Loader. The first fetcher is the primary source; a
// refresh fails if it fails. Further fetchers are best-effort extras.
// cache may be nil.
func NewLoader(store *Store, cache *Cache, fetchers []*Fetcher, logger *slog.Logger) *Loader {
	return &Loader{
		store:    store,
		cache:    cache,
		fetchers: fetchers,
		logger:   logger,
	}
}

// LoadCache populates the Store from the newest cached catalog.
func (l *Loader) LoadCache() error {
	if l.cache == nil {
		return ErrNoCache
	}
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return err
	}
	entries, err := ParseCatalog(bytes.NewReader(data), l.logger)
	if err != nil {
		return fmt.Errorf("parsing cached catalog: %w", err)
	}

	c := NewCatalog("cache", ts, entries)
	l.store.Set(c)
	metrics.SetCatalogSize(len(entries))
	l.logger.Info("loaded TLE catalog from cache", "count", len(entries), "cached_at", ts.Format(time.RFC3339))
	return nil
}

// Refresh fetches every source, parses the combined text, writes it to the
// cache and swaps it into the Store.
func (l *Loader) Refresh(ctx context.Context) (*Catalog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.refresh(ctx)
	metrics.RecordCatalogRefresh(err == nil)
	if err != nil {
		l.logger.Warn("TLE refresh failed, keeping previous catalog", "error", err)
		return nil, err
	}
	return c, nil
}

func (l *Loader) refresh(ctx context.Context) (*Catalog, error) {
	if len(l.fetchers) == 0 {
		return nil, errors.New("no TLE sources configured")
	}

	var buf bytes.Buffer
	for i, f := range l.fetchers {
		data, err := f.Fetch(ctx)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			l.logger.Warn("extra TLE source failed", "source_url", f.SourceURL(), "error", err)
			continue
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	entries, err := ParseCatalog(bytes.NewReader(buf.Bytes()), l.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing fetched catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("fetched catalog is empty")
	}

	now := time.Now().UTC()
	if l.cache != nil {
		if err := l.cache.Write(buf.Bytes(), now); err != nil {
			l.logger.Warn("failed to write TLE cache", "error", err)
		}
	}

	c := NewCatalog(l.fetchers[0].SourceURL(), now, entries)
	l.store.Set(c)
	metrics.SetCatalogSize(len(entries))
	l.logger.Info("TLE catalog refreshed",
		"count", len(entries),
		"epoch_min", c.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", c.EpochRange.Max.Format(time.RFC3339),
	)
	return c, nil
}

// Run refreshes whenever the catalog is missing or older than maxAge,
// checking every interval, until ctx is done. It also keeps the catalog
// age gauge current.
func (l *Loader) Run(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		age := l.store.AgeSeconds()
		if age >= 0 {
			metrics.SetCatalogAge(age)
		}
		if age < 0 || age > maxAge.Seconds() {
			l.Refresh(ctx)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
