package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// addCatalogFlags registers the flags shared by the one-shot commands.
func addCatalogFlags(cmd *cobra.Command) {
	cmd.Flags().String("tle", "", "read element sets from this file instead of the cache")
	cmd.Flags().IntSlice("norad", nil, "NORAD catalog numbers to include (default: all)")
	cmd.Flags().Float64("lat", 0, "observer geodetic latitude in degrees (default from config)")
	cmd.Flags().Float64("lon", 0, "observer longitude in degrees, east positive (default from config)")
	cmd.Flags().String("at", "", "RFC 3339 time (default: now)")
}

// loadEntries returns the element sets selected by --tle and --norad.
// Without --tle the newest cached catalog is used, fetched first if there
// is none and fetching is enabled.
func loadEntries(ctx context.Context, cmd *cobra.Command) ([]tle.TLE, error) {
	path, _ := cmd.Flags().GetString("tle")
	norads, _ := cmd.Flags().GetIntSlice("norad")

	var entries []tle.TLE
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening TLE file: %w", err)
		}
		defer f.Close()
		entries, err = tle.ParseCatalog(f, logger)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else {
		store := tle.NewStore()
		loader := newLoader(store)
		if err := loader.LoadCache(); err != nil {
			if !cfg.TLE.EnableFetch {
				return nil, fmt.Errorf("no cached catalog in %s and fetching is disabled: %w", cfg.TLE.CacheDir, err)
			}
			ctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if _, err := loader.Refresh(ctx); err != nil {
				return nil, err
			}
		}
		entries = store.Get().Satellites
	}

	if len(norads) == 0 {
		return entries, nil
	}
	wanted := make(map[int]bool, len(norads))
	for _, n := range norads {
		wanted[n] = true
	}
	var selected []tle.TLE
	for _, e := range entries {
		if wanted[e.CatalogNumber] {
			selected = append(selected, e)
			delete(wanted, e.CatalogNumber)
		}
	}
	for n := range wanted {
		logger.Warn("satellite not in catalog", "norad_id", n)
	}
	if len(selected) == 0 {
		return nil, tle.ErrNotFound
	}
	return selected, nil
}

func newLoader(store *tle.Store) *tle.Loader {
	var fetchers []*tle.Fetcher
	for _, src := range cfg.Sources() {
		fetchers = append(fetchers, tle.NewFetcher(src, logger))
	}
	return tle.NewLoader(store, tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles), fetchers, logger)
}

// observerFlags returns the observer from --lat/--lon, falling back to the
// configured default for whichever is not set.
func observerFlags(cmd *cobra.Command) (transform.Observer, error) {
	lat, lon := cfg.Observer.Latitude, cfg.Observer.Longitude
	if cmd.Flags().Changed("lat") {
		lat, _ = cmd.Flags().GetFloat64("lat")
	}
	if cmd.Flags().Changed("lon") {
		lon, _ = cmd.Flags().GetFloat64("lon")
	}
	if !(lat >= -90 && lat <= 90) {
		return transform.Observer{}, fmt.Errorf("latitude %.4f out of range [-90, 90]", lat)
	}
	if !(lon >= -180 && lon <= 180) {
		return transform.Observer{}, fmt.Errorf("longitude %.4f out of range [-180, 180]", lon)
	}
	return transform.NewObserver(lat, lon), nil
}

func timeFlag(cmd *cobra.Command) (time.Time, error) {
	s, _ := cmd.Flags().GetString("at")
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("--at must be an RFC 3339 time, e.g. 2024-03-19T03:00:00Z")
	}
	return t.UTC(), nil
}
