package passes

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/star/skypass/internal/metrics"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude_km"`
	Elevation float64   `json:"elevation"` // degrees above observer's horizon
}

// PassEvent is a Pass with its ground track.
type PassEvent struct {
	Pass
	DurationSeconds float64            `json:"duration_seconds"`
	GroundTrack     []GroundTrackPoint `json:"ground_track,omitempty"`
}

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	NORADID int         `json:"norad_id"`
	Name    string      `json:"name"`
	Passes  []PassEvent `json:"passes"`
	Error   string      `json:"error,omitempty"`
}

// Request holds the parameters for a pass prediction request.
type Request struct {
	Observer        transform.Observer
	Entries         []tle.TLE
	Start           time.Time
	Options         Options
	MaxPasses       int
	GroundTrackStep time.Duration            // 0 disables ground tracks
	Model           propagation.ModelFactory // nil means propagation.KeplerModel
}

// Predict computes up to req.MaxPasses passes for every entry.
// Each satellite is processed in its own goroutine, bounded by a semaphore.
// Cancelling ctx stops all searches; satellites cut short report the passes
// found so far.
func Predict(ctx context.Context, req Request) []SatellitePasses {
	if req.Model == nil {
		req.Model = propagation.KeplerModel
	}
	if req.MaxPasses < 1 {
		req.MaxPasses = 1
	}
	if !(req.Options.MaxHours > 0) {
		req.Options.MaxHours = DefaultOptions().MaxHours
	}

	results := make([]SatellitePasses, len(req.Entries))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, entry := range req.Entries {
		wg.Add(1)
		go func(idx int, e tle.TLE) {
			defer wg.Done()
			results[idx] = SatellitePasses{NORADID: e.CatalogNumber, Name: e.Name}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx].Error = "cancelled"
				return
			}

			passes, err := predictSatellite(ctx, req, e)
			results[idx].Passes = passes
			if err != nil {
				results[idx].Error = err.Error()
			}
		}(i, entry)
	}

	wg.Wait()
	return results
}

// predictSatellite finds consecutive passes for a single satellite.
func predictSatellite(ctx context.Context, req Request, entry tle.TLE) ([]PassEvent, error) {
	model, err := req.Model(entry)
	if err != nil {
		return nil, fmt.Errorf("model init: %w", err)
	}

	cancelled := func() bool { return ctx.Err() != nil }
	end := req.Start.Add(time.Duration(req.Options.MaxHours * float64(time.Hour)))

	var passes []PassEvent
	start := req.Start
	for len(passes) < req.MaxPasses && start.Before(end) {
		opts := req.Options
		opts.MaxHours = end.Sub(start).Hours()

		began := time.Now()
		p, ok := FindNextPassWith(model, req.Observer, start, opts, cancelled)
		outcome := metrics.SearchOutcome(ok, cancelled)
		metrics.RecordPassSearch(time.Since(began), outcome)

		if outcome == metrics.OutcomeCancelled {
			return passes, ctx.Err()
		}
		if !ok {
			break
		}

		passes = append(passes, PassEvent{
			Pass:            p,
			DurationSeconds: p.Duration().Seconds(),
			GroundTrack:     GroundTrack(model, req.Observer, p, req.GroundTrackStep),
		})
		start = p.Set.Add(time.Second)
	}

	return passes, nil
}

// GroundTrack samples the sub-satellite point every step from rise to set.
// It returns nil when step is not positive.
func GroundTrack(m propagation.Model, obs transform.Observer, p Pass, step time.Duration) []GroundTrackPoint {
	if step <= 0 {
		return nil
	}

	var track []GroundTrackPoint
	for t := p.Rise; !t.After(p.Set); t = t.Add(step) {
		eci, err := m.ECI(t)
		if err != nil {
			continue
		}
		geo := transform.ECIToGeodetic(eci, t)
		track = append(track, GroundTrackPoint{
			Time:      t,
			Latitude:  geo.LatDeg,
			Longitude: geo.LonDeg,
			Altitude:  geo.AltKm,
			Elevation: transform.ECIToTopocentric(eci, obs, t).ElevationDeg,
		})
	}
	return track
}
