// Package passes predicts when satellites rise above and set below an
// observer's horizon.
package passes

import (
	"time"

	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// Search resolution. The worst-case cost of a search is fixed by these and
// Options.MaxHours.
const (
	CoarseStep        = time.Minute
	BisectIterations  = 20
	TernaryIterations = 20
)

// belowHorizon stands in for the elevation when the model fails.
const belowHorizon = -90.0

// Pass is one contiguous interval with the satellite above the horizon.
type Pass struct {
	Rise         time.Time `json:"rise"`
	Peak         time.Time `json:"peak"`
	Set          time.Time `json:"set"`
	MaxElevation float64   `json:"max_elevation"`
	RiseAzimuth  float64   `json:"rise_azimuth"`
	SetAzimuth   float64   `json:"set_azimuth"`
}

// Duration returns the time from rise to set.
func (p Pass) Duration() time.Duration {
	return p.Set.Sub(p.Rise)
}

// Options bound a pass search.
type Options struct {
	MinElevation float64 // degrees; passes peaking lower are skipped
	MaxHours     float64 // scan window after start; zero or negative means the default
}

// DefaultOptions returns a 10 degree minimum peak over a 48 hour window.
func DefaultOptions() Options {
	return Options{MinElevation: 10, MaxHours: 48}
}

// FindNextPass returns the first pass of t over the observer at
// (obsLat, obsLon) starting at or after start whose peak reaches
// opts.MinElevation. A pass already in progress at start is returned with
// its true rise time.
//
// cancelled is polled once per coarse step; a nil cancelled never cancels.
// The second result is false when no pass was found or the search was
// cancelled.
func FindNextPass(t tle.TLE, obsLat, obsLon float64, start time.Time, opts Options, cancelled func() bool) (Pass, bool) {
	return FindNextPassWith(propagation.NewKepler(t), transform.NewObserver(obsLat, obsLon), start, opts, cancelled)
}

// FindNextPassWith is FindNextPass over any propagation model.
func FindNextPassWith(m propagation.Model, obs transform.Observer, start time.Time, opts Options, cancelled func() bool) (Pass, bool) {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	s := &search{model: m, obs: obs}
	if !(opts.MaxHours > 0) {
		opts.MaxHours = DefaultOptions().MaxHours
	}
	maxSteps := int(opts.MaxHours * 60)

	// Walk back to the last below-horizon sample if a pass is in progress.
	t := start
	el := s.elevation(t)
	for i := 0; el > 0 && i < maxSteps; i++ {
		if cancelled() {
			return Pass{}, false
		}
		t = t.Add(-CoarseStep)
		el = s.elevation(t)
	}

	var (
		above  = el > 0
		rise   = t
		peak   = t
		peakEl = el
	)

	prevT, prevEl := t, el
	for i := 0; i < maxSteps; i++ {
		if cancelled() {
			return Pass{}, false
		}

		cur := prevT.Add(CoarseStep)
		curEl := s.elevation(cur)

		switch {
		case !above && curEl > 0:
			above = true
			rise = s.crossing(prevT, cur, prevEl)
			peak, peakEl = cur, curEl

		case above && curEl > 0:
			if curEl > peakEl {
				peak, peakEl = cur, curEl
			}

		case above:
			above = false
			set := s.crossing(prevT, cur, prevEl)
			if rp, rel := s.peak(rise, set); rel > peakEl {
				peak, peakEl = rp, rel
			}
			if peakEl >= opts.MinElevation {
				return Pass{
					Rise:         rise,
					Peak:         peak,
					Set:          set,
					MaxElevation: peakEl,
					RiseAzimuth:  s.look(rise).AzimuthDeg,
					SetAzimuth:   s.look(set).AzimuthDeg,
				}, true
			}
		}

		prevT, prevEl = cur, curEl
	}

	return Pass{}, false
}

type search struct {
	model propagation.Model
	obs   transform.Observer
}

func (s *search) look(t time.Time) transform.LookAngles {
	eci, err := s.model.ECI(t)
	if err != nil {
		return transform.LookAngles{ElevationDeg: belowHorizon}
	}
	return transform.ECIToTopocentric(eci, s.obs, t)
}

func (s *search) elevation(t time.Time) float64 {
	return s.look(t).ElevationDeg
}

// crossing bisects [lo, hi] for the horizon crossing. loEl is the
// elevation at lo; hi is on the other side of the horizon.
func (s *search) crossing(lo, hi time.Time, loEl float64) time.Time {
	loAbove := loEl > 0
	for i := 0; i < BisectIterations; i++ {
		mid := lo.Add(hi.Sub(lo) / 2)
		if (s.elevation(mid) > 0) == loAbove {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo.Add(hi.Sub(lo) / 2)
}

// peak narrows [lo, hi] to the time of maximum elevation by discarding the
// lower third each iteration.
func (s *search) peak(lo, hi time.Time) (time.Time, float64) {
	for i := 0; i < TernaryIterations; i++ {
		third := hi.Sub(lo) / 3
		m1, m2 := lo.Add(third), hi.Add(-third)
		if s.elevation(m1) < s.elevation(m2) {
			lo = m1
		} else {
			hi = m2
		}
	}
	t := lo.Add(hi.Sub(lo) / 2)
	return t, s.elevation(t)
}
