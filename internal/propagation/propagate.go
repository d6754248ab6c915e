package propagation

import (
	"time"

	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// Propagate computes the geocentric position of t at time at.
func Propagate(t tle.TLE, at time.Time) Geocentric {
	return geocentric(NewKepler(t).Position(at), at)
}

// Observe computes the position of t at time at as seen from obs.
func Observe(t tle.TLE, at time.Time, obs transform.Observer) Topocentric {
	return topocentric(NewKepler(t).Position(at), at, obs)
}

func geocentric(eci transform.Vector, at time.Time) Geocentric {
	return Geocentric{
		Time:     at,
		ECI:      eci,
		Geodetic: transform.ECIToGeodetic(eci, at),
	}
}

func topocentric(eci transform.Vector, at time.Time, obs transform.Observer) Topocentric {
	return Topocentric{
		Geocentric: geocentric(eci, at),
		Observer:   obs,
		Look:       transform.ECIToTopocentric(eci, obs, at),
	}
}

// positionFor builds the result variant matching whether obs is set.
func positionFor(eci transform.Vector, at time.Time, obs *transform.Observer) Position {
	if obs == nil {
		return geocentric(eci, at)
	}
	return topocentric(eci, at, *obs)
}

// PositionAt evaluates m at time at, returning a Topocentric result when
// obs is non-nil and a Geocentric one otherwise.
func PositionAt(m Model, at time.Time, obs *transform.Observer) (Position, error) {
	eci, err := m.ECI(at)
	if err != nil {
		return nil, err
	}
	return positionFor(eci, at, obs), nil
}
