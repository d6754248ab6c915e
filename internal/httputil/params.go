package httputil

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"
)

// FloatParam reads a finite float query parameter in [min, max]. It returns def
// when the parameter is absent.
func FloatParam(q url.Values, name string, def, min, max float64) (float64, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a finite number", name)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be between %g and %g", name, min, max)
	}
	return v, nil
}

// IntParam reads an integer query parameter in [min, max]. It returns def
// when the parameter is absent.
func IntParam(q url.Values, name string, def, min, max int) (int, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return v, nil
}

// TimeParam reads an RFC 3339 time query parameter, returning def when absent.
func TimeParam(q url.Values, name string, def time.Time) (time.Time, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 time", name)
	}
	return t.UTC(), nil
}

// ObserverParams reads lat and lon. ok is false when neither is given; giving
// only one of them is an error.
func ObserverParams(q url.Values) (lat, lon float64, ok bool, err error) {
	hasLat, hasLon := q.Has("lat"), q.Has("lon")
	if !hasLat && !hasLon {
		return 0, 0, false, nil
	}
	if hasLat != hasLon {
		return 0, 0, false, fmt.Errorf("lat and lon must be given together")
	}
	if lat, err = FloatParam(q, "lat", 0, -90, 90); err != nil {
		return 0, 0, false, err
	}
	if lon, err = FloatParam(q, "lon", 0, -180, 180); err != nil {
		return 0, 0, false, err
	}
	return lat, lon, true, nil
}
