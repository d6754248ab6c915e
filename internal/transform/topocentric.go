package transform

import (
	"math"
	"time"
)

// Observer is a ground observer on the WGS-84 ellipsoid at sea level.
// The Earth-fixed position is precomputed once so it can be reused across
// many satellite lookups.
type Observer struct {
	LatDeg, LonDeg float64
	ecef           Vector
}

// LookAngles holds azimuth, elevation, and range from observer to satellite.
type LookAngles struct {
	AzimuthDeg   float64 `json:"azimuth"`   // 0 = North, clockwise, [0, 360)
	ElevationDeg float64 `json:"elevation"` // 0 = horizon, 90 = zenith
	RangeKm      float64 `json:"range_km"`
}

// NewObserver creates an Observer from geodetic latitude and longitude in degrees.
func NewObserver(latDeg, lonDeg float64) Observer {
	return Observer{
		LatDeg: latDeg,
		LonDeg: lonDeg,
		ecef:   GeodeticToECEF(Geodetic{LatDeg: latDeg, LonDeg: lonDeg}),
	}
}

// ECEF returns the observer's Earth-fixed position in kilometers.
func (o Observer) ECEF() Vector {
	return o.ecef
}

// ECIToTopocentric computes azimuth, elevation and range from obs to a
// satellite at ECI position eci (km) at time t.
//
// The observer is rotated into ECI by GMST and the range vector is rotated
// into SEZ (South-East-Zenith) using the local sidereal time, per Vallado 4.4.
func ECIToTopocentric(eci Vector, obs Observer, t time.Time) LookAngles {
	gmst := GMST(t)
	rho := eci.Sub(rotateZ(obs.ecef, gmst))

	lst := gmst + obs.LonDeg*deg2rad
	sinLat, cosLat := math.Sincos(obs.LatDeg * deg2rad)
	sinLst, cosLst := math.Sincos(lst)

	south := sinLat*cosLst*rho.X + sinLat*sinLst*rho.Y - cosLat*rho.Z
	east := -sinLst*rho.X + cosLst*rho.Y
	zenith := cosLat*cosLst*rho.X + cosLat*sinLst*rho.Y + sinLat*rho.Z

	rangeKm := math.Sqrt(south*south + east*east + zenith*zenith)

	// In SEZ, North = -South, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += twoPi
	}
	azDeg := az * rad2deg
	if azDeg >= 360.0 {
		azDeg -= 360.0
	}

	// Clamp guards asin against rounding directly overhead.
	sinEl := math.Max(-1, math.Min(1, zenith/rangeKm))

	return LookAngles{
		AzimuthDeg:   azDeg,
		ElevationDeg: math.Asin(sinEl) * rad2deg,
		RangeKm:      rangeKm,
	}
}
