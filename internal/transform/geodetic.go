package transform

import (
	"math"
	"time"
)

// Solver limits for the iterative geodetic latitude.
const (
	GeodeticMaxIterations = 10
	GeodeticTolerance     = 1e-12 // radians

	// PolarCosThreshold switches the altitude formula to the z-axis form
	// when |cos(lat)| falls below it.
	PolarCosThreshold = 1e-8
)

// Geodetic holds a WGS-84 geodetic position. Angles are in degrees,
// altitude in kilometers above the ellipsoid.
type Geodetic struct {
	LatDeg float64 `json:"latitude"`
	LonDeg float64 `json:"longitude"`
	AltKm  float64 `json:"altitude_km"`
}

// primeVertical is the radius of curvature in the prime vertical at sin(lat).
func primeVertical(sinLat float64) float64 {
	return EarthRadiusKm / math.Sqrt(1-E2*sinLat*sinLat)
}

// ECEFToGeodetic converts an Earth-fixed position (km) to geodetic coordinates.
// Latitude is found by fixed-point iteration, capped at GeodeticMaxIterations;
// the last iterate is used when the cap is reached.
func ECEFToGeodetic(ecef Vector) Geodetic {
	lon := math.Atan2(ecef.Y, ecef.X)
	p := math.Hypot(ecef.X, ecef.Y)

	lat := math.Atan2(ecef.Z, p*(1-E2))
	for i := 0; i < GeodeticMaxIterations; i++ {
		next := math.Atan2(ecef.Z+E2*primeVertical(math.Sin(lat))*math.Sin(lat), p)
		delta := math.Abs(next - lat)
		lat = next
		if delta < GeodeticTolerance {
			break
		}
	}

	sinLat, cosLat := math.Sincos(lat)
	n := primeVertical(sinLat)

	var alt float64
	if math.Abs(cosLat) >= PolarCosThreshold {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(ecef.Z)/math.Abs(sinLat) - n*(1-E2)
	}

	return Geodetic{
		LatDeg: lat * rad2deg,
		LonDeg: lon * rad2deg,
		AltKm:  alt,
	}
}

// GeodeticToECEF converts geodetic coordinates to an Earth-fixed position (km).
func GeodeticToECEF(g Geodetic) Vector {
	sinLat, cosLat := math.Sincos(g.LatDeg * deg2rad)
	sinLon, cosLon := math.Sincos(g.LonDeg * deg2rad)
	n := primeVertical(sinLat)

	return Vector{
		X: (n + g.AltKm) * cosLat * cosLon,
		Y: (n + g.AltKm) * cosLat * sinLon,
		Z: (n*(1-E2) + g.AltKm) * sinLat,
	}
}

// ECIToGeodetic converts an ECI position (km) at time t to geodetic coordinates.
func ECIToGeodetic(eci Vector, t time.Time) Geodetic {
	return ECEFToGeodetic(ECIToECEF(eci, t))
}

// GeodeticToECI is the inverse of ECIToGeodetic.
func GeodeticToECI(g Geodetic, t time.Time) Vector {
	return ECEFToECI(GeodeticToECEF(g), t)
}
