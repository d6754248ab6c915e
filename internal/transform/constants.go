package transform

import "math"

// Physical constants shared by the transform and propagation layers.
// Distances are in kilometers.
const (
	// Mu is Earth's gravitational parameter (km³/s²).
	Mu = 398600.4418

	// EarthRadiusKm is the WGS-84 equatorial radius.
	EarthRadiusKm = 6378.137

	// Flattening is the WGS-84 ellipsoid flattening.
	Flattening = 1.0 / 298.257223563

	// E2 is the first eccentricity squared of the WGS-84 ellipsoid.
	E2 = Flattening * (2 - Flattening)

	// J2 is Earth's second zonal harmonic.
	J2 = 1.08262668e-3

	// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
	OmegaEarth = 7.292115146706979e-5
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
	twoPi   = 2.0 * math.Pi
)

// Vector is a Cartesian position in kilometers. The frame (ECI or ECEF) is
// given by the function that produced it.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Valid reports whether v is finite and at a plausible distance for an
// Earth-orbiting object (6200 km to 50000 km from the center).
func (v Vector) Valid() bool {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) {
		return false
	}
	if math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0) {
		return false
	}
	mag := v.Norm()
	return mag >= 6200.0 && mag <= 50000.0
}
