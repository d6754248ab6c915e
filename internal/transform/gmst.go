package transform

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// JulianDate converts a time.Time to a Julian Date. The time is treated as UTC.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST calculates Greenwich Mean Sidereal Time in radians, normalized to [0, 2π).
// Uses the IAU-82 model as described in Vallado "Fundamentals of Astrodynamics".
//
// Formula (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0, result is in seconds of time.
// UT1 is approximated by UTC.
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	// 876600h = 876600 * 3600 = 3155760000 seconds.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * twoPi
}

// rotateZ rotates v about the Z axis by angle (radians), counter-clockwise.
// rotateZ(v, θ) takes ECEF to ECI when θ is GMST; rotateZ(v, -θ) goes back.
func rotateZ(v Vector, angle float64) Vector {
	s, c := math.Sincos(angle)
	return Vector{
		X: v.X*c - v.Y*s,
		Y: v.X*s + v.Y*c,
		Z: v.Z,
	}
}

// ECIToECEF rotates an ECI position into the Earth-fixed frame at time t.
func ECIToECEF(eci Vector, t time.Time) Vector {
	return rotateZ(eci, -GMST(t))
}

// ECEFToECI rotates an Earth-fixed position into the inertial frame at time t.
func ECEFToECI(ecef Vector, t time.Time) Vector {
	return rotateZ(ecef, GMST(t))
}
