package propagation

import (
	"math"
	"time"

	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// Kepler equation solver limits.
const (
	KeplerMaxIterations = 10
	KeplerTolerance     = 1e-12 // radians
)

const (
	minutesPerDay = 1440.0
	twoPi         = 2 * math.Pi
	deg2rad       = math.Pi / 180.0
)

// SolveKepler returns the eccentric anomaly E satisfying M = E - e sin E by
// Newton-Raphson from E0 = M + e sin M. M is normalized to [0, 2π) first.
// The last iterate is returned if the tolerance is not met within
// KeplerMaxIterations.
func SolveKepler(meanAnomaly, ecc float64) float64 {
	m := math.Mod(meanAnomaly, twoPi)
	if m < 0 {
		m += twoPi
	}

	e := m + ecc*math.Sin(m)
	for i := 0; i < KeplerMaxIterations; i++ {
		sinE, cosE := math.Sincos(e)
		delta := (e - ecc*sinE - m) / (1 - ecc*cosE)
		e -= delta
		if math.Abs(delta) < KeplerTolerance {
			break
		}
	}
	return e
}

// Kepler is a two-body propagator with J2 secular drift of the node,
// argument of perigee and mean anomaly. Drag is ignored.
type Kepler struct {
	epoch time.Time
	ecc   float64
	incl  float64

	a        float64 // semi-major axis, km
	raan0    float64 // radians
	argp0    float64
	m0       float64
	raanRate float64 // radians per minute
	argpRate float64
	mRate    float64
}

// NewKepler precomputes the orbit geometry and secular rates for t.
func NewKepler(t tle.TLE) *Kepler {
	n := t.MeanMotion * twoPi / minutesPerDay // rad/min
	nSec := n / 60.0
	a := math.Cbrt(transform.Mu / (nSec * nSec))

	e := t.Eccentricity
	incl := t.Inclination * deg2rad
	sinI := math.Sin(incl)
	p := a * (1 - e*e)
	factor := 1.5 * transform.J2 * (transform.EarthRadiusKm / p) * (transform.EarthRadiusKm / p) * n

	return &Kepler{
		epoch:    t.Epoch,
		ecc:      e,
		incl:     incl,
		a:        a,
		raan0:    t.RAAN * deg2rad,
		argp0:    t.ArgOfPerigee * deg2rad,
		m0:       t.MeanAnomaly * deg2rad,
		raanRate: -factor * math.Cos(incl),
		argpRate: factor * (2 - 2.5*sinI*sinI),
		mRate:    n + factor*math.Sqrt(1-e*e)*(1-1.5*sinI*sinI),
	}
}

// SemiMajorAxis returns the semi-major axis in km.
func (k *Kepler) SemiMajorAxis() float64 {
	return k.a
}

// Position returns the ECI position (km) at t. Times before the epoch
// propagate backwards.
func (k *Kepler) Position(t time.Time) transform.Vector {
	tsince := t.Sub(k.epoch).Minutes()

	raan := k.raan0 + k.raanRate*tsince
	argp := k.argp0 + k.argpRate*tsince
	m := k.m0 + k.mRate*tsince

	ea := SolveKepler(m, k.ecc)
	sinHalf, cosHalf := math.Sincos(ea / 2)
	nu := 2 * math.Atan2(math.Sqrt(1+k.ecc)*sinHalf, math.Sqrt(1-k.ecc)*cosHalf)
	r := k.a * (1 - k.ecc*math.Cos(ea))

	sinNu, cosNu := math.Sincos(nu)
	pqw := transform.Vector{X: r * cosNu, Y: r * sinNu}
	return transform.Apply(transform.PerifocalToECI(raan, k.incl, argp), pqw)
}

// ECI implements Model. It never fails.
func (k *Kepler) ECI(t time.Time) (transform.Vector, error) {
	return k.Position(t), nil
}
