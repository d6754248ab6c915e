package propagation

import (
	"time"

	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// Model produces ECI positions (km) for one satellite.
type Model interface {
	ECI(t time.Time) (transform.Vector, error)
}

// ModelFactory builds a Model from an element set.
type ModelFactory func(tle.TLE) (Model, error)

// KeplerModel is the default ModelFactory.
func KeplerModel(t tle.TLE) (Model, error) {
	return NewKepler(t), nil
}

// SGP4Model is a ModelFactory for the reference SGP4 propagator.
func SGP4Model(t tle.TLE) (Model, error) {
	return NewSGP4(t)
}

// Position is either a Geocentric or a Topocentric result.
type Position interface {
	position()
}

// Geocentric is a position computed without an observer.
type Geocentric struct {
	Time     time.Time          `json:"time"`
	ECI      transform.Vector   `json:"eci_km"`
	Geodetic transform.Geodetic `json:"geodetic"`
}

// Topocentric adds the look angles from a specific observer.
type Topocentric struct {
	Geocentric
	Observer transform.Observer   `json:"-"`
	Look     transform.LookAngles `json:"look"`
}

func (Geocentric) position()  {}
func (Topocentric) position() {}

// SatellitePosition is one entry of a batch propagation.
type SatellitePosition struct {
	NORADID  int      `json:"norad_id"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
}

// Snapshot holds the positions of a whole catalog at a single time.
type Snapshot struct {
	Timestamp  time.Time           `json:"timestamp"`
	Satellites []SatellitePosition `json:"satellites"`
	Errors     int                 `json:"errors"`
}

// PropConfig holds propagation settings.
type PropConfig struct {
	Workers int          // worker pool size
	Model   ModelFactory // nil means KeplerModel
}
