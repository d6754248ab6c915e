package propagation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// SGP4 wraps the go-satellite SGP4 implementation for one satellite. It is
// used as a reference model to measure the drift of Kepler.
//
// satellite.Propagate takes the Satellite by value so SGP4 error codes are
// not visible; failures are detected from the output instead.
type SGP4 struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4 initializes SGP4 for t.
//
// go-satellite calls log.Fatal on fields it cannot parse, so every field it
// reads is validated here first.
func NewSGP4(t tle.TLE) (*SGP4, error) {
	line1, line2, err := sgp4Lines(t)
	if err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", t.CatalogNumber, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", t.CatalogNumber, sat.Error, sat.ErrorStr)
	}
	return &SGP4{sat: sat, noradID: t.CatalogNumber}, nil
}

// sgp4Lines returns the 69-column lines of t once they are known to parse
// under go-satellite's stricter field rules.
func sgp4Lines(t tle.TLE) (string, string, error) {
	line1, line2 := t.Line1(), t.Line2()
	if len(line1) < tle.MinLineLength || len(line2) < tle.MinLineLength {
		return "", "", fmt.Errorf("element lines shorter than %d columns", tle.MinLineLength)
	}
	if d := t.Defaulted(); len(d) > 0 {
		return "", "", fmt.Errorf("unparseable fields: %s", strings.Join(d, ", "))
	}
	line1, line2 = line1[:tle.MinLineLength], line2[:tle.MinLineLength]

	fields := map[string]string{
		"epoch_year": line1[18:20],
		"ndot":       strings.Replace(line1[33:43], " ", "", 2),
		"nddot":      strings.Replace(line1[44:45]+"."+line1[45:50]+"e"+line1[50:52], " ", "", 2),
		"bstar":      strings.Replace(line1[53:54]+"."+line1[54:59]+"e"+line1[59:61], " ", "", 2),
	}
	for name, s := range fields {
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", "", fmt.Errorf("field %s %q: %w", name, s, err)
		}
	}
	return line1, line2, nil
}

// ECI implements Model. Positions are TEME, which agrees with the
// GMST-rotated frame used by transform to well within Kepler's own error.
// Times are truncated to whole seconds.
func (p *SGP4) ECI(t time.Time) (transform.Vector, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	v := transform.Vector{X: pos.X, Y: pos.Y, Z: pos.Z}
	if !v.Valid() {
		return transform.Vector{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: implausible position %.1f km", p.noradID, v.Norm())
	}
	return v, nil
}
