// Package tle parses NORAD two-line element sets and manages the catalog of
// element sets used by the rest of skypass.
package tle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MinLineLength is the shortest element line accepted by Parse.
const MinLineLength = 69

var (
	// ErrMalformed is returned when an element line is too short or does not
	// carry the expected line number. No TLE is produced.
	ErrMalformed = errors.New("malformed TLE")

	// ErrPartial is matched by a *FieldError: the lines were structurally
	// valid but some numeric fields did not parse and were set to zero.
	ErrPartial = errors.New("partially parsed TLE")
)

// FieldError lists the numeric fields that defaulted to zero.
type FieldError struct {
	Name   string
	Fields []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("TLE %q: unparseable fields defaulted to 0: %s", e.Name, strings.Join(e.Fields, ", "))
}

// Is reports whether target is ErrPartial.
func (e *FieldError) Is(target error) bool {
	return target == ErrPartial
}

// TLE is an immutable orbital element set. Angles are in degrees, mean
// motion in revolutions per day.
type TLE struct {
	Name          string
	CatalogNumber int
	Epoch         time.Time
	Inclination   float64
	RAAN          float64
	Eccentricity  float64
	ArgOfPerigee  float64
	MeanAnomaly   float64
	MeanMotion    float64
	Bstar         float64

	line1, line2 string
	defaulted    []string
}

// Line1 returns the raw first element line.
func (t TLE) Line1() string { return t.line1 }

// Line2 returns the raw second element line.
func (t TLE) Line2() string { return t.line2 }

// Defaulted returns the names of numeric fields that failed to parse and
// were set to zero. Empty for a clean parse.
func (t TLE) Defaulted() []string {
	return append([]string(nil), t.defaulted...)
}

// Parse decodes a named element set from its two fixed-column lines.
//
// Lines shorter than MinLineLength or without the leading "1"/"2" yield
// ErrMalformed. Individual numeric fields that fail to parse are set to zero
// and reported by Defaulted; use ParseStrict to reject them.
func Parse(name, line1, line2 string) (TLE, error) {
	if len(line1) < MinLineLength || line1[0] != '1' {
		return TLE{}, fmt.Errorf("%w: line 1 of %q must start with '1' and be at least %d characters", ErrMalformed, name, MinLineLength)
	}
	if len(line2) < MinLineLength || line2[0] != '2' {
		return TLE{}, fmt.Errorf("%w: line 2 of %q must start with '2' and be at least %d characters", ErrMalformed, name, MinLineLength)
	}

	p := fieldParser{}
	t := TLE{
		Name:          strings.TrimSpace(name),
		CatalogNumber: p.int("catalog_number", line1[2:7]),
		Epoch:         p.epoch(line1[18:32]),
		Bstar:         p.exponent("bstar", line1[53:61]),
		Inclination:   p.float("inclination", line2[8:16]),
		RAAN:          p.float("raan", line2[17:25]),
		Eccentricity:  p.float("eccentricity", "0."+strings.TrimSpace(line2[26:33])),
		ArgOfPerigee:  p.float("arg_of_perigee", line2[34:42]),
		MeanAnomaly:   p.float("mean_anomaly", line2[43:51]),
		MeanMotion:    p.float("mean_motion", line2[52:63]),
		line1:         line1,
		line2:         line2,
		defaulted:     p.failed,
	}
	return t, nil
}

// ParseStrict is Parse, but any defaulted field is reported as a *FieldError.
// The returned TLE is still populated in that case.
func ParseStrict(name, line1, line2 string) (TLE, error) {
	t, err := Parse(name, line1, line2)
	if err != nil {
		return t, err
	}
	if len(t.defaulted) > 0 {
		return t, &FieldError{Name: t.Name, Fields: t.Defaulted()}
	}
	return t, nil
}

// fieldParser decodes fixed-column fields, recording the ones that fail.
type fieldParser struct {
	failed []string
}

func (p *fieldParser) fail(field string) {
	p.failed = append(p.failed, field)
}

func (p *fieldParser) float(field, s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		p.fail(field)
		return 0
	}
	return v
}

func (p *fieldParser) int(field, s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		p.fail(field)
		return 0
	}
	return v
}

// exponent decodes the assumed-decimal mini-format: optional sign, mantissa
// digits and a trailing signed exponent digit. "12345-4" is 0.12345e-4.
func (p *fieldParser) exponent(field, s string) float64 {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		p.fail(field)
		return 0
	}

	mantissa, exp := s[:len(s)-2], s[len(s)-2:]
	sign := 1.0
	switch mantissa[0] {
	case '-':
		sign = -1
		mantissa = mantissa[1:]
	case '+':
		mantissa = mantissa[1:]
	}
	mantissa = strings.TrimPrefix(mantissa, ".")

	m, err := strconv.ParseFloat("0."+mantissa, 64)
	if err != nil {
		p.fail(field)
		return 0
	}
	e, err := strconv.Atoi(strings.Replace(exp, " ", "+", 1))
	if err != nil {
		p.fail(field)
		return 0
	}
	return sign * m * math.Pow10(e)
}

// epoch decodes YYDDD.DDDDDDDD. Years 57-99 are 19YY, 00-56 are 20YY.
func (p *fieldParser) epoch(s string) time.Time {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		p.fail("epoch")
		return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	year := p.int("epoch_year", s[:2])
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}
	day := p.float("epoch_day", s[2:])

	return EpochTime(year, day)
}

// EpochTime converts a year and a 1-based fractional day-of-year to a UTC
// instant, rounded to the nanosecond.
func EpochTime(year int, dayOfYear float64) time.Time {
	whole := math.Floor(dayOfYear)
	frac := dayOfYear - whole

	base := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(whole)-1)
	return base.Add(time.Duration(math.Round(frac * float64(24*time.Hour))))
}
