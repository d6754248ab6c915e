package transform

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

func TestPerifocalToECI(t *testing.T) {
	tests := []struct {
		name             string
		raan, incl, argp float64
		in, want         Vector
	}{
		{"identity", 0, 0, 0, Vector{X: 1}, Vector{X: 1}},
		{"raan 90 moves node to +Y", math.Pi / 2, 0, 0, Vector{X: 1}, Vector{Y: 1}},
		{"polar orbit perigee over north pole", 0, math.Pi / 2, math.Pi / 2, Vector{X: 1}, Vector{Z: 1}},
		{"retrograde flips Q axis", 0, math.Pi, 0, Vector{Y: 1}, Vector{Y: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(PerifocalToECI(tt.raan, tt.incl, tt.argp), tt.in)
			if !floats.EqualApprox([]float64{got.X, got.Y, got.Z}, []float64{tt.want.X, tt.want.Y, tt.want.Z}, 1e-12) {
				t.Errorf("PerifocalToECI(%v, %v, %v) * %+v = %+v, want %+v", tt.raan, tt.incl, tt.argp, tt.in, got, tt.want)
			}
		})
	}
}

func TestRotationsPreserveLength(t *testing.T) {
	v := Vector{X: 3, Y: -4, Z: 12}
	for i, m := range []*mat.Dense{R1(0.7), R3(-2.1), PerifocalToECI(1.1, 0.9, 2.5)} {
		got := Apply(m, v)
		if !scalar.EqualWithinAbs(got.Norm(), 13, 1e-12) {
			t.Errorf("rotation %d: length = %.15f, want 13", i, got.Norm())
		}
	}
}
