package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// R1 is the frame rotation about the first axis by x radians.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R3 is the frame rotation about the third axis by x radians.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// PerifocalToECI returns the matrix taking perifocal (PQW) coordinates into
// ECI for the given RAAN, inclination and argument of perigee (radians):
// R3(-Ω)·R1(-i)·R3(-ω).
func PerifocalToECI(raan, incl, argp float64) *mat.Dense {
	var m mat.Dense
	m.Mul(R3(-raan), R1(-incl))
	m.Mul(&m, R3(-argp))
	return &m
}

// Apply multiplies the 3x3 matrix m by v.
func Apply(m mat.Matrix, v Vector) Vector {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
