// Package vec3 holds the three-component vector used for both positions and
// free directions.
package vec3

import (
	"math"
	"math/rand/v2"
)

type T [3]float64

var (
	Origin = T{0, 0, 0}
	UnitX  = T{1, 0, 0}
	UnitY  = T{0, 1, 0}
	UnitZ  = T{0, 0, 1}
)

func (v T) NormSquared() float64 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func (v T) Norm() float64 {
	return math.Sqrt(v.NormSquared())
}

// Normalize divides v by its norm.  The caller guarantees v is not the zero
// vector.
func Normalize(v T) T {
	l := v.Norm()
	return T{
		v[0] / l,
		v[1] / l,
		v[2] / l,
	}
}

func AddVV(a, b T) T {
	return T{
		a[0] + b[0],
		a[1] + b[1],
		a[2] + b[2],
	}
}

func SubVV(a, b T) T {
	return T{
		a[0] - b[0],
		a[1] - b[1],
		a[2] - b[2],
	}
}

func Neg(a T) T {
	return T{-a[0], -a[1], -a[2]}
}

func MulVS(a T, b float64) T {
	return T{
		a[0] * b,
		a[1] * b,
		a[2] * b,
	}
}

func DivVS(a T, b float64) T {
	return T{
		a[0] / b,
		a[1] / b,
		a[2] / b,
	}
}

func IProd(a, b T) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func CProd(a, b T) T {
	return T{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Reflect mirrors a about the unit normal n.
func Reflect(a, n T) T {
	return SubVV(a, MulVS(n, 2*IProd(a, n)))
}

// Perpendicular returns a unit vector orthogonal to v, built by zeroing the
// smallest-magnitude component of v and swapping the other two.
func Perpendicular(v T) T {
	ax, ay, az := math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])
	switch {
	case ax <= ay && ax <= az:
		return Normalize(T{0, -v[2], v[1]})
	case ay <= ax && ay <= az:
		return Normalize(T{-v[2], 0, v[0]})
	}
	return Normalize(T{-v[1], v[0], 0})
}

// Uniform draws a float from [lo, hi].
func Uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// Randomize returns a random unit vector in the hemisphere around the unit
// vector v.
//
// The sample is drawn by rejection from the half of the unit ball on v's side,
// expressed in the orthonormal basis {v, a, v x a} where a is
// Perpendicular(v).
func Randomize(v T, rng *rand.Rand) T {
	a := Perpendicular(v)
	b := CProd(v, a)

	var x, y, z float64
	for {
		x = Uniform(rng, 0, 1)
		y = Uniform(rng, -1, 1)
		z = Uniform(rng, -1, 1)
		normSquared := x*x + y*y + z*z
		if normSquared <= 1.0 && normSquared != 0.0 {
			break
		}
	}

	return Normalize(AddVV(AddVV(MulVS(v, x), MulVS(a, y)), MulVS(b, z)))
}
