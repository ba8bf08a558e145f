package ray

import (
	"fmt"
	"math"

	"row-major/pathtracer/vmath/vec3"
)

// Ray is a half-line with a unit-length Slope.
type Ray struct {
	Point vec3.T
	Slope vec3.T
}

// New builds a ray from point along direction, normalizing direction.
//
// A zero-length direction is a construction bug, not a rendering condition, so
// New panics on it.
func New(point, direction vec3.T) Ray {
	l := direction.Norm()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		panic(fmt.Sprintf("ray: direction %v has no usable length", direction))
	}
	return Ray{
		Point: point,
		Slope: vec3.DivVS(direction, l),
	}
}

// Eval returns the point at distance t from the ray's base.
func (r Ray) Eval(t float64) vec3.T {
	return vec3.T{
		r.Point[0] + t*r.Slope[0],
		r.Point[1] + t*r.Slope[1],
		r.Point[2] + t*r.Slope[2],
	}
}
