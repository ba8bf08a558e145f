// Package geometry implements the primitives a scene is built from.
//
// Thing is a closed set of shapes distinguished by Kind.  Intersection and
// normal queries switch on the kind rather than going through an interface, so
// the inner loop of the tracer never makes an indirect call.
package geometry

import (
	"fmt"
	"math"

	"row-major/pathtracer/material"
	"row-major/pathtracer/ray"
	"row-major/pathtracer/vmath/vec3"
)

type Kind int

const (
	KindSphere Kind = iota
	KindParallelogram
	KindTriangle
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindParallelogram:
		return "parallelogram"
	case KindTriangle:
		return "triangle"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Rays closer than this to parallel with a plane are treated as missing it.
const parallelEpsilon = 1e-12

type Thing struct {
	kind Kind
	mtl  material.Material

	// Sphere.
	center vec3.T
	radius float64

	// Planar shapes: corner, edge vectors, unit face normal (edgeX x edgeY),
	// and the Gram matrix entries of the edges with the inverse of its
	// determinant.
	base         vec3.T
	edgeX, edgeY vec3.T
	n            vec3.T
	gxx, gxy     float64
	gyy, invDet  float64
}

func NewSphere(center vec3.T, radius float64, m material.Material) (Thing, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return Thing{}, fmt.Errorf("sphere radius must be positive and finite, got %v", radius)
	}
	if err := m.Validate(); err != nil {
		return Thing{}, fmt.Errorf("while validating sphere material: %w", err)
	}
	return Thing{
		kind:   KindSphere,
		mtl:    m,
		center: center,
		radius: radius,
	}, nil
}

// NewParallelogram builds the parallelogram with corner base spanned by the
// edge vectors x and y.  The face normal is x cross y.
func NewParallelogram(base, x, y vec3.T, m material.Material) (Thing, error) {
	return newPlanar(KindParallelogram, base, x, y, m)
}

// NewTriangle builds the triangle with corners a, b and c.  The face normal is
// (b-a) cross (c-a).
func NewTriangle(a, b, c vec3.T, m material.Material) (Thing, error) {
	return newPlanar(KindTriangle, a, vec3.SubVV(b, a), vec3.SubVV(c, a), m)
}

func newPlanar(kind Kind, base, x, y vec3.T, m material.Material) (Thing, error) {
	cross := vec3.CProd(x, y)
	area := cross.Norm()
	if !(area > parallelEpsilon*x.Norm()*y.Norm()) {
		return Thing{}, fmt.Errorf("%v with edges %v and %v is degenerate", kind, x, y)
	}
	if err := m.Validate(); err != nil {
		return Thing{}, fmt.Errorf("while validating %v material: %w", kind, err)
	}

	gxx := vec3.IProd(x, x)
	gxy := vec3.IProd(x, y)
	gyy := vec3.IProd(y, y)

	return Thing{
		kind:   kind,
		mtl:    m,
		base:   base,
		edgeX:  x,
		edgeY:  y,
		n:      vec3.DivVS(cross, area),
		gxx:    gxx,
		gxy:    gxy,
		gyy:    gyy,
		invDet: 1 / (gxx*gyy - gxy*gxy),
	}, nil
}

func MustSphere(center vec3.T, radius float64, m material.Material) Thing {
	t, err := NewSphere(center, radius, m)
	if err != nil {
		panic(err)
	}
	return t
}

func MustParallelogram(base, x, y vec3.T, m material.Material) Thing {
	t, err := NewParallelogram(base, x, y, m)
	if err != nil {
		panic(err)
	}
	return t
}

func MustTriangle(a, b, c vec3.T, m material.Material) Thing {
	t, err := NewTriangle(a, b, c, m)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Thing) Kind() Kind {
	return t.kind
}

// Encloses reports whether t bounds a volume a ray can be inside of.  Planar
// shapes are open surfaces with no inside.
func (t *Thing) Encloses() bool {
	return t.kind == KindSphere
}

func (t *Thing) Material() material.Material {
	return t.mtl
}

// HitBy returns the distance along r to the nearest point of t in front of the
// ray's base.
func (t *Thing) HitBy(r ray.Ray) (float64, bool) {
	switch t.kind {
	case KindSphere:
		return t.sphereHit(r)
	case KindParallelogram, KindTriangle:
		return t.planarHit(r)
	}
	return 0, false
}

func (t *Thing) sphereHit(r ray.Ray) (float64, bool) {
	hypo := vec3.SubVV(t.center, r.Point)
	dot := vec3.IProd(r.Slope, hypo)
	root := dot*dot - hypo.NormSquared() + t.radius*t.radius
	if root < 0 {
		return 0, false
	}

	sq := math.Sqrt(root)
	if near := dot - sq; near > 0 {
		return near, true
	}
	// The base is inside the sphere.
	if far := dot + sq; far > 0 {
		return far, true
	}
	return 0, false
}

func (t *Thing) planarHit(r ray.Ray) (float64, bool) {
	denom := vec3.IProd(r.Slope, t.n)
	if math.Abs(denom) < parallelEpsilon {
		return 0, false
	}

	d := vec3.IProd(vec3.SubVV(t.base, r.Point), t.n) / denom
	if !(d > 0) {
		return 0, false
	}

	u, v := t.planeCoords(vec3.SubVV(r.Eval(d), t.base))
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return 0, false
	}
	if t.kind == KindTriangle && u+v > 1 {
		return 0, false
	}
	return d, true
}

// planeCoords solves p = u*edgeX + v*edgeY for an in-plane offset p.
func (t *Thing) planeCoords(p vec3.T) (float64, float64) {
	dx := vec3.IProd(p, t.edgeX)
	dy := vec3.IProd(p, t.edgeY)
	u := (t.gyy*dx - t.gxy*dy) * t.invDet
	v := (t.gxx*dy - t.gxy*dx) * t.invDet
	return u, v
}

// Outward returns the geometric normal of t at point: away from the center for
// spheres, the winding normal for planar shapes.
func (t *Thing) Outward(point vec3.T) vec3.T {
	if t.kind == KindSphere {
		return vec3.Normalize(vec3.SubVV(point, t.center))
	}
	return t.n
}

// Normal returns the unit normal of t at point, oriented against the incoming
// direction.
func (t *Thing) Normal(point, direction vec3.T) vec3.T {
	n := t.Outward(point)
	if vec3.IProd(n, direction) > 0 {
		return vec3.Neg(n)
	}
	return n
}
