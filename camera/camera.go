package camera

import (
	"fmt"
	"math/rand/v2"

	"row-major/pathtracer/ray"
	"row-major/pathtracer/vmath/vec3"
)

// Basis vectors shorter than this (relative to their inputs) are degenerate.
const degenerateEpsilon = 1e-12

// Camera maps fractional screen coordinates to primary rays.
//
// The screen is the parallelogram centered on Normal.Point spanned by X and Y;
// the eye sits Distance behind it along Normal.
type Camera struct {
	Normal   ray.Ray
	X, Y     vec3.T
	Distance float64

	// Depth of field.  When lens is set, rays leave from a point of the
	// aperture disc around the screen point and converge on the focal plane,
	// FocalLength beyond the screen.
	lens        bool
	Aperture    float64
	FocalLength float64
}

// New derives the screen axes from the viewing direction: X runs along
// -(dir x unitY) and Y along dir x unitX, scaled to width and height.
func New(normal ray.Ray, width, height, distance float64) (Camera, error) {
	if !(width > 0) || !(height > 0) {
		return Camera{}, fmt.Errorf("screen extents must be positive, got %v x %v", width, height)
	}

	xDir := vec3.CProd(normal.Slope, vec3.UnitY)
	yDir := vec3.CProd(normal.Slope, vec3.UnitX)
	if xDir.Norm() < degenerateEpsilon || yDir.Norm() < degenerateEpsilon {
		return Camera{}, fmt.Errorf("viewing direction %v is parallel to a world axis; supply the screen basis explicitly", normal.Slope)
	}

	return NewWithBasis(
		normal,
		vec3.MulVS(vec3.Normalize(xDir), -width),
		vec3.MulVS(vec3.Normalize(yDir), height),
		distance,
	)
}

// NewWithBasis builds a camera from explicit screen axis vectors.
func NewWithBasis(normal ray.Ray, x, y vec3.T, distance float64) (Camera, error) {
	if !(distance > 0) {
		return Camera{}, fmt.Errorf("eye distance must be positive, got %v", distance)
	}
	if vec3.CProd(x, y).Norm() <= degenerateEpsilon*x.Norm()*y.Norm() || x.Norm() == 0 || y.Norm() == 0 {
		return Camera{}, fmt.Errorf("screen axes %v and %v do not span a plane", x, y)
	}

	return Camera{
		Normal:   normal,
		X:        x,
		Y:        y,
		Distance: distance,
	}, nil
}

func MustNew(normal ray.Ray, width, height, distance float64) Camera {
	c, err := New(normal, width, height, distance)
	if err != nil {
		panic(err)
	}
	return c
}

// WithLens returns a copy of c with a finite aperture of the given radius,
// focused on the plane focalLength beyond the screen.
func (c Camera) WithLens(aperture, focalLength float64) (Camera, error) {
	if !(aperture >= 0) {
		return Camera{}, fmt.Errorf("aperture must be non-negative, got %v", aperture)
	}
	if !(focalLength > 0) {
		return Camera{}, fmt.Errorf("focal length must be positive, got %v", focalLength)
	}

	c.lens = true
	c.Aperture = aperture
	c.FocalLength = focalLength
	return c, nil
}

func (c Camera) HasLens() bool {
	return c.lens
}

// Width and Height are the physical screen extents.
func (c Camera) Width() float64 {
	return c.X.Norm()
}

func (c Camera) Height() float64 {
	return c.Y.Norm()
}

// View returns the primary ray through the screen point (x, y), where both
// coordinates are fractions in [0, 1].  rng is only consulted by cameras with a
// non-zero aperture.
func (c Camera) View(x, y float64, rng *rand.Rand) ray.Ray {
	base := vec3.AddVV(
		c.Normal.Point,
		vec3.AddVV(vec3.MulVS(c.X, x-0.5), vec3.MulVS(c.Y, y-0.5)),
	)
	eye := c.Normal.Eval(-c.Distance)
	primary := ray.New(base, vec3.SubVV(base, eye))
	if !c.lens {
		return primary
	}

	cos := vec3.IProd(primary.Slope, c.Normal.Slope)
	if cos < degenerateEpsilon {
		return primary
	}
	focal := primary.Eval(c.FocalLength / cos)

	origin := base
	if c.Aperture > 0 {
		u, v := sampleDisc(rng)
		offset := vec3.AddVV(
			vec3.MulVS(vec3.Normalize(c.X), u*c.Aperture),
			vec3.MulVS(vec3.Normalize(c.Y), v*c.Aperture),
		)
		origin = vec3.AddVV(base, offset)
	}

	return ray.New(origin, vec3.SubVV(focal, origin))
}

func sampleDisc(rng *rand.Rand) (float64, float64) {
	for {
		u := vec3.Uniform(rng, -1, 1)
		v := vec3.Uniform(rng, -1, 1)
		if u*u+v*v <= 1 {
			return u, v
		}
	}
}
