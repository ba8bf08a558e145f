package camera

import (
	"math"
	"math/rand/v2"
	"testing"

	"row-major/pathtracer/ray"
	"row-major/pathtracer/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestCameraRays(t *testing.T) {
	normal := ray.New(vec3.T{0, 0, -1}, vec3.UnitZ)
	c := MustNew(normal, 2, 2, 2)
	rng := rand.New(rand.NewPCG(1, 1))

	testCases := []struct {
		desc string
		x, y float64
		want ray.Ray
	}{
		{"corner", 1, 1, ray.New(vec3.T{1, 1, -1}, vec3.T{0.5, 0.5, 1})},
		{"edge", 0.5, 1, ray.New(vec3.T{0, 1, -1}, vec3.T{0, 0.5, 1})},
		{"center", 0.5, 0.5, ray.New(vec3.T{0, 0, -1}, vec3.UnitZ)},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := c.View(tc.x, tc.y, rng)
			if diff := cmp.Diff(got, tc.want, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("View(%v, %v); diff (-got +want)\n%s", tc.x, tc.y, diff)
			}
		})
	}
}

func TestScreenExtents(t *testing.T) {
	c := MustNew(ray.New(vec3.T{0, 0, -10}, vec3.T{0, 0, 5}), 0.7, 0.5, 2)
	if math.Abs(c.Width()-0.7) > 1e-12 || math.Abs(c.Height()-0.5) > 1e-12 {
		t.Errorf("extents = %v x %v, want 0.7 x 0.5", c.Width(), c.Height())
	}
}

func TestDegenerateCameras(t *testing.T) {
	if _, err := New(ray.New(vec3.Origin, vec3.UnitY), 1, 1, 1); err == nil {
		t.Errorf("New looking along the y axis succeeded")
	}
	if _, err := New(ray.New(vec3.Origin, vec3.UnitZ), 0, 1, 1); err == nil {
		t.Errorf("New with zero width succeeded")
	}
	if _, err := NewWithBasis(ray.New(vec3.Origin, vec3.UnitZ), vec3.UnitX, vec3.T{2, 0, 0}, 1); err == nil {
		t.Errorf("NewWithBasis with collinear axes succeeded")
	}
	if _, err := NewWithBasis(ray.New(vec3.Origin, vec3.UnitZ), vec3.UnitX, vec3.UnitY, 0); err == nil {
		t.Errorf("NewWithBasis with zero distance succeeded")
	}
	if _, err := MustNew(ray.New(vec3.Origin, vec3.UnitZ), 1, 1, 1).WithLens(0.1, 0); err == nil {
		t.Errorf("WithLens with zero focal length succeeded")
	}
}

func TestPinholeLensMatchesPrimaryRay(t *testing.T) {
	c := MustNew(ray.New(vec3.T{0, 0, -1}, vec3.UnitZ), 2, 2, 2)
	lensed, err := c.WithLens(0, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	rng := rand.New(rand.NewPCG(1, 1))

	got := lensed.View(0.2, 0.9, rng)
	want := c.View(0.2, 0.9, rng)
	if diff := cmp.Diff(got, want, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("zero-aperture lens changed the ray; diff (-got +want)\n%s", diff)
	}
}

func TestApertureRaysConvergeOnFocalPlane(t *testing.T) {
	c := MustNew(ray.New(vec3.T{0, 0, -1}, vec3.UnitZ), 2, 2, 2)
	lensed, err := c.WithLens(0.25, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	rng := rand.New(rand.NewPCG(5, 6))

	primary := c.View(0.8, 0.3, rng)
	cos := vec3.IProd(primary.Slope, c.Normal.Slope)
	focal := primary.Eval(4 / cos)

	// The focal point is on the plane 4 beyond the screen.
	if math.Abs(focal[2]-3) > 1e-9 {
		t.Fatalf("focal point %v is not on the plane z=3", focal)
	}

	distinct := 0
	for i := 0; i < 20; i++ {
		r := lensed.View(0.8, 0.3, rng)

		if off := vec3.SubVV(r.Point, primary.Point).Norm(); off > 0.25+1e-12 {
			t.Errorf("ray origin %v is %v from the screen point, outside the aperture", r.Point, off)
		}
		if off := vec3.SubVV(r.Point, primary.Point).Norm(); off > 1e-9 {
			distinct++
		}

		toFocal := vec3.SubVV(focal, r.Point)
		miss := vec3.SubVV(toFocal, vec3.MulVS(r.Slope, vec3.IProd(toFocal, r.Slope))).Norm()
		if miss > 1e-9 {
			t.Errorf("ray %+v misses the focal point by %v", r, miss)
		}
	}
	if distinct == 0 {
		t.Errorf("aperture sampling never moved the ray origin")
	}
}
