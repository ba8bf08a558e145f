// Package scenefile reads scene descriptions written in YAML or JSON.
//
// A description names its materials once and refers to them by name from each
// object:
//
//	camera:
//	  position: [0, 0, -1]
//	  direction: [0, 0, 1]
//	  width: 2
//	  height: 2
//	  distance: 2
//	materials:
//	  light: {emittance: 1, color: [1, 1, 1]}
//	objects:
//	- sphere: {center: [0, 0, 5], radius: 1}
//	  material: light
//	render:
//	  dpi: 100
//	  samples: 64
//	  bounces: 6
package scenefile

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"

	"row-major/pathtracer/camera"
	"row-major/pathtracer/geometry"
	"row-major/pathtracer/material"
	"row-major/pathtracer/ray"
	"row-major/pathtracer/scene"
	"row-major/pathtracer/terrain"
	"row-major/pathtracer/vmath/rgb"
	"row-major/pathtracer/vmath/vec3"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"sigs.k8s.io/yaml"
)

// Render defaults, used when a description leaves them out.
const (
	DefaultDPI     = 100
	DefaultSamples = 500
	DefaultBounces = 6
)

type File struct {
	Camera    Camera              `json:"camera"`
	Materials map[string]Material `json:"materials"`
	Objects   []Object            `json:"objects"`
	Render    Render              `json:"render"`
}

// Camera gives either width and height, from which the screen axes are
// derived, or the axes screenX and screenY directly.
type Camera struct {
	Position  vec3.T `json:"position"`
	Direction vec3.T `json:"direction"`

	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// Keys avoid a bare "y", which YAML 1.1 reads as a boolean.
	ScreenX *vec3.T `json:"screenX,omitempty"`
	ScreenY *vec3.T `json:"screenY,omitempty"`

	Distance float64 `json:"distance"`

	// A positive focal length enables depth of field.
	Aperture    float64 `json:"aperture,omitempty"`
	FocalLength float64 `json:"focalLength,omitempty"`
}

type Material struct {
	Specularity float64 `json:"specularity,omitempty"`
	Hardness    float64 `json:"hardness,omitempty"`
	Diffusion   float64 `json:"diffusion,omitempty"`
	Refraction  float64 `json:"refraction,omitempty"`
	Emittance   float64 `json:"emittance,omitempty"`
	Color       rgb.T   `json:"color"`
}

// Object sets exactly one of its shapes.
type Object struct {
	Material string `json:"material"`

	Sphere        *Sphere        `json:"sphere,omitempty"`
	Parallelogram *Parallelogram `json:"parallelogram,omitempty"`
	Triangle      *Triangle      `json:"triangle,omitempty"`
	Terrain       *Terrain       `json:"terrain,omitempty"`
}

type Sphere struct {
	Center vec3.T  `json:"center"`
	Radius float64 `json:"radius"`
}

type Parallelogram struct {
	Base  vec3.T `json:"base"`
	EdgeX vec3.T `json:"edgeX"`
	EdgeY vec3.T `json:"edgeY"`
}

type Triangle struct {
	A vec3.T `json:"a"`
	B vec3.T `json:"b"`
	C vec3.T `json:"c"`
}

// Terrain is a diamond-square height field meshed into triangles.
type Terrain struct {
	Iterations int     `json:"iterations"`
	Roughness  float64 `json:"roughness"`
	Scale      float64 `json:"scale,omitempty"`
	Seed       uint64  `json:"seed,omitempty"`
	Center     vec3.T  `json:"center"`
	HalfWidth  float64 `json:"halfWidth,omitempty"`
}

type Render struct {
	DPI     float64 `json:"dpi,omitempty"`
	Samples int     `json:"samples,omitempty"`
	Bounces int     `json:"bounces,omitempty"`

	Policy *Policy `json:"policy,omitempty"`
}

type Policy struct {
	DeterministicLevels int     `json:"deterministicLevels"`
	MinSplit            float64 `json:"minSplit"`
	MaxSplit            float64 `json:"maxSplit"`
	GlassIndex          float64 `json:"glassIndex"`
}

// Parse decodes a description and fills in render defaults.  Unknown fields
// are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, fmt.Errorf("while unmarshaling scene: %w", err)
	}

	if f.Render.DPI == 0 {
		f.Render.DPI = DefaultDPI
	}
	if f.Render.Samples == 0 {
		f.Render.Samples = DefaultSamples
	}
	if f.Render.Bounces == 0 {
		f.Render.Bounces = DefaultBounces
	}
	return f, nil
}

func Load(ctx context.Context, name string) (*File, error) {
	tracer := otel.Tracer("row-major/pathtracer/scenefile")
	var span trace.Span
	_, span = tracer.Start(ctx, "scenefile.Load")
	defer span.End()

	span.SetAttributes(attribute.String("name", name))

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("while reading scene file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("while parsing %s: %w", name, err)
	}
	return f, nil
}

// Policy returns the refraction policy the description asks for.  Fields the
// description leaves out are zero and take the renderer's defaults.
func (f *File) Policy() scene.Policy {
	if f.Render.Policy == nil {
		return scene.Policy{}
	}
	p := f.Render.Policy
	return scene.Policy{
		DeterministicLevels: p.DeterministicLevels,
		MinSplit:            p.MinSplit,
		MaxSplit:            p.MaxSplit,
		GlassIndex:          p.GlassIndex,
	}
}

// Build constructs the scene.  Objects are added in file order, terrain
// triangles in place of their terrain object.
func (f *File) Build() (*scene.Scene, error) {
	cam, err := f.Camera.build()
	if err != nil {
		return nil, fmt.Errorf("while building camera: %w", err)
	}

	if err := f.Policy().WithDefaults().Validate(); err != nil {
		return nil, fmt.Errorf("while validating render policy: %w", err)
	}

	materials := map[string]material.Material{}
	for name, m := range f.Materials {
		mtl := material.New(m.Specularity, m.Hardness, m.Diffusion, m.Refraction, m.Emittance, m.Color)
		if err := mtl.Validate(); err != nil {
			return nil, fmt.Errorf("while validating material %q: %w", name, err)
		}
		materials[name] = mtl
	}

	s := scene.New(cam)
	for i, o := range f.Objects {
		mtl, ok := materials[o.Material]
		if !ok {
			return nil, fmt.Errorf("object %d refers to unknown material %q", i, o.Material)
		}

		things, err := o.build(mtl)
		if err != nil {
			return nil, fmt.Errorf("while building object %d: %w", i, err)
		}
		for _, t := range things {
			s.Add(t)
		}
	}
	return s, nil
}

func (c *Camera) build() (camera.Camera, error) {
	if c.Direction.Norm() == 0 {
		return camera.Camera{}, fmt.Errorf("camera direction must be non-zero")
	}
	normal := ray.New(c.Position, c.Direction)

	var cam camera.Camera
	var err error
	switch {
	case c.ScreenX != nil && c.ScreenY != nil:
		if c.Width != 0 || c.Height != 0 {
			return camera.Camera{}, fmt.Errorf("give either width and height or screenX and screenY, not both")
		}
		cam, err = camera.NewWithBasis(normal, *c.ScreenX, *c.ScreenY, c.Distance)
	case c.ScreenX == nil && c.ScreenY == nil:
		cam, err = camera.New(normal, c.Width, c.Height, c.Distance)
	default:
		return camera.Camera{}, fmt.Errorf("screenX and screenY must be given together")
	}
	if err != nil {
		return camera.Camera{}, err
	}

	if c.FocalLength != 0 {
		return cam.WithLens(c.Aperture, c.FocalLength)
	}
	if c.Aperture != 0 {
		return camera.Camera{}, fmt.Errorf("aperture needs a focal length")
	}
	return cam, nil
}

func (o *Object) build(mtl material.Material) ([]geometry.Thing, error) {
	shapes := 0
	for _, set := range []bool{o.Sphere != nil, o.Parallelogram != nil, o.Triangle != nil, o.Terrain != nil} {
		if set {
			shapes++
		}
	}
	if shapes != 1 {
		return nil, fmt.Errorf("object must have exactly one shape, has %d", shapes)
	}

	switch {
	case o.Sphere != nil:
		t, err := geometry.NewSphere(o.Sphere.Center, o.Sphere.Radius, mtl)
		return []geometry.Thing{t}, err
	case o.Parallelogram != nil:
		p := o.Parallelogram
		t, err := geometry.NewParallelogram(p.Base, p.EdgeX, p.EdgeY, mtl)
		return []geometry.Thing{t}, err
	case o.Triangle != nil:
		p := o.Triangle
		t, err := geometry.NewTriangle(p.A, p.B, p.C, mtl)
		return []geometry.Thing{t}, err
	}

	tr := o.Terrain
	g, err := terrain.Elevate(tr.Iterations, tr.Roughness, rand.New(rand.NewPCG(tr.Seed, 0)))
	if err != nil {
		return nil, fmt.Errorf("while elevating terrain: %w", err)
	}
	if tr.Scale != 0 {
		g.Scale(tr.Scale)
	}
	halfWidth := tr.HalfWidth
	if halfWidth == 0 {
		halfWidth = 1
	}
	return terrain.Triangulate(g, tr.Center, halfWidth, mtl)
}
