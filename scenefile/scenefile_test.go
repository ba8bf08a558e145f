package scenefile

import (
	"context"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"row-major/pathtracer/geometry"
	"row-major/pathtracer/ray"
	"row-major/pathtracer/scene"
	"row-major/pathtracer/vmath/rgb"
	"row-major/pathtracer/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const fractalScene = `
camera:
  position: [-2, -2, -1]
  direction: [1, 1, 0.5]
  width: 1.25
  height: 0.75
  distance: 2
materials:
  gray:
    specularity: 0.1
    hardness: 1
    diffusion: 1
    refraction: 0.2
    color: [0.99, 0.99, 0.99]
  light:
    diffusion: 0.1
    emittance: 1
    color: [1, 1, 1]
objects:
- terrain:
    iterations: 2
    roughness: 0.25
    scale: 0.2
    seed: 7
    center: [0, 0, 0]
  material: gray
- sphere:
    center: [-100, -60, -60]
    radius: 90
  material: light
render:
  dpi: 300
  samples: 200
  bounces: 4
`

func TestParseAndBuild(t *testing.T) {
	f, err := Parse([]byte(fractalScene))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if diff := cmp.Diff(f.Render, Render{DPI: 300, Samples: 200, Bounces: 4}); diff != "" {
		t.Errorf("render settings; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(f.Materials["light"], Material{Diffusion: 0.1, Emittance: 1, Color: rgb.T{1, 1, 1}}); diff != "" {
		t.Errorf("light material; diff (-got +want)\n%s", diff)
	}

	s, err := f.Build()
	if err != nil {
		t.Fatalf("Unexpected error from Build: %v", err)
	}

	things := s.Things()
	if len(things) != 2*4*4+1 {
		t.Fatalf("Build gave %d things, want %d", len(things), 2*4*4+1)
	}
	if things[0].Kind() != geometry.KindTriangle {
		t.Errorf("first thing is a %v, want a triangle", things[0].Kind())
	}
	last := things[len(things)-1]
	if last.Kind() != geometry.KindSphere || last.Material().Emittance != 1 {
		t.Errorf("last thing is a %v with emittance %v, want the light sphere", last.Kind(), last.Material().Emittance)
	}

	cam := s.Camera()
	if math.Abs(cam.Width()-1.25) > 1e-12 || math.Abs(cam.Height()-0.75) > 1e-12 {
		t.Errorf("camera extents %v x %v, want 1.25 x 0.75", cam.Width(), cam.Height())
	}
}

func TestDefaults(t *testing.T) {
	f, err := Parse([]byte(`
camera: {position: [0, 0, 0], direction: [0, 0, 1], width: 1, height: 1, distance: 1}
`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(f.Render, Render{DPI: DefaultDPI, Samples: DefaultSamples, Bounces: DefaultBounces}); diff != "" {
		t.Errorf("defaults; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(f.Policy(), scene.Policy{}); diff != "" {
		t.Errorf("default policy; diff (-got +want)\n%s", diff)
	}
}

func TestJSONAndExplicitBasis(t *testing.T) {
	f, err := Parse([]byte(`{
  "camera": {
    "position": [0, 0, -1], "direction": [0, 0, 1],
    "screenX": [3, 0, 0], "screenY": [0, 2, 0], "distance": 2,
    "aperture": 0.1, "focalLength": 4
  },
  "materials": {"mirror": {"specularity": 1, "color": [1, 1, 1]}},
  "objects": [
    {"material": "mirror", "parallelogram": {"base": [-1, -1, 3], "edgeX": [2, 0, 0], "edgeY": [0, 2, 0]}},
    {"material": "mirror", "triangle": {"a": [0, 0, 4], "b": [1, 0, 4], "c": [0, 1, 4]}}
  ],
  "render": {"policy": {"deterministicLevels": 1, "minSplit": 0.1, "maxSplit": 0.9, "glassIndex": 1.33}}
}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	s, err := f.Build()
	if err != nil {
		t.Fatalf("Unexpected error from Build: %v", err)
	}

	cam := s.Camera()
	if diff := cmp.Diff(cam.X, vec3.T{3, 0, 0}); diff != "" {
		t.Errorf("camera x axis; diff (-got +want)\n%s", diff)
	}
	if !cam.HasLens() || cam.Aperture != 0.1 || cam.FocalLength != 4 {
		t.Errorf("camera lens = %v, %v, %v, want true, 0.1, 4", cam.HasLens(), cam.Aperture, cam.FocalLength)
	}

	kinds := []geometry.Kind{}
	things := s.Things()
	for i := range things {
		kinds = append(kinds, things[i].Kind())
	}
	if diff := cmp.Diff(kinds, []geometry.Kind{geometry.KindParallelogram, geometry.KindTriangle}); diff != "" {
		t.Errorf("object kinds; diff (-got +want)\n%s", diff)
	}

	want := scene.Policy{DeterministicLevels: 1, MinSplit: 0.1, MaxSplit: 0.9, GlassIndex: 1.33}
	if diff := cmp.Diff(f.Policy(), want); diff != "" {
		t.Errorf("policy; diff (-got +want)\n%s", diff)
	}
}

func TestErrors(t *testing.T) {
	const cam = "camera: {position: [0, 0, 0], direction: [0, 0, 1], width: 1, height: 1, distance: 1}\n"

	testCases := []struct {
		desc    string
		doc     string
		wantErr string
	}{
		{
			desc:    "unknown field",
			doc:     cam + "lights: []\n",
			wantErr: "unmarshaling",
		},
		{
			desc:    "unknown material",
			doc:     cam + "objects:\n- {material: gold, sphere: {center: [0, 0, 5], radius: 1}}\n",
			wantErr: "unknown material",
		},
		{
			desc:    "two shapes",
			doc:     cam + "materials: {m: {color: [1, 1, 1]}}\nobjects:\n- {material: m, sphere: {center: [0, 0, 5], radius: 1}, triangle: {a: [0, 0, 0], b: [1, 0, 0], c: [0, 1, 0]}}\n",
			wantErr: "exactly one shape",
		},
		{
			desc:    "degenerate triangle",
			doc:     cam + "materials: {m: {color: [1, 1, 1]}}\nobjects:\n- {material: m, triangle: {a: [0, 0, 0], b: [1, 0, 0], c: [2, 0, 0]}}\n",
			wantErr: "degenerate",
		},
		{
			desc:    "negative material weight",
			doc:     cam + "materials: {m: {diffusion: -1, color: [1, 1, 1]}}\n",
			wantErr: "diffusion",
		},
		{
			desc:    "lone axis",
			doc:     "camera: {position: [0, 0, 0], direction: [0, 0, 1], screenX: [1, 0, 0], distance: 1}\n",
			wantErr: "together",
		},
		{
			desc:    "aperture without focus",
			doc:     "camera: {position: [0, 0, 0], direction: [0, 0, 1], width: 1, height: 1, distance: 1, aperture: 0.1}\n",
			wantErr: "focal length",
		},
		{
			desc:    "inverted roulette split",
			doc:     cam + "render: {policy: {minSplit: 0.8, maxSplit: 0.3}}\n",
			wantErr: "roulette split",
		},
		{
			desc:    "negative glass index",
			doc:     cam + "render: {policy: {glassIndex: -1.5}}\n",
			wantErr: "glass index",
		},
		{
			desc:    "zero direction",
			doc:     "camera: {position: [0, 0, 0], direction: [0, 0, 0], width: 1, height: 1, distance: 1}\n",
			wantErr: "non-zero",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			f, err := Parse([]byte(tc.doc))
			if err == nil {
				_, err = f.Build()
			}
			if err == nil {
				t.Fatalf("got no error, want one mentioning %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestPartialPolicy(t *testing.T) {
	f, err := Parse([]byte(`
camera: {position: [0, 0, 0], direction: [0, 0, 1], width: 1, height: 1, distance: 1}
materials:
  glass: {refraction: 1, color: [1, 1, 1]}
  light: {emittance: 1, color: [1, 1, 1]}
objects:
- {material: glass, parallelogram: {base: [-5, -5, 1], edgeX: [10, 0, 0], edgeY: [0, 10, 0]}}
- {material: light, sphere: {center: [0, 0, 5], radius: 1}}
render: {policy: {deterministicLevels: 2}}
`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s, err := f.Build()
	if err != nil {
		t.Fatalf("Unexpected error from Build: %v", err)
	}

	if diff := cmp.Diff(f.Policy().WithDefaults(), scene.DefaultPolicy()); diff != "" {
		t.Errorf("policy with defaults; diff (-got +want)\n%s", diff)
	}

	// Straight through the pane: Schlick transmittance 0.96 at index 1.5.
	got := s.Trace(ray.New(vec3.Origin, vec3.UnitZ), 3, f.Policy(), rand.New(rand.NewPCG(1, 1)))
	if diff := cmp.Diff(got, rgb.T{0.96, 0.96, 0.96}, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("light through the pane; diff (-got +want)\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	name := filepath.Join(t.TempDir(), "fractal.yaml")
	if err := os.WriteFile(name, []byte(fractalScene), 0644); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	f, err := Load(context.Background(), name)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(f.Objects) != 2 {
		t.Errorf("Load gave %d objects, want 2", len(f.Objects))
	}

	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load of a missing file succeeded")
	}
}

func TestShippedScenes(t *testing.T) {
	names, err := filepath.Glob("../scenes/*.yaml")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(names) == 0 {
		t.Fatalf("no scenes found")
	}

	for _, name := range names {
		t.Run(filepath.Base(name), func(t *testing.T) {
			f, err := Load(context.Background(), name)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			s, err := f.Build()
			if err != nil {
				t.Fatalf("Unexpected error from Build: %v", err)
			}
			if w, h := s.Dimensions(f.Render.DPI); w <= 0 || h <= 0 {
				t.Errorf("scene renders to an empty %dx%d image", w, h)
			}
		})
	}
}
