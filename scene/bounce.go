package scene

import (
	"fmt"
	"math"
	"math/rand/v2"

	"row-major/pathtracer/geometry"
	"row-major/pathtracer/ray"
	"row-major/pathtracer/vmath/rgb"
	"row-major/pathtracer/vmath/vec3"
)

// Policy holds the tunables of the refraction estimator.  Zero fields take
// their value from DefaultPolicy.
type Policy struct {
	// Refractive hits fewer than this many bounces below the primary ray
	// follow both the reflected and the transmitted branch.  Deeper hits pick
	// one branch by Russian roulette.  Negative means roulette everywhere.
	DeterministicLevels int

	// The roulette picks reflection with probability MinSplit +
	// (MaxSplit-MinSplit)*reflectance.
	MinSplit, MaxSplit float64

	// Index of refraction of every refractive material, relative to the
	// surrounding medium.
	GlassIndex float64
}

func DefaultPolicy() Policy {
	return Policy{
		DeterministicLevels: 2,
		MinSplit:            0.25,
		MaxSplit:            0.75,
		GlassIndex:          1.5,
	}
}

// WithDefaults returns p with every zero field replaced by its default.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if p.DeterministicLevels == 0 {
		p.DeterministicLevels = def.DeterministicLevels
	}
	if p.MinSplit == 0 {
		p.MinSplit = def.MinSplit
	}
	if p.MaxSplit == 0 {
		p.MaxSplit = def.MaxSplit
	}
	if p.GlassIndex == 0 {
		p.GlassIndex = def.GlassIndex
	}
	return p
}

// Validate checks a policy after defaults have been applied.
func (p Policy) Validate() error {
	if !(p.GlassIndex > 0) || math.IsInf(p.GlassIndex, 0) {
		return fmt.Errorf("glass index must be positive and finite, got %v", p.GlassIndex)
	}
	if !(p.MinSplit > 0 && p.MinSplit <= p.MaxSplit && p.MaxSplit < 1) {
		return fmt.Errorf("roulette split must satisfy 0 < min <= max < 1, got [%v, %v]", p.MinSplit, p.MaxSplit)
	}
	return nil
}

// schlick approximates the Fresnel reflectance of an interface with relative
// index nFrac, for an incidence cosine of magnitude cosIn.
func schlick(nFrac, cosIn float64) float64 {
	r0 := (nFrac - 1) / (nFrac + 1)
	r0 *= r0
	return r0 + (1-r0)*math.Pow(1-cosIn, 5)
}

// tracer follows paths through one scene.  It is not safe for concurrent
// use; each worker owns one.
type tracer struct {
	things  []geometry.Thing
	policy  Policy
	bounces int

	// Number of rays tested against the scene.
	rays int64
}

func (s *Scene) newTracer(bounces int, policy Policy) *tracer {
	return &tracer{
		things:  s.things,
		policy:  policy.WithDefaults(),
		bounces: bounces,
	}
}

// Trace returns the radiance carried back along r by a single random light
// path of at most bounces segments.  policy must be valid once defaults are
// applied.
func (s *Scene) Trace(r ray.Ray, bounces int, policy Policy, rng *rand.Rand) rgb.T {
	return s.newTracer(bounces, policy).bounce(r, bounces, geometry.NoSkip, rng)
}

func (t *tracer) bounce(r ray.Ray, depth, skip int, rng *rand.Rand) rgb.T {
	if depth <= 0 {
		return rgb.Black
	}

	t.rays++
	hit, ok := geometry.Nearest(r, t.things, skip)
	if !ok {
		return rgb.Black
	}

	thing := &t.things[hit.Index]
	mtl := thing.Material()
	impact := r.Eval(hit.T)
	normal := thing.Normal(impact, r.Slope)

	intensity := rgb.MulCS(mtl.Color, mtl.Emittance)

	if mtl.Specularity > 0 {
		reflected := vec3.Reflect(r.Slope, normal)
		glossy := vec3.AddVV(reflected, vec3.MulVS(vec3.Randomize(reflected, rng), mtl.Hardness))
		reflection := ray.New(impact, glossy)
		intensity = rgb.AddCC(intensity, rgb.MulCS(t.bounce(reflection, depth-1, hit.Index, rng), mtl.Specularity))
	}

	if mtl.Diffusion > 0 {
		scatter := ray.New(impact, vec3.Randomize(normal, rng))
		incoming := t.bounce(scatter, depth-1, hit.Index, rng)
		intensity = rgb.AddCC(intensity, rgb.MulCC(rgb.MulCS(mtl.Color, mtl.Diffusion), incoming))
	}

	if mtl.Refraction > 0 {
		intensity = rgb.AddCC(intensity, t.refract(r, thing, hit.Index, impact, normal, depth, rng))
	}

	return intensity
}

// refract returns the refractive term at impact, already weighted by the
// material's refraction coefficient.  normal faces the incoming ray.
//
// Rays always enter open surfaces.  For enclosing shapes the outward normal
// tells entering from leaving, so rays leaving a sphere see the inverse index
// and can be totally internally reflected.  See "Refraction normals" in
// DESIGN.md.
func (t *tracer) refract(r ray.Ray, thing *geometry.Thing, index int, impact, normal vec3.T, depth int, rng *rand.Rand) rgb.T {
	weight := thing.Material().Refraction

	nFrac := 1 / t.policy.GlassIndex
	if thing.Encloses() && vec3.IProd(thing.Outward(impact), r.Slope) > 0 {
		nFrac = t.policy.GlassIndex
	}

	cosIn := vec3.IProd(normal, r.Slope)
	cosOutSqr := 1 - nFrac*nFrac*(1-cosIn*cosIn)
	reflection := ray.New(impact, vec3.SubVV(r.Slope, vec3.MulVS(normal, 2*cosIn)))

	if cosOutSqr < 0 {
		// Total internal reflection.
		return rgb.MulCS(t.bounce(reflection, depth-1, index, rng), weight)
	}

	inPlane := vec3.MulVS(vec3.SubVV(r.Slope, vec3.MulVS(normal, cosIn)), nFrac)
	along := vec3.MulVS(normal, math.Copysign(math.Sqrt(cosOutSqr), cosIn))
	transmission := ray.New(impact, vec3.AddVV(inPlane, along))

	refl := schlick(nFrac, math.Abs(cosIn))
	trans := 1 - refl

	if t.bounces-depth < t.policy.DeterministicLevels {
		reflected := rgb.MulCS(t.bounce(reflection, depth-1, index, rng), refl)
		transmitted := rgb.MulCS(t.bounce(transmission, depth-1, index, rng), trans)
		return rgb.MulCS(rgb.AddCC(reflected, transmitted), weight)
	}

	p := t.policy.MinSplit + (t.policy.MaxSplit-t.policy.MinSplit)*refl
	p = math.Max(t.policy.MinSplit, math.Min(t.policy.MaxSplit, p))
	if vec3.Uniform(rng, 0, 1) < p {
		return rgb.MulCS(t.bounce(reflection, depth-1, index, rng), weight*refl/p)
	}
	return rgb.MulCS(t.bounce(transmission, depth-1, index, rng), weight*trans/(1-p))
}
