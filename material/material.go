package material

import (
	"fmt"
	"math"

	"row-major/pathtracer/vmath/rgb"
)

// Material holds the per-surface weights used by the bounce integrator.  The
// weights are independent and need not sum to one.
type Material struct {
	// Weight of the mirror-like reflection.
	Specularity float64

	// Spread of the mirror reflection; 0 is a perfect mirror.
	Hardness float64

	// Weight of the cosine-ish hemisphere scattering, filtered by Color.
	Diffusion float64

	// Weight of the dielectric (glass) reflection/transmission pair.
	Refraction float64

	// Emitted radiance, scaled by Color.
	Emittance float64

	Color rgb.T
}

func New(specularity, hardness, diffusion, refraction, emittance float64, color rgb.T) Material {
	return Material{
		Specularity: specularity,
		Hardness:    hardness,
		Diffusion:   diffusion,
		Refraction:  refraction,
		Emittance:   emittance,
		Color:       color,
	}
}

// Validate reports weights that are negative or not finite.
func (m Material) Validate() error {
	weights := []struct {
		name string
		val  float64
	}{
		{"specularity", m.Specularity},
		{"hardness", m.Hardness},
		{"diffusion", m.Diffusion},
		{"refraction", m.Refraction},
		{"emittance", m.Emittance},
		{"color.r", m.Color[0]},
		{"color.g", m.Color[1]},
		{"color.b", m.Color[2]},
	}
	for _, w := range weights {
		if math.IsNaN(w.val) || math.IsInf(w.val, 0) || w.val < 0 {
			return fmt.Errorf("material %s must be a non-negative finite number, got %v", w.name, w.val)
		}
	}
	return nil
}
