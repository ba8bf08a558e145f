// Package terrain generates fractal height fields and meshes them into
// triangles.
package terrain

import (
	"fmt"
	"math"
	"math/rand/v2"

	"row-major/pathtracer/geometry"
	"row-major/pathtracer/material"
	"row-major/pathtracer/vmath/vec3"
)

// MaxIterations bounds Elevate; 2^12+1 squared is already 16M heights.
const MaxIterations = 12

// Grid is a square height field.
type Grid struct {
	Size    int
	Heights []float64
}

func NewGrid(size int) *Grid {
	return &Grid{
		Size:    size,
		Heights: make([]float64, size*size),
	}
}

func (g *Grid) At(x, y int) float64 {
	return g.Heights[y*g.Size+x]
}

func (g *Grid) Set(x, y int, h float64) {
	g.Heights[y*g.Size+x] = h
}

// Scale multiplies every height by s.
func (g *Grid) Scale(s float64) {
	for i := range g.Heights {
		g.Heights[i] *= s
	}
}

// Elevate runs the diamond-square algorithm on a (2^iterations+1)-wide grid
// with zero corners.  Noise at subdivision level n (counting down from
// iterations) has standard deviation 2^((n-iterations)/roughness), so lower
// roughness gives smoother terrain.
func Elevate(iterations int, roughness float64, rng *rand.Rand) (*Grid, error) {
	if iterations < 1 || iterations > MaxIterations {
		return nil, fmt.Errorf("iterations must be in [1, %d], got %d", MaxIterations, iterations)
	}
	if !(roughness > 0) {
		return nil, fmt.Errorf("roughness must be positive, got %v", roughness)
	}

	size := 1<<iterations + 1
	g := NewGrid(size)

	for n := iterations; n > 0; n-- {
		step := 1 << n
		offset := step / 2
		magnitude := math.Pow(2, float64(n-iterations)/roughness)

		// Centers of the squares.
		for x := offset; x < size; x += step {
			for y := offset; y < size; y += step {
				avg := 0.25 * (g.At(x-offset, y-offset) +
					g.At(x+offset, y-offset) +
					g.At(x-offset, y+offset) +
					g.At(x+offset, y+offset))
				g.Set(x, y, avg+rng.NormFloat64()*magnitude)
			}
		}

		// Edge midpoints, first along columns then along rows.
		for x := 0; x < size; x += step {
			for y := offset; y < size; y += step {
				g.Set(x, y, g.diamond(x, y, offset)+rng.NormFloat64()*magnitude)
			}
		}
		for x := offset; x < size; x += step {
			for y := 0; y < size; y += step {
				g.Set(x, y, g.diamond(x, y, offset)+rng.NormFloat64()*magnitude)
			}
		}
	}

	return g, nil
}

// diamond averages the in-bounds neighbours offset away from (x, y).
func (g *Grid) diamond(x, y, offset int) float64 {
	sum := 0.0
	count := 0
	for _, d := range [][2]int{{-offset, 0}, {offset, 0}, {0, -offset}, {0, offset}} {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || nx >= g.Size || ny < 0 || ny >= g.Size {
			continue
		}
		sum += g.At(nx, ny)
		count++
	}
	return sum / float64(count)
}

// Triangulate meshes g over the square of half-width halfWidth centered on
// center, with heights added along z.  Each grid cell becomes two triangles.
func Triangulate(g *Grid, center vec3.T, halfWidth float64, m material.Material) ([]geometry.Thing, error) {
	if g.Size < 2 {
		return nil, fmt.Errorf("grid of size %d has no cells", g.Size)
	}
	if !(halfWidth > 0) {
		return nil, fmt.Errorf("half-width must be positive, got %v", halfWidth)
	}

	step := 2 * halfWidth / float64(g.Size-1)
	corner := func(x, y int) vec3.T {
		return vec3.AddVV(center, vec3.T{
			-halfWidth + step*float64(x),
			-halfWidth + step*float64(y),
			g.At(x, y),
		})
	}

	things := make([]geometry.Thing, 0, 2*(g.Size-1)*(g.Size-1))
	for x := 0; x < g.Size-1; x++ {
		for y := 0; y < g.Size-1; y++ {
			a := corner(x, y)
			b := corner(x+1, y)
			c := corner(x, y+1)
			d := corner(x+1, y+1)

			// Both triangles wind counter-clockwise seen from +z.
			for _, tri := range [][3]vec3.T{{a, b, c}, {b, d, c}} {
				t, err := geometry.NewTriangle(tri[0], tri[1], tri[2], m)
				if err != nil {
					return nil, fmt.Errorf("while meshing cell (%d, %d): %w", x, y, err)
				}
				things = append(things, t)
			}
		}
	}
	return things, nil
}
