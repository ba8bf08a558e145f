package geometry

import (
	"row-major/pathtracer/ray"
)

// NoSkip disables the self-intersection exclusion in Nearest.
const NoSkip = -1

// Hit identifies the closest thing along a ray.
type Hit struct {
	T     float64
	Index int
}

// Nearest scans things for the closest hit along r, ignoring the thing at
// index skip.  On equal distances the earlier thing wins.
func Nearest(r ray.Ray, things []Thing, skip int) (Hit, bool) {
	best := Hit{Index: -1}
	for i := range things {
		if i == skip {
			continue
		}
		d, ok := things[i].HitBy(r)
		if !ok {
			continue
		}
		if best.Index == -1 || d < best.T {
			best = Hit{T: d, Index: i}
		}
	}
	return best, best.Index != -1
}
