// Package rgb holds unnormalized radiance and reflectance triples.
package rgb

import "math"

type T [3]float64

var (
	Black = T{0, 0, 0}
	White = T{1, 1, 1}
)

func AddCC(a, b T) T {
	return T{
		a[0] + b[0],
		a[1] + b[1],
		a[2] + b[2],
	}
}

// MulCC filters a through b, channel by channel.
func MulCC(a, b T) T {
	return T{
		a[0] * b[0],
		a[1] * b[1],
		a[2] * b[2],
	}
}

func MulCS(a T, s float64) T {
	return T{
		a[0] * s,
		a[1] * s,
		a[2] * s,
	}
}

func DivCS(a T, s float64) T {
	return T{
		a[0] / s,
		a[1] / s,
		a[2] / s,
	}
}

// Clamp limits each channel to [0, 1].  NaN maps to 0.
func Clamp(a T) T {
	result := T{}
	for i, c := range a {
		switch {
		case !(c > 0):
			result[i] = 0
		case c > 1:
			result[i] = 1
		default:
			result[i] = c
		}
	}
	return result
}

// Quantize converts a to 8-bit channels as round(255 * clamp(c)).
func Quantize(a T) [3]uint8 {
	c := Clamp(a)
	return [3]uint8{
		uint8(math.Round(255 * c[0])),
		uint8(math.Round(255 * c[1])),
		uint8(math.Round(255 * c[2])),
	}
}
