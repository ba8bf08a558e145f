// Package radiance accumulates path-traced samples per pixel.
//
// An Image keeps running sums rather than averages, so a render can be saved,
// reloaded and topped up with more samples later.
package radiance

import (
	"fmt"

	"row-major/pathtracer/imageio"
	"row-major/pathtracer/vmath/rgb"
)

type Image struct {
	Width, Height int

	// Bounce limit the samples were traced with.  Resumed renders must match
	// it or the new samples would estimate a different image.
	Bounces int

	// Three sums per pixel, row-major.
	Sums []float64

	// One sample count per pixel, row-major.
	Counts []uint32
}

func New(width, height int) *Image {
	im := &Image{}
	im.Resize(width, height)
	return im
}

// Resize discards all samples and sets the dimensions.
func (im *Image) Resize(width, height int) {
	im.Width = width
	im.Height = height

	im.Sums = make([]float64, 3*width*height)
	im.Counts = make([]uint32, width*height)
}

func (im *Image) index(px, py int) int {
	return py*im.Width + px
}

// Record adds n samples whose radiance sums to sum at pixel (px, py).
func (im *Image) Record(px, py int, sum rgb.T, n int) {
	idx := im.index(px, py)
	im.Sums[3*idx+0] += sum[0]
	im.Sums[3*idx+1] += sum[1]
	im.Sums[3*idx+2] += sum[2]
	im.Counts[idx] += uint32(n)
}

func (im *Image) Count(px, py int) int {
	return int(im.Counts[im.index(px, py)])
}

// Mean returns the average radiance of pixel (px, py), or black if it holds no
// samples.
func (im *Image) Mean(px, py int) rgb.T {
	idx := im.index(px, py)
	n := im.Counts[idx]
	if n == 0 {
		return rgb.Black
	}
	sum := rgb.T{im.Sums[3*idx+0], im.Sums[3*idx+1], im.Sums[3*idx+2]}
	return rgb.DivCS(sum, float64(n))
}

// TotalSamples is the number of samples recorded across all pixels.
func (im *Image) TotalSamples() int {
	total := 0
	for _, c := range im.Counts {
		total += int(c)
	}
	return total
}

// Cut copies rows [rowSrc, rowLim) into a new image.
func (im *Image) Cut(rowSrc, rowLim int) *Image {
	dst := &Image{Bounces: im.Bounces}
	dst.Resize(im.Width, rowLim-rowSrc)

	copy(dst.Sums, im.Sums[3*rowSrc*im.Width:3*rowLim*im.Width])
	copy(dst.Counts, im.Counts[rowSrc*im.Width:rowLim*im.Width])

	return dst
}

// Paste overwrites the rows starting at rowSrc with the contents of src, which
// must have the same width.
func (im *Image) Paste(src *Image, rowSrc int) {
	copy(im.Sums[3*rowSrc*im.Width:], src.Sums)
	copy(im.Counts[rowSrc*im.Width:], src.Counts)
}

// Resolve averages and quantizes every pixel into an 8-bit buffer.
func (im *Image) Resolve() *imageio.Buffer {
	buf := imageio.NewBuffer(im.Width, im.Height)
	for py := 0; py < im.Height; py++ {
		for px := 0; px < im.Width; px++ {
			buf.Set(px, py, rgb.Quantize(im.Mean(px, py)))
		}
	}
	return buf
}

// CheckCompatible reports why samples for a width x height image traced with
// the given bounce limit cannot be added to im.
func (im *Image) CheckCompatible(width, height, bounces int) error {
	if im.Width != width || im.Height != height {
		return fmt.Errorf("existing image is %dx%d, want %dx%d", im.Width, im.Height, width, height)
	}
	if im.Bounces != bounces {
		return fmt.Errorf("existing image was traced with %d bounces, want %d", im.Bounces, bounces)
	}
	return nil
}
