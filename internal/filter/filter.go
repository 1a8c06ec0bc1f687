// Package filter implements the booth's per-pixel color filters.
//
// Filters operate on non-premultiplied RGBA buffers (the layout a browser canvas
// hands out), never mutate their input, and leave alpha untouched.
package filter

import (
	"image"
	"image/draw"
	"math"

	"github.com/joseph-ayodele/photo-receipts/constants"
)

// transform maps one pixel's R, G, B to new (unclamped) values.
type transform func(r, g, b float64) (float64, float64, float64)

var transforms = map[constants.Filter]transform{
	constants.FilterVintage: func(r, g, b float64) (float64, float64, float64) {
		return 0.90*r + 20, 0.85*g + 15, 0.80*b + 10
	},
	constants.FilterWarm: func(r, g, b float64) (float64, float64, float64) {
		return 1.10 * r, 1.05 * g, 0.95 * b
	},
	constants.FilterCool: func(r, g, b float64) (float64, float64, float64) {
		return 0.95 * r, 1.00 * g, 1.10 * b
	},
	constants.FilterBlackWhite: func(r, g, b float64) (float64, float64, float64) {
		l := 0.299*r + 0.587*g + 0.114*b
		return l, l, l
	},
	constants.FilterSepia: func(r, g, b float64) (float64, float64, float64) {
		return 0.393*r + 0.769*g + 0.189*b,
			0.349*r + 0.686*g + 0.168*b,
			0.272*r + 0.534*g + 0.131*b
	},
	constants.FilterVibrant: func(r, g, b float64) (float64, float64, float64) {
		return 1.20 * r, 1.20 * g, 1.20 * b
	},
	constants.FilterPastel: func(r, g, b float64) (float64, float64, float64) {
		return (r + 255) / 2, (g + 255) / 2, (b + 255) / 2
	},
}

// Apply returns a filtered copy of src. FilterNone (and any kind without a
// transform) returns src itself.
func Apply(src *image.NRGBA, kind constants.Filter) *image.NRGBA {
	fn, ok := transforms[kind]
	if !ok {
		return src
	}

	bounds := src.Rect
	dst := image.NewNRGBA(bounds)
	width := bounds.Dx()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		si := src.PixOffset(bounds.Min.X, y)
		di := dst.PixOffset(bounds.Min.X, y)
		for x := 0; x < width; x++ {
			r, g, b := fn(float64(src.Pix[si]), float64(src.Pix[si+1]), float64(src.Pix[si+2]))
			dst.Pix[di] = clamp(r)
			dst.Pix[di+1] = clamp(g)
			dst.Pix[di+2] = clamp(b)
			dst.Pix[di+3] = src.Pix[si+3]
			si += 4
			di += 4
		}
	}
	return dst
}

// ApplyImage converts any decoded image to NRGBA and applies kind.
func ApplyImage(img image.Image, kind constants.Filter) *image.NRGBA {
	return Apply(ToNRGBA(img), kind)
}

// ToNRGBA returns img as *image.NRGBA, copying only when the concrete type differs.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)
	return dst
}

// clamp rounds half to even, matching Uint8ClampedArray assignment, and clamps to a byte.
func clamp(v float64) uint8 {
	v = math.RoundToEven(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
