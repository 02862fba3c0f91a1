// Package filter implements the vintage monochrome look.
package filter

import (
	"image"
	"math"
)

// DefaultContrast is the contrast factor used for vintage captures.
const DefaultContrast = 1.3

// MonochromeContrast converts RGBA-interleaved pixels in place: each pixel's
// color channels become the contrast-stretched mean of r, g and b. Alpha is
// not modified. A trailing partial pixel is ignored.
func MonochromeContrast(pix []uint8, factor float64) {
	for i := 0; i+3 < len(pix); i += 4 {
		lum := (float64(pix[i]) + float64(pix[i+1]) + float64(pix[i+2])) / 3
		v := stretch(lum, factor)
		pix[i] = v
		pix[i+1] = v
		pix[i+2] = v
	}
}

// ApplyNRGBA runs MonochromeContrast over an NRGBA image row by row so
// sub-images with a wider stride are handled correctly.
func ApplyNRGBA(img *image.NRGBA, factor float64) {
	b := img.Bounds()
	rowLen := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		MonochromeContrast(img.Pix[off:off+rowLen], factor)
	}
}

func stretch(lum, factor float64) uint8 {
	adjusted := (lum-128)*factor + 128
	if adjusted < 0 {
		return 0
	}
	if adjusted > 255 {
		return 255
	}
	// Clamped byte stores round half to even.
	return uint8(math.RoundToEven(adjusted))
}
