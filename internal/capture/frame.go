package capture

import (
	"image"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"photobooth/internal/filter"
	"photobooth/internal/geometry"
	"photobooth/internal/session"
)

// RenderFrame turns a raw device frame into a photo of the target size: the
// frame is center-cropped to the target aspect, scaled, mirrored so the saved
// image matches the on-screen preview, and for Vintage run through the
// monochrome contrast filter.
func RenderFrame(frame image.Image, t session.Target) *image.NRGBA {
	b := frame.Bounds()
	src := geometry.FitRect(float64(b.Dx()), float64(b.Dy()), t.Aspect()).Image().Add(b.Min)

	dst := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), frame, src, xdraw.Src, nil)

	out := imaging.FlipH(dst)
	if t.Mode == session.Vintage {
		filter.ApplyNRGBA(out, filter.DefaultContrast)
	}
	return out
}
