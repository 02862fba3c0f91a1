//go:build imagick

package export

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"gopkg.in/gographics/imagick.v3/imagick"
)

func init() {
	RegisterEncoder("imagick", EncoderFunc(encodeMagick))
}

// encodeMagick encodes through ImageMagick, which writes progressive JPEGs
// with stripped metadata.
func encodeMagick(w io.Writer, img image.Image, quality int) error {
	imagick.Initialize()
	defer imagick.Terminate()

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	if err := mw.ConstituteImage(uint(b.Dx()), uint(b.Dy()), "RGBA", imagick.PIXEL_CHAR, nrgba.Pix); err != nil {
		return fmt.Errorf("imagick constitute: %w", err)
	}
	if err := mw.SetImageFormat("JPEG"); err != nil {
		return fmt.Errorf("imagick format: %w", err)
	}
	if err := mw.SetImageCompressionQuality(uint(quality)); err != nil {
		return fmt.Errorf("imagick quality: %w", err)
	}
	if err := mw.SetInterlaceScheme(imagick.INTERLACE_JPEG); err != nil {
		return fmt.Errorf("imagick interlace: %w", err)
	}
	if err := mw.StripImage(); err != nil {
		return fmt.Errorf("imagick strip: %w", err)
	}
	if _, err := w.Write(mw.GetImageBlob()); err != nil {
		return fmt.Errorf("imagick write: %w", err)
	}
	return nil
}
