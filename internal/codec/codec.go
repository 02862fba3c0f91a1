// Package codec decodes uploaded and captured photos and encodes them back to
// JPEG. Every decode error is reported as session.ErrDecodeFailure.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"photobooth/internal/session"
)

const (
	// CaptureQuality matches the browser default for JPEG data URLs.
	CaptureQuality = 92
	// CropQuality is used for confirmed crops.
	CropQuality = 100
	// ExportQuality is used for the downloadable strip.
	ExportQuality = 95
)

// Decode reads any registered image format, honouring EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	return DecodeReader(bytes.NewReader(data))
}

// DecodeReader is Decode over a stream.
func DecodeReader(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrDecodeFailure, err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, fmt.Errorf("%w: empty image", session.ErrDecodeFailure)
	}
	return img, nil
}

// EncodeJPEG encodes img at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJPEG(&buf, img, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJPEG encodes img to w.
func WriteJPEG(w io.Writer, img image.Image, quality int) error {
	if quality < 1 || quality > 100 {
		quality = ExportQuality
	}
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

// Size returns the pixel dimensions of img.
func Size(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
