package compose

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"photobooth/internal/session"
)

// Text sizes in pixels.
const (
	VintageDateSize = 18
	ModernNoteSize  = 24
	ModernDateSize  = 16

	// ModernDateOffset is the distance from the note baseline to the date
	// baseline when both are drawn.
	ModernDateOffset = 30
)

var (
	ModernNoteColor = color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	ModernDateColor = color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
)

type fonts struct {
	mono   *opentype.Font
	italic *opentype.Font
}

var (
	fontsOnce sync.Once
	fontsVal  *fonts
	fontsErr  error
)

// loadFonts parses the embedded fonts once. Faces hold a glyph buffer and
// are built for each draw.
func loadFonts() (*fonts, error) {
	fontsOnce.Do(func() {
		mono, err := opentype.Parse(gomono.TTF)
		if err != nil {
			fontsErr = fmt.Errorf("parse mono font: %w", err)
			return
		}
		italic, err := opentype.Parse(gomonoitalic.TTF)
		if err != nil {
			fontsErr = fmt.Errorf("parse italic font: %w", err)
			return
		}
		fontsVal = &fonts{mono: mono, italic: italic}
	})
	return fontsVal, fontsErr
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("font face %vpx: %w", size, err)
	}
	return face, nil
}

// VintageDate formats t as MM.DD.YYYY.
func VintageDate(t time.Time) string {
	return fmt.Sprintf("%02d.%02d.%d", int(t.Month()), t.Day(), t.Year())
}

// ModernDate formats t as a short month name, day and year.
func ModernDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// drawText draws the note and date lines under the photos.
func drawText(dst *image.NRGBA, s Spec) error {
	if !s.HasText() {
		return nil
	}
	f, err := loadFonts()
	if err != nil {
		return err
	}
	cx := s.StripWidth / 2
	y := s.TextBaseline()

	if s.Mode != session.Modern {
		face, err := newFace(f.mono, VintageDateSize)
		if err != nil {
			return err
		}
		defer face.Close()
		c := color.NRGBA{A: 255}
		if IsDark(s.Background) {
			c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		drawCentered(dst, face, VintageDate(s.Date), c, cx, y)
		return nil
	}

	if s.Note != "" {
		face, err := newFace(f.italic, ModernNoteSize)
		if err != nil {
			return err
		}
		defer face.Close()
		drawCentered(dst, face, s.Note, ModernNoteColor, cx, y)
		y += ModernDateOffset
	}
	if s.IncludeDate {
		face, err := newFace(f.mono, ModernDateSize)
		if err != nil {
			return err
		}
		defer face.Close()
		drawCentered(dst, face, ModernDate(s.Date), ModernDateColor, cx, y)
	}
	return nil
}

func drawCentered(dst *image.NRGBA, face font.Face, text string, c color.Color, cx, baseline int) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	w := d.MeasureString(text)
	d.Dot = fixed.Point26_6{X: fixed.I(cx) - w/2, Y: fixed.I(baseline)}
	d.DrawString(text)
}
