// Package compose lays four photos out as a vertical strip with frames and an
// optional caption.
package compose

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"photobooth/internal/codec"
	"photobooth/internal/session"
)

// Reveal animation names applied by the shell when showing the result.
const (
	RevealModern  = "modern-reveal"
	RevealVintage = "vintage-drop"
)

// Decoder turns an encoded photo into an image.
type Decoder func(data []byte) (image.Image, error)

// Strip is a composed photo strip.
type Strip struct {
	Image     *image.NRGBA
	Mode      session.Mode
	Spec      Spec
	CreatedAt time.Time
}

// Reveal is the animation name for the strip's mode.
func (s *Strip) Reveal() string {
	if s.Mode == session.Modern {
		return RevealModern
	}
	return RevealVintage
}

// Composer draws strips.
type Composer struct {
	decode Decoder
	log    *slog.Logger
	now    func() time.Time
}

// Option configures a Composer.
type Option func(*Composer)

func WithDecoder(d Decoder) Option     { return func(c *Composer) { c.decode = d } }
func WithLogger(l *slog.Logger) Option { return func(c *Composer) { c.log = l } }

// New returns a Composer that decodes with codec.Decode.
func New(opts ...Option) *Composer {
	c := &Composer{decode: codec.Decode, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose decodes the four photos concurrently and draws them top to bottom in
// session order, whatever order the decodes finish in. Any decode failure
// aborts the whole composition.
func (c *Composer) Compose(ctx context.Context, photos [][]byte, spec Spec) (*Strip, error) {
	if len(photos) != session.RequiredPhotos {
		return nil, fmt.Errorf("compose %d photos: %w", len(photos), session.ErrIncomplete)
	}
	if spec.Date.IsZero() {
		spec.Date = c.now()
	}

	imgs := make([]image.Image, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	for i, data := range photos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := c.decode(data)
			if err != nil {
				return fmt.Errorf("photo %d: %w", i+1, err)
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Error("strip compose failed", "mode", spec.Mode, "error", err)
		return nil, err
	}

	dst := image.NewNRGBA(spec.Bounds())
	draw.Draw(dst, dst.Bounds(), image.NewUniform(spec.Background), image.Point{}, draw.Src)
	frame := image.NewUniform(spec.Frame)
	for i, img := range imgs {
		draw.Draw(dst, spec.FrameRect(i), frame, image.Point{}, draw.Src)
		xdraw.CatmullRom.Scale(dst, spec.PhotoRect(i), img, img.Bounds(), xdraw.Over, nil)
	}
	if err := drawText(dst, spec); err != nil {
		return nil, err
	}

	c.log.Info("strip composed", "mode", spec.Mode, "width", spec.StripWidth, "height", spec.Height(), "date", spec.IncludeDate, "note", spec.Note != "")
	return &Strip{Image: dst, Mode: spec.Mode, Spec: spec, CreatedAt: c.now()}, nil
}
