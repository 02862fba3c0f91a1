package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
)

func init() {
	Register("pattern", func(string) (Device, error) { return NewPattern(), nil })
}

// Pattern is a synthetic device producing test-card frames at the requested
// resolution. It counts opened and live streams.
type Pattern struct {
	mu     sync.Mutex
	opened int
	active int
	last   Constraints
}

// NewPattern returns a ready synthetic device.
func NewPattern() *Pattern {
	return &Pattern{}
}

func (p *Pattern) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened++
	p.active++
	p.last = c
	w, h := c.IdealWidth, c.IdealHeight
	if w <= 0 || h <= 0 {
		w, h = 640, 480
	}
	return &patternStream{dev: p, w: w, h: h}, nil
}

// Opened is the number of streams ever opened.
func (p *Pattern) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// Active is the number of streams not yet stopped.
func (p *Pattern) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// LastConstraints returns the most recent request.
func (p *Pattern) LastConstraints() Constraints {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

type patternStream struct {
	dev     *Pattern
	w, h    int
	mu      sync.Mutex
	frame   int
	stopped bool
}

// Frame draws a horizontal gradient with a vertical bar that moves one step
// per frame; the left edge is marked red so mirroring is observable.
func (s *patternStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	s.frame++
	img := image.NewNRGBA(image.Rect(0, 0, s.w, s.h))
	bar := (s.frame * s.w / 8) % s.w
	edge := s.w / 16
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			v := uint8(x * 255 / s.w)
			c := color.NRGBA{R: v, G: v, B: 255 - v, A: 255}
			switch {
			case x < edge:
				c = color.NRGBA{R: 255, A: 255}
			case x >= bar && x < bar+edge:
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

func (s *patternStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.dev.mu.Lock()
	s.dev.active--
	s.dev.mu.Unlock()
}
