//go:build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

func init() {
	Register("webcam", func(arg string) (Device, error) {
		idx := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, fmt.Errorf("webcam index %q: %w", arg, err)
			}
			idx = n
		}
		return &Webcam{Index: idx}, nil
	})
}

// Webcam reads frames from a local capture device through OpenCV.
type Webcam struct {
	Index int
}

func (w *Webcam) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := gocv.OpenVideoCapture(w.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d did not open", ErrPermissionDenied, w.Index)
	}
	if c.IdealWidth > 0 && c.IdealHeight > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.IdealWidth))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.IdealHeight))
	}
	return &webcamStream{vc: vc, mat: gocv.NewMat()}, nil
}

type webcamStream struct {
	mu      sync.Mutex
	vc      *gocv.VideoCapture
	mat     gocv.Mat
	stopped bool
}

func (s *webcamStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, fmt.Errorf("webcam read failed")
	}
	return s.mat.ToImage()
}

func (s *webcamStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.mat.Close()
	s.vc.Close()
}
