// Package crop runs the upload branch of a booth session: four uploaded
// images are cropped one after another against the mode's aspect ratio and
// the results appended to the session in upload order.
package crop

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	xdraw "golang.org/x/image/draw"

	"photobooth/internal/codec"
	"photobooth/internal/geometry"
	"photobooth/internal/session"
)

var (
	// ErrFinished is returned by operations issued after the fourth confirm.
	ErrFinished = errors.New("crop session finished")
	// ErrNotLoaded is returned when no image is loaded.
	ErrNotLoaded = errors.New("no image loaded")
)

// Upload is one user-selected file.
type Upload struct {
	Name string
	Data []byte
}

// DragState is the pointer state of the crop box.
type DragState int

const (
	DragIdle DragState = iota
	Dragging
)

// State is the crop box of the image being edited. Box coordinates are in
// displayed-image space; Natural* is the decoded pixel size.
type State struct {
	Box      geometry.Rect
	Zoom     float64
	DisplayW float64
	DisplayH float64
	NaturalW int
	NaturalH int
	Drag     DragState

	anchorX, anchorY float64
}

// Session is the crop controller for one upload batch. It is driven from a
// single goroutine.
type Session struct {
	sess    *session.Session
	target  session.Target
	uploads []Upload
	log     *slog.Logger
	quality int

	index  int
	img    image.Image
	state  State
	done   bool
	failed error
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }
func WithJPEGQuality(q int) Option     { return func(s *Session) { s.quality = q } }

// New validates the batch and prepares a crop session. A batch that is not
// exactly four files is rejected before the session is touched.
func New(sess *session.Session, uploads []Upload, opts ...Option) (*Session, error) {
	if len(uploads) != session.RequiredPhotos {
		return nil, fmt.Errorf("%w: got %d files, need %d", session.ErrInvalidUploadCount, len(uploads), session.RequiredPhotos)
	}
	s := &Session{
		sess:    sess,
		target:  sess.Target(),
		uploads: append([]Upload(nil), uploads...),
		log:     slog.Default(),
		quality: codec.CropQuality,
	}
	for _, o := range opts {
		o(s)
	}
	sess.Reset()
	return s, nil
}

// Start loads the first image.
func (s *Session) Start() error {
	return s.Load(0)
}

// Load decodes upload index and resets the crop box to the default zoom,
// centered. An index past the last upload finalizes the session.
func (s *Session) Load(index int) error {
	if s.failed != nil {
		return s.failed
	}
	if index >= len(s.uploads) {
		return s.finalize()
	}
	if index < 0 {
		return fmt.Errorf("crop index %d out of range", index)
	}

	up := s.uploads[index]
	img, err := codec.Decode(up.Data)
	if err != nil {
		s.failed = fmt.Errorf("load %q: %w", up.Name, err)
		s.img = nil
		s.log.Error("crop image decode failed", "session", s.sess.ID, "index", index, "file", up.Name, "error", err)
		return s.failed
	}

	w, h := codec.Size(img)
	s.index = index
	s.img = img
	s.state = State{
		Zoom:     geometry.DefaultZoom,
		DisplayW: float64(w),
		DisplayH: float64(h),
		NaturalW: w,
		NaturalH: h,
	}
	box := geometry.BoxForZoom(s.state.DisplayW, s.state.DisplayH, s.target.Aspect(), s.state.Zoom)
	s.state.Box = geometry.Center(box, s.state.DisplayW, s.state.DisplayH)
	s.log.Debug("crop image loaded", "session", s.sess.ID, "index", index, "file", up.Name, "width", w, "height", h)
	return nil
}

func (s *Session) finalize() error {
	s.done = true
	s.img = nil
	if !s.sess.Ready() {
		return fmt.Errorf("finalize crop: %w", session.ErrIncomplete)
	}
	s.log.Info("crop session complete", "session", s.sess.ID, "photos", s.sess.Len())
	return nil
}

func (s *Session) ready() error {
	switch {
	case s.failed != nil:
		return s.failed
	case s.done:
		return ErrFinished
	case s.img == nil:
		return ErrNotLoaded
	}
	return nil
}

// SetDisplaySize records the on-screen size of the current image. The box is
// scaled with the image so it keeps covering the same region.
func (s *Session) SetDisplaySize(w, h float64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid display size %vx%v", w, h)
	}
	sx, sy := w/s.state.DisplayW, h/s.state.DisplayH
	s.state.DisplayW, s.state.DisplayH = w, h
	origin := s.state.Box.Scale(sx, sy)
	box := geometry.BoxForZoom(w, h, s.target.Aspect(), s.state.Zoom)
	box.X, box.Y = origin.X, origin.Y
	s.state.Box = geometry.ClampBox(box, w, h)
	return nil
}

// Zoom resizes the box for percent, keeping its origin where possible.
func (s *Session) Zoom(percent float64) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.state.Zoom = geometry.ClampZoom(percent)
	box := geometry.BoxForZoom(s.state.DisplayW, s.state.DisplayH, s.target.Aspect(), s.state.Zoom)
	box.X, box.Y = s.state.Box.X, s.state.Box.Y
	s.state.Box = geometry.ClampBox(box, s.state.DisplayW, s.state.DisplayH)
	return nil
}

// DragStart begins a drag at pointer position (x, y) in display space.
func (s *Session) DragStart(x, y float64) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.state.Drag = Dragging
	s.state.anchorX = x - s.state.Box.X
	s.state.anchorY = y - s.state.Box.Y
	return nil
}

// DragMove moves the box with the pointer. It does nothing unless dragging.
func (s *Session) DragMove(x, y float64) {
	if s.state.Drag != Dragging || s.ready() != nil {
		return
	}
	box := s.state.Box
	box.X = x - s.state.anchorX
	box.Y = y - s.state.anchorY
	s.state.Box = geometry.ClampBox(box, s.state.DisplayW, s.state.DisplayH)
}

// DragEnd returns to the idle pointer state.
func (s *Session) DragEnd() {
	s.state.Drag = DragIdle
}

// Confirm renders the boxed region at the target size, appends it to the
// session and loads the next upload.
func (s *Session) Confirm() error {
	if err := s.ready(); err != nil {
		return err
	}

	sx := float64(s.state.NaturalW) / s.state.DisplayW
	sy := float64(s.state.NaturalH) / s.state.DisplayH
	src := s.state.Box.Scale(sx, sy).Image().Add(s.img.Bounds().Min).Intersect(s.img.Bounds())

	dst := image.NewNRGBA(image.Rect(0, 0, s.target.Width, s.target.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), s.img, src, xdraw.Src, nil)

	data, err := codec.EncodeJPEG(dst, s.quality)
	if err != nil {
		return err
	}
	if err := s.sess.Append(data); err != nil {
		return err
	}
	s.log.Debug("crop confirmed", "session", s.sess.ID, "index", s.index, "source", src.String())
	return s.Load(s.index + 1)
}

// State returns the current crop state.
func (s *Session) State() State { return s.state }

// Index is the zero-based index of the upload being cropped.
func (s *Session) Index() int { return s.index }

// Image is the decoded upload being cropped, nil when none is loaded.
func (s *Session) Image() image.Image { return s.img }

// Done reports whether all four uploads were confirmed.
func (s *Session) Done() bool { return s.done }

// Err is the error that aborted the session, if any.
func (s *Session) Err() error { return s.failed }

// CanProceed reports whether the preview may move on to customization.
func (s *Session) CanProceed() bool {
	return s.done && s.sess.Ready()
}
