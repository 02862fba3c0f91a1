// Package capture drives the camera phase of a booth session: open the stream,
// let it settle, then count down and capture until four photos are collected.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"photobooth/internal/camera"
	"photobooth/internal/clock"
	"photobooth/internal/codec"
	"photobooth/internal/session"
)

// State is the capture controller's position in its state machine.
type State int

const (
	Idle State = iota
	StreamActive
	Countdown
	Capturing
	Done
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case StreamActive:
		return "stream-active"
	case Countdown:
		return "countdown"
	case Capturing:
		return "capturing"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrBusy is returned when Run is called while a run is in progress.
var ErrBusy = errors.New("capture already running")

// Controller owns the camera stream for one session. Only one Run may be
// active at a time; Cancel may be called from any goroutine, any number of times.
type Controller struct {
	sess    *session.Session
	dev     camera.Device
	clock   clock.Clock
	obs     Observer
	log     *slog.Logger
	quality int

	mu      sync.Mutex
	state   State
	running bool
	cancel  context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c clock.Clock) Option   { return func(ctl *Controller) { ctl.clock = c } }
func WithObserver(o Observer) Option   { return func(ctl *Controller) { ctl.obs = o } }
func WithLogger(l *slog.Logger) Option { return func(ctl *Controller) { ctl.log = l } }
func WithJPEGQuality(q int) Option     { return func(ctl *Controller) { ctl.quality = q } }

// New returns an idle controller for sess.
func New(sess *session.Session, dev camera.Device, opts ...Option) *Controller {
	c := &Controller{
		sess:    sess,
		dev:     dev,
		clock:   clock.Real{},
		obs:     NopObserver{},
		log:     slog.Default(),
		quality: codec.CaptureQuality,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.obs.StateChanged(s)
}

// Cancel stops an in-progress run. The run returns context.Canceled after
// releasing the stream.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the whole capture phase and blocks until four photos were
// appended to the session, the run was cancelled, or the camera failed.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	target := c.sess.Target()
	stream, err := c.dev.Open(ctx, camera.ConstraintsFor(target))
	if err != nil {
		if ctx.Err() != nil {
			return c.abort(ctx.Err())
		}
		c.setState(Idle)
		if errors.Is(err, session.ErrCameraUnavailable) {
			return fmt.Errorf("open camera: %w", err)
		}
		return fmt.Errorf("open camera: %w: %v", session.ErrCameraUnavailable, err)
	}
	defer func() {
		stream.Stop()
		c.obs.HideCountdown()
	}()

	// The stream may have been granted after a cancel raced the request.
	if ctx.Err() != nil {
		return c.abort(ctx.Err())
	}

	c.setState(StreamActive)
	c.sess.Reset()
	c.obs.Counter(1, target.RequiredPhotos)
	c.log.Info("camera stream active", "session", c.sess.ID, "mode", target.Mode,
		"ideal_width", target.IdealWidth, "ideal_height", target.IdealHeight)

	if err := clock.Sleep(ctx, c.clock, target.SettleDelay); err != nil {
		return c.abort(err)
	}

	for c.sess.Len() < target.RequiredPhotos {
		if err := c.countdown(ctx, target); err != nil {
			return c.abort(err)
		}
		if err := c.capture(ctx, stream, target); err != nil {
			return c.abort(err)
		}
		n := c.sess.Len()
		if n >= target.RequiredPhotos {
			break
		}
		c.obs.Counter(n+1, target.RequiredPhotos)
		if err := clock.Sleep(ctx, c.clock, target.InterCaptureDelay); err != nil {
			return c.abort(err)
		}
	}

	stream.Stop()
	c.setState(Done)
	c.log.Info("capture complete", "session", c.sess.ID, "photos", c.sess.Len())
	return nil
}

func (c *Controller) countdown(ctx context.Context, t session.Target) error {
	c.setState(Countdown)
	for n := t.CountdownTicks; n > 0; n-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.obs.Countdown(n)
		if err := clock.Sleep(ctx, c.clock, t.TickInterval); err != nil {
			return err
		}
	}
	c.obs.HideCountdown()
	return nil
}

func (c *Controller) capture(ctx context.Context, stream camera.Stream, t session.Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.setState(Capturing)

	frame, err := stream.Frame()
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	data, err := codec.EncodeJPEG(RenderFrame(frame, t), c.quality)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.sess.Append(data); err != nil {
		return err
	}
	index := c.sess.Len() - 1
	c.obs.Captured(index, data)
	c.log.Debug("photo captured", "session", c.sess.ID, "index", index, "bytes", len(data))

	if t.Mode == session.Vintage {
		c.obs.Flash()
		if err := c.obs.Shutter(); err != nil {
			c.log.Debug("shutter cue failed", "error", err)
		}
	}
	return nil
}

// abort records how the run ended. Cancellation marks the session so late
// completions cannot append to it.
func (c *Controller) abort(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.sess.Cancel()
		c.setState(Cancelled)
		c.log.Info("capture cancelled", "session", c.sess.ID, "photos", c.sess.Len())
		return err
	}
	c.setState(Idle)
	c.log.Error("capture failed", "session", c.sess.ID, "error", err)
	return err
}
