// Package booth owns one kiosk's session and moves it through the booth
// phases: mode selection, camera or upload, customization and result. It is
// the only place phase transitions happen; the Shell merely renders them.
package booth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"photobooth/internal/camera"
	"photobooth/internal/capture"
	"photobooth/internal/clock"
	"photobooth/internal/codec"
	"photobooth/internal/compose"
	"photobooth/internal/crop"
	"photobooth/internal/export"
	"photobooth/internal/logging"
	"photobooth/internal/session"
)

// Phase is the booth's position in the kiosk flow.
type Phase int

const (
	PhaseHome Phase = iota
	PhaseUploadChoice
	PhaseCamera
	PhaseUpload
	PhaseCrop
	PhasePreview
	PhaseCustomize
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseHome:
		return "home"
	case PhaseUploadChoice:
		return "upload-choice"
	case PhaseCamera:
		return "camera"
	case PhaseUpload:
		return "upload"
	case PhaseCrop:
		return "crop"
	case PhasePreview:
		return "preview"
	case PhaseCustomize:
		return "customize"
	case PhaseResult:
		return "result"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var (
	// ErrWrongPhase is returned for actions the current phase does not offer.
	ErrWrongPhase = errors.New("action not available in this phase")
	// ErrNoStrip is returned by Download before a strip was generated.
	ErrNoStrip = errors.New("no strip generated")
)

// Store keeps exported strips for later download.
type Store interface {
	Put(ctx context.Context, a *export.Artifact) error
}

// Status is a snapshot of the booth for status endpoints.
type Status struct {
	Phase   string       `json:"phase"`
	Mode    session.Mode `json:"mode,omitempty"`
	Session string       `json:"session,omitempty"`
	Photos  int          `json:"photos"`
	Strip   string       `json:"strip,omitempty"`
}

// Booth drives a single kiosk. All methods are safe for concurrent use.
type Booth struct {
	shell    Shell
	dev      camera.Device
	composer *compose.Composer
	exporter *export.Exporter
	store    Store
	clock    clock.Clock
	log      *slog.Logger
	defaults compose.Options

	captureQuality int
	cropQuality    int

	mu         sync.Mutex
	phase      Phase
	phaseStart time.Time
	sess       *session.Session
	ctl        *capture.Controller
	stopRun    context.CancelFunc
	crop       *crop.Session
	opts       compose.Options
	artifact   *export.Artifact
	runs       sync.WaitGroup
}

// Option configures a Booth.
type Option func(*Booth)

func WithClock(c clock.Clock) Option          { return func(b *Booth) { b.clock = c } }
func WithLogger(l *slog.Logger) Option        { return func(b *Booth) { b.log = l } }
func WithComposer(c *compose.Composer) Option { return func(b *Booth) { b.composer = c } }
func WithExporter(e *export.Exporter) Option  { return func(b *Booth) { b.exporter = e } }
func WithStore(s Store) Option                { return func(b *Booth) { b.store = s } }
func WithCaptureQuality(q int) Option         { return func(b *Booth) { b.captureQuality = q } }
func WithCropQuality(q int) Option            { return func(b *Booth) { b.cropQuality = q } }

// WithDefaults sets the colors preselected on the customization screen.
func WithDefaults(o compose.Options) Option {
	return func(b *Booth) { b.defaults = compose.Options{Background: o.Background, Frame: o.Frame} }
}

// New returns a booth at the home screen.
func New(shell Shell, dev camera.Device, opts ...Option) *Booth {
	b := &Booth{
		shell:          shell,
		dev:            dev,
		clock:          clock.Real{},
		log:            slog.Default(),
		captureQuality: codec.CaptureQuality,
		cropQuality:    codec.CropQuality,
	}
	for _, o := range opts {
		o(b)
	}
	if b.composer == nil {
		b.composer = compose.New(compose.WithLogger(b.log))
	}
	if b.exporter == nil {
		b.exporter = export.New(export.DefaultBrand, export.WithLogger(b.log))
	}
	b.phaseStart = b.clock.Now()
	return b
}

// Status reports the current phase and session.
func (b *Booth) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{Phase: b.phase.String()}
	if b.sess != nil {
		st.Mode = b.sess.Mode
		st.Session = b.sess.ID
		st.Photos = b.sess.Len()
	}
	if b.artifact != nil {
		st.Strip = b.artifact.ID
	}
	return st
}

// Phase returns the current phase.
func (b *Booth) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

func (b *Booth) enter(p Phase) {
	if b.phase != p {
		id := ""
		if b.sess != nil {
			id = b.sess.ID
		}
		logging.LogPhaseComplete(b.log, b.phase.String(), id, b.clock.Now().Sub(b.phaseStart))
		logging.LogPhaseStart(b.log, p.String(), id)
	}
	b.phase = p
	b.phaseStart = b.clock.Now()
}

func (b *Booth) expect(p Phase) error {
	if b.phase != p {
		return fmt.Errorf("%w: in %s, need %s", ErrWrongPhase, b.phase, p)
	}
	return nil
}

// SelectMode starts a fresh session. Vintage goes straight to the camera;
// Modern offers the upload or camera choice.
func (b *Booth) SelectMode(mode session.Mode) error {
	mode, err := session.ParseMode(string(mode))
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase != PhaseHome {
		b.goHomeLocked()
	}

	b.sess = session.New(mode)
	b.opts = b.defaults
	b.shell.Theme(mode)
	b.shell.Hide(ScreenHome)
	b.log.Info("mode selected", "session", b.sess.ID, "mode", mode)

	if mode == session.Vintage {
		b.shell.Show(ScreenCamera)
		return b.startCameraLocked()
	}
	b.enter(PhaseUploadChoice)
	b.shell.Show(ScreenUploadChoice)
	return nil
}

// StartCamera picks the camera from the upload choice screen.
func (b *Booth) StartCamera() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhaseUploadChoice); err != nil {
		return err
	}
	b.shell.Hide(ScreenUploadChoice)
	b.shell.Show(ScreenCamera)
	return b.startCameraLocked()
}

func (b *Booth) startCameraLocked() error {
	if b.ctl != nil {
		return capture.ErrBusy
	}
	ctl := capture.New(b.sess, b.dev,
		capture.WithClock(b.clock),
		capture.WithObserver(shellObserver{shell: b.shell, log: b.log}),
		capture.WithLogger(b.log),
		capture.WithJPEGQuality(b.captureQuality),
	)
	ctx, cancel := context.WithCancel(context.Background())
	b.ctl, b.stopRun = ctl, cancel
	b.enter(PhaseCamera)

	b.runs.Add(1)
	go func() {
		defer b.runs.Done()
		err := ctl.Run(ctx)
		b.captureFinished(ctl, err)
	}()
	return nil
}

func (b *Booth) captureFinished(ctl *capture.Controller, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctl != ctl {
		// Superseded by go-home or a new mode selection.
		return
	}
	b.stopRun()
	b.ctl, b.stopRun = nil, nil

	switch {
	case err == nil:
		b.shell.Hide(ScreenCamera)
		b.showCustomizationLocked()
	case errors.Is(err, context.Canceled):
		b.goHomeLocked()
	default:
		b.abortLocked(err)
	}
}

// CancelCamera stops the capture phase and returns home.
func (b *Booth) CancelCamera() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhaseCamera); err != nil {
		return err
	}
	b.goHomeLocked()
	return nil
}

// ChooseUpload picks uploading from the upload choice screen.
func (b *Booth) ChooseUpload() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhaseUploadChoice); err != nil {
		return err
	}
	b.shell.Hide(ScreenUploadChoice)
	b.shell.Show(ScreenUpload)
	b.enter(PhaseUpload)
	return nil
}

// HandleUpload starts cropping a batch. A batch that is not exactly four
// files raises an alert and clears the input without touching the session.
func (b *Booth) HandleUpload(uploads []crop.Upload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhaseUpload); err != nil {
		return err
	}
	cs, err := crop.New(b.sess, uploads, crop.WithLogger(b.log), crop.WithJPEGQuality(b.cropQuality))
	if err != nil {
		b.log.Warn("upload rejected", "session", b.sess.ID, "files", len(uploads))
		b.shell.Alert(AlertMessage(err))
		b.shell.ResetUpload()
		return err
	}
	if err := cs.Start(); err != nil {
		return b.abortLocked(err)
	}
	b.crop = cs
	b.enter(PhaseCrop)
	return nil
}

// CropState is the crop box of the image being edited.
func (b *Booth) CropState() (crop.State, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhaseCrop); err != nil {
		return crop.State{}, 0, err
	}
	return b.crop.State(), b.crop.Index(), nil
}

// SetDisplaySize records the on-screen size of the image being cropped.
func (b *Booth) SetDisplaySize(w, h float64) error {
	return b.withCrop(func(cs *crop.Session) error { return cs.SetDisplaySize(w, h) })
}

// Zoom resizes the crop box.
func (b *Booth) Zoom(percent float64) error {
	return b.withCrop(func(cs *crop.Session) error { return cs.Zoom(percent) })
}

// DragStart begins moving the crop box.
func (b *Booth) DragStart(x, y float64) error {
	return b.withCrop(func(cs *crop.Session) error { return cs.DragStart(x, y) })
}

// DragMove moves the crop box while dragging.
func (b *Booth) DragMove(x, y float64) error {
	return b.withCrop(func(cs *crop.Session) error { cs.DragMove(x, y); return nil })
}

// DragEnd releases the crop box.
func (b *Booth) DragEnd() error {
	return b.withCrop(func(cs *crop.Session) error { cs.DragEnd(); return nil })
}

func (b *Booth) withCrop(fn func(*crop.Session) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhaseCrop); err != nil {
		return err
	}
	if err := fn(b.crop); err != nil {
		if errors.Is(err, session.ErrDecodeFailure) {
			return b.abortLocked(err)
		}
		return err
	}
	return nil
}

// ConfirmCrop accepts the current crop. After the fourth confirm the upload
// preview is shown with proceed enabled.
func (b *Booth) ConfirmCrop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhaseCrop); err != nil {
		return err
	}
	if err := b.crop.Confirm(); err != nil {
		if errors.Is(err, session.ErrDecodeFailure) || errors.Is(err, session.ErrIncomplete) {
			return b.abortLocked(err)
		}
		return err
	}
	if !b.crop.Done() {
		return nil
	}
	b.enter(PhasePreview)
	b.shell.Preview(Preview{
		Screen:     ScreenUpload,
		Photos:     b.sess.Photos(),
		CanProceed: b.crop.CanProceed(),
	})
	return nil
}

// CancelUpload abandons the upload branch.
func (b *Booth) CancelUpload() {
	b.GoHome()
}

// Proceed moves from the upload preview to customization.
func (b *Booth) Proceed() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhasePreview); err != nil {
		return err
	}
	if !b.sess.Ready() {
		return session.ErrIncomplete
	}
	b.crop = nil
	b.shell.Hide(ScreenUpload)
	b.showCustomizationLocked()
	return nil
}

func (b *Booth) showCustomizationLocked() {
	b.enter(PhaseCustomize)
	options := []string{OptionBackground, OptionDate}
	if b.sess.Mode == session.Modern {
		options = []string{OptionFrame, OptionNote, OptionDate}
	}
	b.shell.Preview(Preview{
		Screen:     ScreenCustomization,
		Photos:     b.sess.Photos(),
		Grayscale:  b.sess.Mode == session.Vintage,
		CanProceed: true,
		Options:    options,
	})
	b.shell.Show(ScreenCustomization)
}

// Customize sets the strip options. Empty colors keep the configured defaults.
func (b *Booth) Customize(opts compose.Options) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhaseCustomize); err != nil {
		return err
	}
	if opts.Background == "" {
		opts.Background = b.defaults.Background
	}
	if opts.Frame == "" {
		opts.Frame = b.defaults.Frame
	}
	if _, err := compose.NewSpec(b.sess.Mode, opts); err != nil {
		return err
	}
	b.opts = opts
	return nil
}

// Generate composes and exports the strip, then shows the result screen.
func (b *Booth) Generate(ctx context.Context) (*export.Artifact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.expect(PhaseCustomize); err != nil {
		return nil, err
	}
	if !b.sess.Ready() {
		return nil, session.ErrIncomplete
	}
	spec, err := compose.NewSpec(b.sess.Mode, b.opts)
	if err != nil {
		return nil, err
	}
	strip, err := b.composer.Compose(ctx, b.sess.Photos(), spec)
	if err != nil {
		if errors.Is(err, session.ErrDecodeFailure) {
			return nil, b.abortLocked(err)
		}
		return nil, err
	}
	art, err := b.exporter.Export(strip)
	if err != nil {
		return nil, err
	}
	if b.store != nil {
		if err := b.store.Put(ctx, art); err != nil {
			b.log.Warn("strip not stored", "id", art.ID, "error", err)
		}
	}
	b.artifact = art
	b.shell.Hide(ScreenCustomization)
	b.shell.Show(ScreenResult)
	b.enter(PhaseResult)
	b.shell.Result(Result{Artifact: art, Reveal: strip.Reveal()})
	return art, nil
}

// Download returns the generated strip.
func (b *Booth) Download() (*export.Artifact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.artifact == nil {
		return nil, ErrNoStrip
	}
	return b.artifact, nil
}

// GoHome abandons everything: the camera is released, the session, options
// and uploads are cleared and the home screen is shown.
func (b *Booth) GoHome() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.goHomeLocked()
}

func (b *Booth) goHomeLocked() {
	if b.stopRun != nil {
		b.stopRun()
	}
	if b.sess != nil {
		b.sess.Cancel()
	}
	b.ctl, b.stopRun = nil, nil
	b.sess = nil
	b.crop = nil
	b.opts = compose.Options{}
	b.artifact = nil

	b.shell.HideCountdown()
	b.shell.Theme("")
	for _, s := range Screens {
		b.shell.Hide(s)
	}
	b.shell.ResetUpload()
	b.shell.Show(ScreenHome)
	b.enter(PhaseHome)
}

func (b *Booth) abortLocked(err error) error {
	id := ""
	if b.sess != nil {
		id = b.sess.ID
	}
	logging.LogPhaseError(b.log, b.phase.String(), id, err)
	b.shell.Alert(AlertMessage(err))
	b.goHomeLocked()
	return err
}

// Wait blocks until no capture run is in flight.
func (b *Booth) Wait() {
	b.runs.Wait()
}

// Close returns home and waits for the camera to be released.
func (b *Booth) Close() {
	b.GoHome()
	b.runs.Wait()
}
