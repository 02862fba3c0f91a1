package booth

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"photobooth/internal/camera"
	"photobooth/internal/clock"
	"photobooth/internal/compose"
	"photobooth/internal/crop"
	"photobooth/internal/export"
	"photobooth/internal/session"
)

func TestVintageFlowEndsWithStrip(t *testing.T) {
	shell := &recordingShell{}
	dev := camera.NewPattern()
	store := &memStore{}
	b := New(shell, dev, WithClock(clock.NewFake(time.Unix(0, 0))), WithLogger(quietLogger()), WithStore(store))

	if err := b.SelectMode(session.Vintage); err != nil {
		t.Fatal(err)
	}
	b.Wait()

	if b.Phase() != PhaseCustomize {
		t.Fatalf("expected customize phase, got %v", b.Phase())
	}
	if dev.Active() != 0 {
		t.Fatalf("camera not released after fourth capture")
	}
	p := shell.lastPreview()
	if !p.Grayscale || len(p.Photos) != 4 || p.Screen != ScreenCustomization {
		t.Fatalf("unexpected customization preview %+v", p)
	}
	if !equalStrings(p.Options, []string{OptionBackground, OptionDate}) {
		t.Fatalf("vintage options %v", p.Options)
	}
	if got := shell.counters(); !equalStrings(got, []string{"Photo 1 of 4", "Photo 2 of 4", "Photo 3 of 4", "Photo 4 of 4"}) {
		t.Fatalf("counters %v", got)
	}

	if err := b.Customize(compose.Options{IncludeDate: true}); err != nil {
		t.Fatal(err)
	}
	art, err := b.Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if art.Width != 400 || art.Height != 2095 {
		t.Fatalf("strip is %dx%d", art.Width, art.Height)
	}
	if b.Phase() != PhaseResult {
		t.Fatalf("expected result phase, got %v", b.Phase())
	}
	if r := shell.lastResult(); r.Reveal != compose.RevealVintage || r.Artifact != art {
		t.Fatalf("unexpected result %+v", r)
	}
	if got, err := b.Download(); err != nil || got != art {
		t.Fatalf("download returned %v, %v", got, err)
	}
	if store.len() != 1 {
		t.Fatalf("artifact not stored")
	}
}

func TestModernUploadFlow(t *testing.T) {
	shell := &recordingShell{}
	b := New(shell, camera.NewPattern(), WithLogger(quietLogger()))

	if err := b.SelectMode(session.Modern); err != nil {
		t.Fatal(err)
	}
	if b.Phase() != PhaseUploadChoice {
		t.Fatalf("modern should offer a choice, got %v", b.Phase())
	}
	if err := b.ChooseUpload(); err != nil {
		t.Fatal(err)
	}

	uploads := make([]crop.Upload, 4)
	for i := range uploads {
		uploads[i] = crop.Upload{Name: "p.png", Data: solidPNG(t, 640+i*100, 480)}
	}

	err := b.HandleUpload(uploads[:3])
	if !errors.Is(err, session.ErrInvalidUploadCount) {
		t.Fatalf("expected ErrInvalidUploadCount, got %v", err)
	}
	if got := shell.lastAlert(); got != "Please upload exactly 4 photos." {
		t.Fatalf("alert %q", got)
	}
	if shell.resets() != 1 || b.Phase() != PhaseUpload || b.Status().Photos != 0 {
		t.Fatalf("rejected batch changed state: resets=%d phase=%v", shell.resets(), b.Phase())
	}

	if err := b.HandleUpload(uploads); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, idx, err := b.CropState(); err != nil || idx != i {
			t.Fatalf("crop state %d: idx=%d err=%v", i, idx, err)
		}
		if err := b.ConfirmCrop(); err != nil {
			t.Fatal(err)
		}
	}
	if b.Phase() != PhasePreview {
		t.Fatalf("expected preview, got %v", b.Phase())
	}
	if p := shell.lastPreview(); !p.CanProceed || len(p.Photos) != 4 || p.Grayscale {
		t.Fatalf("unexpected upload preview %+v", p)
	}
	if err := b.Proceed(); err != nil {
		t.Fatal(err)
	}
	if p := shell.lastPreview(); !equalStrings(p.Options, []string{OptionFrame, OptionNote, OptionDate}) {
		t.Fatalf("modern options %v", p.Options)
	}
	if err := b.Customize(compose.Options{Frame: "nope"}); err == nil {
		t.Fatalf("expected invalid color")
	}
	if err := b.Customize(compose.Options{Frame: "mint", Note: "hello"}); err != nil {
		t.Fatal(err)
	}
	art, err := b.Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if art.Height != 1245 || art.Mode != session.Modern {
		t.Fatalf("unexpected artifact %+v", art)
	}
	if shell.lastResult().Reveal != compose.RevealModern {
		t.Fatalf("modern reveal not used")
	}
}

func TestCancelMidCountdownReturnsHome(t *testing.T) {
	shell := &recordingShell{}
	dev := camera.NewPattern()
	b := New(shell, dev, WithClock(clock.NewFake(time.Unix(0, 0))), WithLogger(quietLogger()))
	shell.onCountdown = func(n int) {
		if n == 2 {
			if err := b.CancelCamera(); err != nil {
				t.Errorf("cancel: %v", err)
			}
		}
	}

	if err := b.SelectMode(session.Vintage); err != nil {
		t.Fatal(err)
	}
	b.Wait()

	if b.Phase() != PhaseHome {
		t.Fatalf("expected home, got %v", b.Phase())
	}
	if dev.Active() != 0 {
		t.Fatalf("stream still active")
	}
	if got := shell.countdowns(); len(got) != 2 || got[0] != 3 || got[1] != 2 {
		t.Fatalf("countdown continued after cancel: %v", got)
	}
	if shell.flashCount() != 0 {
		t.Fatalf("a photo was captured after cancel")
	}
	if st := b.Status(); st.Photos != 0 || st.Mode != "" {
		t.Fatalf("session not reset: %+v", st)
	}
	if shell.hiddenCountdowns() == 0 || shell.lastShown() != ScreenHome || shell.lastTheme() != "" {
		t.Fatalf("shell not returned home")
	}
}

func TestCameraUnavailableAlertsAndGoesHome(t *testing.T) {
	shell := &recordingShell{}
	b := New(shell, deniedDevice{}, WithLogger(quietLogger()))

	if err := b.SelectMode(session.Vintage); err != nil {
		t.Fatal(err)
	}
	b.Wait()

	if got := shell.lastAlert(); got != AlertMessage(session.ErrCameraUnavailable) {
		t.Fatalf("alert %q", got)
	}
	if b.Phase() != PhaseHome {
		t.Fatalf("expected home, got %v", b.Phase())
	}
}

func TestCropDecodeFailureAbortsToHome(t *testing.T) {
	shell := &recordingShell{}
	b := New(shell, camera.NewPattern(), WithLogger(quietLogger()))
	_ = b.SelectMode(session.Modern)
	_ = b.ChooseUpload()

	good := solidPNG(t, 800, 600)
	uploads := []crop.Upload{{Data: good}, {Data: []byte("not an image")}, {Data: good}, {Data: good}}
	if err := b.HandleUpload(uploads); err != nil {
		t.Fatal(err)
	}
	if err := b.ConfirmCrop(); !errors.Is(err, session.ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
	if b.Phase() != PhaseHome || shell.lastAlert() == "" {
		t.Fatalf("decode failure did not abort: phase=%v", b.Phase())
	}
}

func TestActionsOutsideTheirPhase(t *testing.T) {
	b := New(&recordingShell{}, camera.NewPattern(), WithLogger(quietLogger()))
	checks := map[string]error{
		"proceed":  b.Proceed(),
		"confirm":  b.ConfirmCrop(),
		"camera":   b.StartCamera(),
		"upload":   b.HandleUpload(nil),
		"cancel":   b.CancelCamera(),
		"zoom":     b.Zoom(50),
		"settings": b.Customize(compose.Options{}),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrWrongPhase) {
			t.Errorf("%s: expected ErrWrongPhase, got %v", name, err)
		}
	}
	if _, err := b.Generate(context.Background()); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("generate: expected ErrWrongPhase, got %v", err)
	}
	if _, err := b.Download(); !errors.Is(err, ErrNoStrip) {
		t.Errorf("download: expected ErrNoStrip, got %v", err)
	}
	if err := b.SelectMode("sepia"); !errors.Is(err, session.ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestGoHomeResetsEverything(t *testing.T) {
	shell := &recordingShell{}
	b := New(shell, camera.NewPattern(), WithClock(clock.NewFake(time.Unix(0, 0))), WithLogger(quietLogger()))
	_ = b.SelectMode(session.Vintage)
	b.Wait()
	if err := b.Customize(compose.Options{IncludeDate: true, Background: "black"}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}

	resets := shell.resets()
	b.GoHome()
	if st := b.Status(); st != (Status{Phase: "home"}) {
		t.Fatalf("status after go-home %+v", st)
	}
	if _, err := b.Download(); !errors.Is(err, ErrNoStrip) {
		t.Fatalf("strip survived go-home")
	}
	if shell.resets() != resets+1 || shell.lastTheme() != "" {
		t.Fatalf("shell input or theme not reset")
	}

	// A new session starts with the default options again.
	_ = b.SelectMode(session.Vintage)
	b.Wait()
	art, err := b.Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if art.Height != 2045 {
		t.Fatalf("include-date leaked into the next session: height %d", art.Height)
	}
	b.Close()
}

// helpers

type recordingShell struct {
	mu          sync.Mutex
	shown       []Screen
	themes      []string
	countdown   []int
	hides       int
	counter     []string
	flashes     int
	alerts      []string
	resetCount  int
	previews    []Preview
	results     []Result
	onCountdown func(n int)
}

func (s *recordingShell) Show(sc Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, sc)
}

func (s *recordingShell) Hide(Screen) {}

func (s *recordingShell) Theme(m session.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.themes = append(s.themes, string(m))
}

func (s *recordingShell) Countdown(n int) {
	s.mu.Lock()
	s.countdown = append(s.countdown, n)
	hook := s.onCountdown
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
}

func (s *recordingShell) HideCountdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hides++
}

func (s *recordingShell) Counter(n, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = append(s.counter, CounterText(n, total))
}

func (s *recordingShell) Flash() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes++
}

func (s *recordingShell) Shutter() error { return errors.New("no audio device") }

func (s *recordingShell) Alert(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, msg)
}

func (s *recordingShell) ResetUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCount++
}

func (s *recordingShell) Preview(p Preview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previews = append(s.previews, p)
}

func (s *recordingShell) Result(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *recordingShell) lastPreview() Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.previews) == 0 {
		return Preview{}
	}
	return s.previews[len(s.previews)-1]
}

func (s *recordingShell) lastResult() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return Result{}
	}
	return s.results[len(s.results)-1]
}

func (s *recordingShell) lastAlert() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.alerts) == 0 {
		return ""
	}
	return s.alerts[len(s.alerts)-1]
}

func (s *recordingShell) lastShown() Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.shown) == 0 {
		return ""
	}
	return s.shown[len(s.shown)-1]
}

func (s *recordingShell) lastTheme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.themes) == 0 {
		return ""
	}
	return s.themes[len(s.themes)-1]
}

func (s *recordingShell) countdowns() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.countdown...)
}

func (s *recordingShell) counters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.counter...)
}

func (s *recordingShell) flashCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flashes
}

func (s *recordingShell) hiddenCountdowns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hides
}

func (s *recordingShell) resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetCount
}

type deniedDevice struct{}

func (deniedDevice) Open(context.Context, camera.Constraints) (camera.Stream, error) {
	return nil, camera.ErrPermissionDenied
}

type memStore struct {
	mu   sync.Mutex
	arts []*export.Artifact
}

func (m *memStore) Put(_ context.Context, a *export.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arts = append(m.arts, a)
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.arts)
}

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 90, G: 140, B: 200, A: 255})
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
