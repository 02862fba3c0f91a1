package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"photobooth/internal/camera"
	"photobooth/internal/clock"
	"photobooth/internal/compose"
	"photobooth/internal/config"
	"photobooth/internal/crop"
	"photobooth/internal/export"
	"photobooth/internal/session"
	"photobooth/internal/storage"
)

func TestRouterStripComposesAndStores(t *testing.T) {
	store := newStore(t)
	r := newRouter(config.Default(), slog.Default(), store, nil)
	r.clock = clock.NewFake(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC))

	inputs := make([]Input, 4)
	for i := range inputs {
		inputs[i] = Input{Name: "p.png", Data: solidPNG(t, 300+i*10, 200)}
	}
	out := t.TempDir()
	job := Job{
		ID:      "strip-1",
		Type:    JobStrip,
		Mode:    session.Modern,
		Inputs:  inputs,
		Output:  out,
		Options: map[string]any{"note": "hello", "date": true},
	}

	res := r.Process(context.Background(), job)
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	spec, _ := compose.NewSpec(session.Modern, compose.Options{Note: "hello", IncludeDate: true})
	if res.Artifact == nil || res.Artifact.Height != spec.Height() || res.Artifact.Width != compose.StripWidth {
		t.Fatalf("unexpected artifact %+v", res.Artifact)
	}
	if res.Meta["reveal"] != compose.RevealModern {
		t.Fatalf("unexpected reveal %v", res.Meta["reveal"])
	}
	if res.Meta["zoom"] != float64(80) {
		t.Fatalf("expected configured zoom, got %v", res.Meta["zoom"])
	}
	if _, err := os.Stat(res.Meta["output"].(string)); err != nil {
		t.Fatalf("strip not saved: %v", err)
	}
	if _, err := store.Strip(context.Background(), res.Artifact.ID); err != nil {
		t.Fatalf("strip not stored: %v", err)
	}
}

func TestRouterStripReadsPaths(t *testing.T) {
	dir := t.TempDir()
	var inputs []Input
	for i := 0; i < 4; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".png")
		if err := os.WriteFile(path, solidPNG(t, 80, 120), 0o644); err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, Input{Path: path})
	}

	var names []string
	var gotZoom float64
	r := stubRouter()
	r.cropFn = func(ctx context.Context, sess *session.Session, uploads []crop.Upload, zoom float64, opts ...crop.Option) error {
		gotZoom = zoom
		for _, u := range uploads {
			names = append(names, u.Name)
			if err := sess.Append(u.Data); err != nil {
				return err
			}
		}
		return nil
	}

	res := r.Process(context.Background(), Job{
		Type:    JobStrip,
		Mode:    session.Vintage,
		Inputs:  inputs,
		Options: map[string]any{"zoom": 55, "note": "dropped"},
	})
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	if gotZoom != 55 {
		t.Fatalf("expected zoom override, got %v", gotZoom)
	}
	if len(names) != 4 || names[0] != "a.png" || names[3] != "d.png" {
		t.Fatalf("unexpected upload names %v", names)
	}
	comp := r.composer.(*stubComposer)
	if comp.spec.Note != "" {
		t.Fatalf("vintage strip should not carry a note, got %q", comp.spec.Note)
	}
	if comp.photos != 4 {
		t.Fatalf("expected 4 photos composed, got %d", comp.photos)
	}
}

func TestRouterStripRejectsWrongCount(t *testing.T) {
	r := stubRouter()
	r.cropFn = crop.Auto
	res := r.Process(context.Background(), Job{
		Type:   JobStrip,
		Mode:   session.Modern,
		Inputs: []Input{{Data: []byte("a")}, {Data: []byte("b")}, {Data: []byte("c")}},
	})
	if !errors.Is(res.Error, session.ErrInvalidUploadCount) {
		t.Fatalf("expected ErrInvalidUploadCount, got %v", res.Error)
	}
	if r.composer.(*stubComposer).photos != 0 {
		t.Fatalf("composer should not run")
	}
}

func TestRouterRequiresMode(t *testing.T) {
	r := stubRouter()
	res := r.Process(context.Background(), Job{Type: JobStrip})
	if !errors.Is(res.Error, session.ErrNoMode) {
		t.Fatalf("expected ErrNoMode, got %v", res.Error)
	}
	res = r.Process(context.Background(), Job{Type: JobStrip, Mode: "sepia"})
	if !errors.Is(res.Error, session.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", res.Error)
	}
	res = r.Process(context.Background(), Job{Type: "panorama"})
	if res.Error == nil {
		t.Fatalf("expected unknown job type error")
	}
}

func TestRouterCaptureUsesCamera(t *testing.T) {
	dev := camera.NewPattern()
	r := stubRouter()
	r.dev = dev

	res := r.Process(context.Background(), Job{Type: JobCapture, Mode: session.Vintage})
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	if dev.Opened() != 1 || dev.Active() != 0 {
		t.Fatalf("expected one released stream, opened=%d active=%d", dev.Opened(), dev.Active())
	}
	if r.composer.(*stubComposer).photos != 4 {
		t.Fatalf("expected four captured photos")
	}

	r.dev = nil
	res = r.Process(context.Background(), Job{Type: JobCapture, Mode: session.Vintage})
	if !errors.Is(res.Error, session.ErrCameraUnavailable) {
		t.Fatalf("expected camera error, got %v", res.Error)
	}
}

// Stubs
func stubRouter() *router {
	return &router{
		log:      slog.Default(),
		clock:    clock.NewFake(time.Unix(0, 0)),
		cropFn:   crop.Auto,
		composer: &stubComposer{},
		exporter: &stubExporter{},
		zoom:     80,

		captureQuality: 92,
		cropQuality:    100,
	}
}

type stubComposer struct {
	spec   compose.Spec
	photos int
}

func (s *stubComposer) Compose(ctx context.Context, photos [][]byte, spec compose.Spec) (*compose.Strip, error) {
	s.spec = spec
	s.photos = len(photos)
	return &compose.Strip{Image: imaging.New(4, 4, color.White), Mode: spec.Mode, Spec: spec}, nil
}

type stubExporter struct{}

func (stubExporter) Export(strip *compose.Strip) (*export.Artifact, error) {
	return &export.Artifact{ID: "art-1", Filename: "photobooth-1.jpg", Mode: strip.Mode, Data: []byte{1, 2, 3}}, nil
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 60, A: 255})
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
