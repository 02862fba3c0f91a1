package camera

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"photobooth/internal/session"
)

func TestPatternTracksStreams(t *testing.T) {
	dev := NewPattern()
	c := ConstraintsFor(session.TargetFor(session.Vintage))
	s, err := dev.Open(context.Background(), c)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if dev.Active() != 1 || dev.Opened() != 1 {
		t.Fatalf("expected one live stream, got active=%d opened=%d", dev.Active(), dev.Opened())
	}
	img, err := s.Frame()
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 720 || b.Dy() != 960 {
		t.Fatalf("frame not at ideal size: %v", b)
	}
	s.Stop()
	s.Stop()
	if dev.Active() != 0 {
		t.Fatalf("expected stream released, active=%d", dev.Active())
	}
	if _, err := s.Frame(); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if got := dev.LastConstraints(); got.FacingMode != session.FacingUser {
		t.Fatalf("unexpected constraints %+v", got)
	}
}

func TestUnknownKindIsCameraUnavailable(t *testing.T) {
	if _, err := New("no-such-camera", ""); !errors.Is(err, session.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
}

func TestEmptyFolderIsCameraUnavailable(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	dev, err := New("folder", dir)
	if err != nil {
		t.Fatalf("new folder device: %v", err)
	}
	if _, err := dev.Open(context.Background(), Constraints{}); !errors.Is(err, session.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
}

func TestUnavailableDevice(t *testing.T) {
	var dev Device = Unavailable{Err: ErrPermissionDenied}
	if _, err := dev.Open(context.Background(), Constraints{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := (Unavailable{}).Open(context.Background(), Constraints{}); !errors.Is(err, session.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
}
