package crop

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"

	"photobooth/internal/codec"
	"photobooth/internal/geometry"
	"photobooth/internal/session"
)

var palette = []color.NRGBA{
	{R: 220, G: 30, B: 30, A: 255},
	{R: 30, G: 200, B: 40, A: 255},
	{R: 30, G: 40, B: 220, A: 255},
	{R: 230, G: 220, B: 40, A: 255},
}

func TestRejectsWrongBatchSizeWithoutTouchingSession(t *testing.T) {
	sess := session.New(session.Modern)
	if err := sess.Append([]byte("existing")); err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{0, 3, 5} {
		uploads := make([]Upload, n)
		if _, err := New(sess, uploads); !errors.Is(err, session.ErrInvalidUploadCount) {
			t.Fatalf("%d files: expected ErrInvalidUploadCount, got %v", n, err)
		}
	}
	if sess.Len() != 1 {
		t.Fatalf("session mutated by rejected batch: %d photos", sess.Len())
	}
}

func TestModernBatchConfirmsInOrder(t *testing.T) {
	sess := session.New(session.Modern)
	sizes := [][2]int{{640, 480}, {480, 640}, {1000, 300}, {300, 300}}
	uploads := make([]Upload, 4)
	for i := range uploads {
		uploads[i] = Upload{Name: "photo.png", Data: solidPNG(t, sizes[i][0], sizes[i][1], palette[i])}
	}

	cs, err := New(sess, uploads, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := cs.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if cs.Index() != i {
			t.Fatalf("expected index %d, got %d", i, cs.Index())
		}
		if cs.CanProceed() {
			t.Fatalf("proceed enabled before all crops confirmed")
		}
		st := cs.State()
		if st.Zoom != geometry.DefaultZoom {
			t.Fatalf("image %d did not start at default zoom: %v", i, st.Zoom)
		}
		assertBoxInvariant(t, st, 4.0/3)
		if err := cs.Confirm(); err != nil {
			t.Fatalf("confirm %d: %v", i, err)
		}
		if sess.Len() != i+1 {
			t.Fatalf("confirm %d appended %d photos", i, sess.Len())
		}
	}

	if !cs.Done() || !cs.CanProceed() {
		t.Fatalf("expected finished session with proceed enabled")
	}
	if err := cs.Confirm(); !errors.Is(err, ErrFinished) {
		t.Fatalf("expected ErrFinished, got %v", err)
	}
	for i, data := range sess.Photos() {
		img, err := codec.Decode(data)
		if err != nil {
			t.Fatal(err)
		}
		if w, h := codec.Size(img); w != 800 || h != 600 {
			t.Fatalf("photo %d is %dx%d", i, w, h)
		}
		if !closeTo(img.At(400, 300), palette[i]) {
			t.Fatalf("photo %d has wrong content %v", i, img.At(400, 300))
		}
	}
}

func TestDragSequencesStayInBounds(t *testing.T) {
	sess := session.New(session.Vintage)
	cs := loadedSession(t, sess, 1200, 700)
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 2000; step++ {
		switch rng.Intn(4) {
		case 0:
			_ = cs.DragStart(rng.Float64()*1600-200, rng.Float64()*1000-150)
		case 1, 2:
			cs.DragMove(rng.Float64()*3000-1000, rng.Float64()*3000-1000)
		case 3:
			if rng.Intn(3) == 0 {
				cs.DragEnd()
			} else {
				_ = cs.Zoom(geometry.MinZoom + rng.Float64()*(geometry.MaxZoom-geometry.MinZoom))
			}
		}
		assertBoxInvariant(t, cs.State(), 3.0/4)
	}
}

func TestDragMoveIgnoredWhenIdle(t *testing.T) {
	cs := loadedSession(t, session.New(session.Modern), 800, 800)
	before := cs.State().Box
	cs.DragMove(0, 0)
	if cs.State().Box != before {
		t.Fatalf("box moved without a drag")
	}

	if err := cs.DragStart(before.X+10, before.Y+10); err != nil {
		t.Fatal(err)
	}
	cs.DragMove(before.X+30, before.Y+5)
	got := cs.State().Box
	if math.Abs(got.X-(before.X+20)) > 1e-9 || math.Abs(got.Y-(before.Y-5)) > 1e-9 {
		t.Fatalf("drag moved box to %+v from %+v", got, before)
	}
	cs.DragEnd()
	cs.DragMove(0, 0)
	if cs.State().Box != got {
		t.Fatalf("box moved after drag end")
	}
}

func TestZoomKeepsOriginUnlessClampNeeded(t *testing.T) {
	cs := loadedSession(t, session.New(session.Modern), 1000, 1000)
	if err := cs.Zoom(40); err != nil {
		t.Fatal(err)
	}
	_ = cs.DragStart(cs.State().Box.X, cs.State().Box.Y)
	cs.DragMove(100, 120)
	cs.DragEnd()

	if err := cs.Zoom(60); err != nil {
		t.Fatal(err)
	}
	if b := cs.State().Box; b.X != 100 || b.Y != 120 {
		t.Fatalf("zoom moved origin to %+v", b)
	}
	if err := cs.Zoom(100); err != nil {
		t.Fatal(err)
	}
	b := cs.State().Box
	if b.X != 0 || b.W != 1000 {
		t.Fatalf("full zoom box %+v not clamped into bounds", b)
	}
	assertBoxInvariant(t, cs.State(), 4.0/3)
}

func TestConfirmMapsDisplayToSourcePixels(t *testing.T) {
	sess := session.New(session.Modern)
	left := solidImage(1000, 750, palette[0])
	right := solidImage(1000, 750, palette[2])
	src := imaging.New(2000, 750, color.NRGBA{})
	src = imaging.Paste(src, left, image.Pt(0, 0))
	src = imaging.Paste(src, right, image.Pt(1000, 0))
	data := encodePNG(t, src)

	other := solidPNG(t, 400, 300, palette[1])
	cs, err := New(sess, []Upload{{Name: "wide", Data: data}, {Data: other}, {Data: other}, {Data: other}}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := cs.Start(); err != nil {
		t.Fatal(err)
	}
	// Displayed at half size; move the box to the far right of the display.
	if err := cs.SetDisplaySize(1000, 375); err != nil {
		t.Fatal(err)
	}
	if err := cs.Zoom(50); err != nil {
		t.Fatal(err)
	}
	st := cs.State()
	_ = cs.DragStart(st.Box.X, st.Box.Y)
	cs.DragMove(5000, 0)
	cs.DragEnd()
	if got := cs.State().Box; math.Abs(got.X+got.W-1000) > 1e-9 {
		t.Fatalf("box not pushed to right edge: %+v", got)
	}
	if err := cs.Confirm(); err != nil {
		t.Fatal(err)
	}

	img, err := codec.Decode(sess.Photos()[0])
	if err != nil {
		t.Fatal(err)
	}
	if !closeTo(img.At(400, 300), palette[2]) {
		t.Fatalf("expected right half of source, got %v", img.At(400, 300))
	}
}

func TestDecodeFailureAbortsPhase(t *testing.T) {
	sess := session.New(session.Vintage)
	good := solidPNG(t, 300, 400, palette[0])
	cs, err := New(sess, []Upload{{Data: good}, {Name: "broken.jpg", Data: []byte("garbage")}, {Data: good}, {Data: good}}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := cs.Start(); err != nil {
		t.Fatal(err)
	}
	err = cs.Confirm()
	if !errors.Is(err, session.ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
	if !errors.Is(cs.Zoom(50), session.ErrDecodeFailure) || !errors.Is(cs.Confirm(), session.ErrDecodeFailure) {
		t.Fatalf("aborted session accepted more operations")
	}
	if cs.CanProceed() || sess.Len() != 1 {
		t.Fatalf("unexpected state after abort: proceed=%v photos=%d", cs.CanProceed(), sess.Len())
	}
}

func TestAutoCropsWholeBatch(t *testing.T) {
	sess := session.New(session.Vintage)
	uploads := make([]Upload, 4)
	for i := range uploads {
		uploads[i] = Upload{Data: solidPNG(t, 900, 600, palette[i])}
	}
	if err := Auto(context.Background(), sess, uploads, 0, WithLogger(quietLogger())); err != nil {
		t.Fatal(err)
	}
	if !sess.Ready() {
		t.Fatalf("expected four photos, got %d", sess.Len())
	}
	img, _ := codec.Decode(sess.Photos()[3])
	if w, h := codec.Size(img); w != 600 || h != 800 {
		t.Fatalf("vintage crop is %dx%d", w, h)
	}
}

// helpers

func loadedSession(t *testing.T, sess *session.Session, w, h int) *Session {
	t.Helper()
	data := solidPNG(t, w, h, palette[0])
	cs, err := New(sess, []Upload{{Data: data}, {Data: data}, {Data: data}, {Data: data}}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := cs.Start(); err != nil {
		t.Fatal(err)
	}
	return cs
}

func assertBoxInvariant(t *testing.T, st State, aspect float64) {
	t.Helper()
	b := st.Box
	if b.X < 0 || b.Y < 0 || b.X > st.DisplayW-b.W+1e-9 || b.Y > st.DisplayH-b.H+1e-9 {
		t.Fatalf("box %+v escapes %vx%v", b, st.DisplayW, st.DisplayH)
	}
	if b.W > st.DisplayW+1e-9 || b.H > st.DisplayH+1e-9 {
		t.Fatalf("box %+v larger than %vx%v", b, st.DisplayW, st.DisplayH)
	}
	if math.Abs(b.W/b.H-aspect) > 1e-9 {
		t.Fatalf("box aspect %v, want %v", b.W/b.H, aspect)
	}
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	return encodePNG(t, solidImage(w, h, c))
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func closeTo(c color.Color, want color.NRGBA) bool {
	r, g, b, _ := c.RGBA()
	d := func(a uint32, b uint8) bool {
		diff := int(a>>8) - int(b)
		return diff > -12 && diff < 12
	}
	return d(r, want.R) && d(g, want.G) && d(b, want.B)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
