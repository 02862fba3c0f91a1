// Package export encodes composed strips into downloadable JPEG artifacts.
package export

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"photobooth/internal/codec"
	"photobooth/internal/compose"
	"photobooth/internal/session"
)

// DefaultBrand prefixes exported filenames.
const DefaultBrand = "photobooth"

// DefaultEncoder is the encoder used when none is configured.
const DefaultEncoder = "imaging"

// Encoder writes img as a JPEG of the given quality.
type Encoder interface {
	Encode(w io.Writer, img image.Image, quality int) error
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(w io.Writer, img image.Image, quality int) error

func (f EncoderFunc) Encode(w io.Writer, img image.Image, quality int) error {
	return f(w, img, quality)
}

var (
	encMu    sync.RWMutex
	encoders = map[string]Encoder{DefaultEncoder: EncoderFunc(codec.WriteJPEG)}
)

// RegisterEncoder makes an encoder available by name.
func RegisterEncoder(name string, e Encoder) {
	encMu.Lock()
	defer encMu.Unlock()
	encoders[name] = e
}

// LookupEncoder returns a registered encoder. The empty name selects the default.
func LookupEncoder(name string) (Encoder, error) {
	if name == "" {
		name = DefaultEncoder
	}
	encMu.RLock()
	defer encMu.RUnlock()
	e, ok := encoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown encoder %q (available: %s)", name, strings.Join(encoderNames(), ", "))
	}
	return e, nil
}

// Encoders lists the registered encoder names.
func Encoders() []string {
	encMu.RLock()
	defer encMu.RUnlock()
	return encoderNames()
}

func encoderNames() []string {
	names := make([]string, 0, len(encoders))
	for n := range encoders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Encode writes img as JPEG with the default encoder.
func Encode(w io.Writer, img image.Image, quality int) error {
	return codec.WriteJPEG(w, img, quality)
}

// Filename is "<brand>-<unix-ms>.jpg". The brand is reduced to lowercase
// letters, digits and dashes.
func Filename(brand string, t time.Time) string {
	return fmt.Sprintf("%s-%d.jpg", slug(brand), t.UnixMilli())
}

func slug(brand string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(brand)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return DefaultBrand
	}
	return s
}

// Artifact is an encoded strip ready for download.
type Artifact struct {
	ID        string
	Filename  string
	Mode      session.Mode
	Width     int
	Height    int
	Data      []byte
	CreatedAt time.Time
}

// Exporter turns strips into artifacts.
type Exporter struct {
	brand   string
	quality int
	enc     Encoder
	log     *slog.Logger
	now     func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

func WithQuality(q int) Option         { return func(e *Exporter) { e.quality = q } }
func WithEncoder(enc Encoder) Option   { return func(e *Exporter) { e.enc = enc } }
func WithLogger(l *slog.Logger) Option { return func(e *Exporter) { e.log = l } }
func WithNow(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// New returns an Exporter for brand.
func New(brand string, opts ...Option) *Exporter {
	e := &Exporter{
		brand:   brand,
		quality: codec.ExportQuality,
		enc:     EncoderFunc(codec.WriteJPEG),
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Export encodes the strip.
func (e *Exporter) Export(strip *compose.Strip) (*Artifact, error) {
	if strip == nil || strip.Image == nil {
		return nil, fmt.Errorf("export: no strip to export")
	}
	var buf bytes.Buffer
	if err := e.enc.Encode(&buf, strip.Image, e.quality); err != nil {
		return nil, fmt.Errorf("export strip: %w", err)
	}
	now := e.now()
	b := strip.Image.Bounds()
	art := &Artifact{
		ID:        uuid.NewString(),
		Filename:  Filename(e.brand, now),
		Mode:      strip.Mode,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Data:      buf.Bytes(),
		CreatedAt: now,
	}
	e.log.Info("strip exported", "file", art.Filename, "size", humanize.Bytes(uint64(len(art.Data))), "quality", e.quality)
	return art, nil
}

// Save writes the artifact into dir and returns its path.
func Save(dir string, art *Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, art.Filename)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
