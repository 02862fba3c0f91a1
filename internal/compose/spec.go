package compose

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"photobooth/internal/session"
)

// Strip layout constants, in output pixels.
const (
	StripWidth   = 400
	Padding      = 20
	PhotoPadding = 15
	FrameInset   = 5

	// BottomMargin is the text space reserved when no text is requested.
	BottomMargin = 10
)

const (
	DefaultVintageBackground = "white"
	DefaultModernFrame       = "#FFE4E1"
)

var namedColors = map[string]string{
	"white": "#FFFFFF",
	"black": "#000000",
	"cream": "#F5F0E1",
	"pink":  "#FFE4E1",
	"blue":  "#E0F0FF",
	"mint":  "#E0FFF0",
	"lilac": "#EDE0FF",
}

// Options are the user's customization choices.
type Options struct {
	// Background is the vintage strip color.
	Background string
	// Frame is the modern frame color.
	Frame       string
	Note        string
	IncludeDate bool
	// Date defaults to the time of composition.
	Date time.Time
}

// Spec is the fully resolved layout of one strip.
type Spec struct {
	Mode         session.Mode
	StripWidth   int
	Padding      int
	PhotoPadding int
	PhotoWidth   int
	PhotoHeight  int
	Background   color.NRGBA
	Frame        color.NRGBA
	Note         string
	IncludeDate  bool
	Date         time.Time
}

// NewSpec resolves options for a mode. Vintage strips use a single background
// color for frame and strip; modern strips use the frame color for both.
func NewSpec(mode session.Mode, opts Options) (Spec, error) {
	s := Spec{
		Mode:         mode,
		StripWidth:   StripWidth,
		Padding:      Padding,
		PhotoPadding: PhotoPadding,
		PhotoWidth:   StripWidth - 2*Padding,
		IncludeDate:  opts.IncludeDate,
		Date:         opts.Date,
	}

	var name string
	switch mode {
	case session.Vintage:
		s.PhotoHeight = s.PhotoWidth / 3 * 4
		name = firstNonEmpty(opts.Background, DefaultVintageBackground)
	case session.Modern:
		s.PhotoHeight = s.PhotoWidth / 4 * 3
		s.Note = strings.TrimSpace(opts.Note)
		name = firstNonEmpty(opts.Frame, DefaultModernFrame)
	default:
		return Spec{}, fmt.Errorf("%w: %q", session.ErrUnknownMode, mode)
	}

	c, err := ParseColor(name)
	if err != nil {
		return Spec{}, err
	}
	s.Background, s.Frame = c, c
	return s, nil
}

// TextSpace is the height reserved below the photos for the note and date.
func (s Spec) TextSpace() int {
	if s.Mode == session.Modern {
		switch {
		case s.Note != "" && s.IncludeDate:
			return 80
		case s.Note != "" || s.IncludeDate:
			return 50
		}
		return BottomMargin
	}
	if s.IncludeDate {
		return 60
	}
	return BottomMargin
}

// HasText reports whether any text is drawn under the photos.
func (s Spec) HasText() bool {
	return s.IncludeDate || (s.Mode == session.Modern && s.Note != "")
}

// Height is the total strip height.
func (s Spec) Height() int {
	n := session.RequiredPhotos
	return n*s.PhotoHeight + (n+1)*s.PhotoPadding + 2*s.Padding + s.TextSpace()
}

// Bounds is the strip canvas rectangle.
func (s Spec) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.StripWidth, s.Height())
}

// PhotoRect is where photo i is drawn.
func (s Spec) PhotoRect(i int) image.Rectangle {
	y := s.Padding + i*(s.PhotoHeight+s.PhotoPadding)
	return image.Rect(s.Padding, y, s.Padding+s.PhotoWidth, y+s.PhotoHeight)
}

// FrameRect is the border rectangle under photo i.
func (s Spec) FrameRect(i int) image.Rectangle {
	return s.PhotoRect(i).Inset(-FrameInset)
}

// TextBaseline is the baseline of the first text line.
func (s Spec) TextBaseline() int {
	n := session.RequiredPhotos
	return s.Padding + n*s.PhotoHeight + n*s.PhotoPadding + 30
}

// ParseColor accepts "#rrggbb" or one of the named swatches.
func ParseColor(name string) (color.NRGBA, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if hex, ok := namedColors[key]; ok {
		key = hex
	}
	c, err := colorful.Hex(key)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", name, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// IsDark reports whether light text reads better than dark text on c.
func IsDark(c color.NRGBA) bool {
	l, _, _ := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Lab()
	return l < 0.5
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
