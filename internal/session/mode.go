package session

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects the look and flow of a booth session.
type Mode string

const (
	// Vintage is portrait, monochrome and goes straight to the camera.
	Vintage Mode = "vintage"
	// Modern is landscape, in color, and offers upload or camera.
	Modern Mode = "modern"
)

const (
	// RequiredPhotos is the number of photos a strip is composed of.
	RequiredPhotos = 4
	// CountdownTicks is the number of countdown steps before each capture.
	CountdownTicks = 3

	// FacingUser asks the device for the selfie camera.
	FacingUser = "user"
)

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Vintage:
		return Vintage, nil
	case Modern:
		return Modern, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) String() string { return string(m) }

// Theme is the theme class the shell applies for the mode.
func (m Mode) Theme() string {
	if m == "" {
		return ""
	}
	return string(m) + "-theme"
}

// Target describes the per-mode capture constants.
type Target struct {
	Mode   Mode
	Width  int
	Height int

	// IdealWidth and IdealHeight are the stream resolution requested from the device.
	IdealWidth  int
	IdealHeight int
	FacingMode  string

	CountdownTicks    int
	RequiredPhotos    int
	SettleDelay       time.Duration
	TickInterval      time.Duration
	InterCaptureDelay time.Duration
}

// Aspect is the output width divided by height.
func (t Target) Aspect() float64 {
	return float64(t.Width) / float64(t.Height)
}

// TargetFor returns the capture constants for a mode.
func TargetFor(m Mode) Target {
	t := Target{
		Mode:              m,
		FacingMode:        FacingUser,
		CountdownTicks:    CountdownTicks,
		RequiredPhotos:    RequiredPhotos,
		SettleDelay:       time.Second,
		TickInterval:      time.Second,
		InterCaptureDelay: 1500 * time.Millisecond,
	}
	if m == Vintage {
		t.Width, t.Height = 600, 800
		t.IdealWidth, t.IdealHeight = 720, 960
	} else {
		t.Width, t.Height = 800, 600
		t.IdealWidth, t.IdealHeight = 1280, 720
	}
	return t
}
