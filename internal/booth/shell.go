package booth

import (
	"log/slog"

	"photobooth/internal/export"
	"photobooth/internal/session"
)

// Screen names a view of the kiosk shell.
type Screen string

const (
	ScreenHome          Screen = "home-screen"
	ScreenCamera        Screen = "camera-screen"
	ScreenUploadChoice  Screen = "upload-choice-screen"
	ScreenUpload        Screen = "upload-screen"
	ScreenCustomization Screen = "customization-screen"
	ScreenResult        Screen = "result-screen"
)

// Screens lists every screen in display order.
var Screens = []Screen{
	ScreenHome, ScreenCamera, ScreenUploadChoice, ScreenUpload, ScreenCustomization, ScreenResult,
}

// Customization option groups offered per mode.
const (
	OptionBackground = "background"
	OptionFrame      = "frame"
	OptionNote       = "note"
	OptionDate       = "date"
)

// Preview is a set of photos shown before the strip is generated.
type Preview struct {
	Screen     Screen
	Photos     [][]byte
	Grayscale  bool
	CanProceed bool
	Options    []string
}

// Result is the generated strip handed to the shell.
type Result struct {
	Artifact *export.Artifact
	Reveal   string
}

// Shell is the presentation side of the booth. The booth decides phase
// transitions; the shell only renders them. Capture cues arrive from the
// capture goroutine.
type Shell interface {
	Show(s Screen)
	Hide(s Screen)
	// Theme applies the mode's theme; the empty mode clears it.
	Theme(m session.Mode)
	Countdown(n int)
	HideCountdown()
	Counter(n, total int)
	Flash()
	Shutter() error
	Alert(msg string)
	// ResetUpload clears the file input.
	ResetUpload()
	Preview(p Preview)
	Result(r Result)
}

// NopShell renders nothing.
type NopShell struct{}

func (NopShell) Show(Screen)        {}
func (NopShell) Hide(Screen)        {}
func (NopShell) Theme(session.Mode) {}
func (NopShell) Countdown(int)      {}
func (NopShell) HideCountdown()     {}
func (NopShell) Counter(int, int)   {}
func (NopShell) Flash()             {}
func (NopShell) Shutter() error     { return nil }
func (NopShell) Alert(string)       {}
func (NopShell) ResetUpload()       {}
func (NopShell) Preview(Preview)    {}
func (NopShell) Result(Result)      {}

// LogShell renders every cue as a log line. It backs the headless CLI.
type LogShell struct {
	Log *slog.Logger
}

func (s LogShell) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

func (s LogShell) Show(sc Screen)       { s.logger().Debug("show screen", "screen", sc) }
func (s LogShell) Hide(sc Screen)       { s.logger().Debug("hide screen", "screen", sc) }
func (s LogShell) Theme(m session.Mode) { s.logger().Debug("theme", "theme", m.Theme()) }
func (s LogShell) Countdown(n int)      { s.logger().Info("countdown", "n", n) }
func (s LogShell) HideCountdown()       {}
func (s LogShell) Counter(n, total int) {
	s.logger().Info(CounterText(n, total))
}
func (s LogShell) Flash()           { s.logger().Debug("flash") }
func (s LogShell) Shutter() error   { return nil }
func (s LogShell) Alert(msg string) { s.logger().Warn(msg) }
func (s LogShell) ResetUpload()     {}
func (s LogShell) Preview(p Preview) {
	s.logger().Info("preview", "screen", p.Screen, "photos", len(p.Photos), "proceed", p.CanProceed)
}
func (s LogShell) Result(r Result) {
	s.logger().Info("strip ready", "file", r.Artifact.Filename, "reveal", r.Reveal)
}
