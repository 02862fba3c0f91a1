package booth

import (
	"log/slog"

	"photobooth/internal/capture"
)

// shellObserver forwards capture cues to the shell.
type shellObserver struct {
	shell Shell
	log   *slog.Logger
}

func (o shellObserver) StateChanged(s capture.State) {
	o.log.Debug("capture state", "state", s)
}

func (o shellObserver) Countdown(n int)      { o.shell.Countdown(n) }
func (o shellObserver) HideCountdown()       { o.shell.HideCountdown() }
func (o shellObserver) Counter(n, total int) { o.shell.Counter(n, total) }
func (o shellObserver) Captured(int, []byte) {}
func (o shellObserver) Flash()               { o.shell.Flash() }
func (o shellObserver) Shutter() error       { return o.shell.Shutter() }
