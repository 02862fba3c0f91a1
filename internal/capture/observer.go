package capture

// Observer receives the transient UI cues of a capture run. Calls are made
// from the goroutine executing Run.
type Observer interface {
	StateChanged(s State)
	Countdown(n int)
	HideCountdown()
	// Counter announces the photo about to be taken, 1-based.
	Counter(n, total int)
	Captured(index int, photo []byte)
	Flash()
	// Shutter plays the shutter cue. Errors are logged and ignored.
	Shutter() error
}

// NopObserver ignores every cue.
type NopObserver struct{}

func (NopObserver) StateChanged(State)   {}
func (NopObserver) Countdown(int)        {}
func (NopObserver) HideCountdown()       {}
func (NopObserver) Counter(int, int)     {}
func (NopObserver) Captured(int, []byte) {}
func (NopObserver) Flash()               {}
func (NopObserver) Shutter() error       { return nil }
