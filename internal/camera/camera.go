// Package camera is the device media boundary: it opens a video stream with
// declared constraints and hands out frames until the stream is stopped.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"photobooth/internal/session"
)

var (
	// ErrPermissionDenied means the user or OS refused camera access.
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", session.ErrCameraUnavailable)
	// ErrNoDevice means no matching camera exists.
	ErrNoDevice = fmt.Errorf("%w: no device", session.ErrCameraUnavailable)
	// ErrStopped is returned by Frame after Stop.
	ErrStopped = errors.New("stream stopped")
)

// Constraints is the stream request sent to the device.
type Constraints struct {
	FacingMode  string
	IdealWidth  int
	IdealHeight int
}

// ConstraintsFor builds the request for a capture target.
func ConstraintsFor(t session.Target) Constraints {
	return Constraints{
		FacingMode:  t.FacingMode,
		IdealWidth:  t.IdealWidth,
		IdealHeight: t.IdealHeight,
	}
}

// Stream is an open camera feed. Stop releases every track and is idempotent.
type Stream interface {
	Frame() (image.Image, error)
	Stop()
}

// Device opens camera streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Factory builds a device from an opaque argument (an index, a directory...).
type Factory func(arg string) (Device, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a device kind available to New.
func Register(kind string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = f
}

// New returns a device of the given kind.
func New(kind, arg string) (Device, error) {
	registryMu.RLock()
	f, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: device kind %q not available in this build", ErrNoDevice, kind)
	}
	return f(arg)
}

// Kinds lists the registered device kinds.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Unavailable is a device that always fails to open with Err. It stands in
// for a camera that could not be set up, so the failure surfaces when the
// camera is first used.
type Unavailable struct {
	Err error
}

func (u Unavailable) Open(context.Context, Constraints) (Stream, error) {
	if u.Err == nil {
		return nil, ErrNoDevice
	}
	return nil, u.Err
}
