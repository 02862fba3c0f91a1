// Package session holds the mutable record threaded through a booth run:
// the selected mode and the ordered photos collected so far.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the single authoritative state of one booth run. It is safe for
// use from the capture goroutine and the shell at the same time.
type Session struct {
	ID        string
	Mode      Mode
	CreatedAt time.Time

	mu         sync.Mutex
	photos     [][]byte
	photoIndex int
	cancelled  bool
}

// New starts a session for the given mode.
func New(mode Mode) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Mode:      mode,
		CreatedAt: time.Now(),
		photos:    make([][]byte, 0, RequiredPhotos),
	}
}

// Target returns the capture constants for the session's mode.
func (s *Session) Target() Target {
	return TargetFor(s.Mode)
}

// Append adds an encoded photo. It refuses a fifth photo and any photo after
// the session was cancelled.
func (s *Session) Append(photo []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return ErrCancelled
	}
	if len(s.photos) >= RequiredPhotos {
		return ErrSessionFull
	}
	s.photos = append(s.photos, photo)
	s.photoIndex = len(s.photos)
	return nil
}

// Photos returns a copy of the photo list.
func (s *Session) Photos() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.photos))
	copy(out, s.photos)
	return out
}

// Len is the number of photos collected.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos)
}

// PhotoIndex is the zero-based index of the next photo to collect.
func (s *Session) PhotoIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photoIndex
}

// Ready reports whether the session may be composed.
func (s *Session) Ready() bool {
	return s.Len() == RequiredPhotos
}

// Reset clears the collected photos and re-arms the session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = s.photos[:0]
	s.photoIndex = 0
	s.cancelled = false
}

// Cancel marks the session so no further photos are accepted.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// Cancelled reports whether Cancel was called since the last Reset.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
