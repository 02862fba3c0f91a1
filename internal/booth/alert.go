package booth

import (
	"errors"
	"fmt"

	"photobooth/internal/session"
)

// AlertMessage is the user-facing text for an aborted phase.
func AlertMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrCameraUnavailable):
		return "Could not access camera. Please ensure camera permissions are granted."
	case errors.Is(err, session.ErrInvalidUploadCount):
		return "Please upload exactly 4 photos."
	case errors.Is(err, session.ErrDecodeFailure):
		return "One of the photos could not be read. Please try again."
	case errors.Is(err, session.ErrIncomplete):
		return "Four photos are needed to make a strip."
	default:
		return "Something went wrong. Please start over."
	}
}

// CounterText is the photo counter shown before each countdown.
func CounterText(n, total int) string {
	return fmt.Sprintf("Photo %d of %d", n, total)
}
