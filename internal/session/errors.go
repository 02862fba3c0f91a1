package session

import "errors"

var (
	// ErrCameraUnavailable is returned when the device refuses or has no camera.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrInvalidUploadCount is returned when an upload batch is not exactly four images.
	ErrInvalidUploadCount = errors.New("invalid upload count")
	// ErrDecodeFailure is returned when an image cannot be decoded.
	ErrDecodeFailure = errors.New("image decode failed")

	ErrSessionFull = errors.New("session already holds four photos")
	ErrIncomplete  = errors.New("session needs four photos")
	ErrNoMode      = errors.New("no mode selected")
	ErrUnknownMode = errors.New("unknown mode")

	ErrCancelled = errors.New("session cancelled")
)
