package archive

import "errors"

// Sentinel errors for archive operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, archive.ErrNotConnected) {
//	    // Handle disconnected state
//	}
var (
	// ErrNotConnected indicates the client is not connected to the archive.
	ErrNotConnected = errors.New("archive: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("archive: connection failed")

	// ErrWriteFailed indicates a write operation failed.
	// Note: Most write errors are handled asynchronously via the error callback.
	ErrWriteFailed = errors.New("archive: write failed")

	// ErrDisabled indicates the archive mirror is disabled in config.
	ErrDisabled = errors.New("archive: disabled in configuration")
)
