package native

import "errors"

var (
	// ErrLibraryNotFound is returned by Open when no OpenCL library can be
	// loaded.
	ErrLibraryNotFound = errors.New("native: OpenCL library not found")

	// ErrSymbolNotFound is returned when the library lacks an entry point.
	ErrSymbolNotFound = errors.New("native: OpenCL symbol not found")
)
