package gooutline

import "errors"

var (
	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("gooutline: document not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("gooutline: unsupported document format")

	// ErrExtractionFailed is returned when text runs cannot be read from a
	// document. The document fails as a whole.
	ErrExtractionFailed = errors.New("gooutline: extraction failed")

	// ErrStoreDisabled is returned by catalogue operations when the engine
	// runs with SkipStore.
	ErrStoreDisabled = errors.New("gooutline: store is disabled")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("gooutline: invalid configuration")

	// ErrInvalidOutput is returned when a result fails schema validation.
	ErrInvalidOutput = errors.New("gooutline: outline failed schema validation")

	// ErrNotReady is returned when asking for the outline of a document that
	// is still processing or failed.
	ErrNotReady = errors.New("gooutline: document outline not ready")
)
