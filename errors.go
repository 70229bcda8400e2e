package docpipe

import "errors"

var (
	// ErrNoText indicates OCR produced no text for a document.
	ErrNoText = errors.New("no text recognized")

	// ErrExtractionFailed indicates the extractor could not produce fields
	// with enough confidence.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEngineClosed indicates the engine has been closed.
	ErrEngineClosed = errors.New("engine is closed")
)
