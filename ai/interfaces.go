package ai

import (
	"context"

	"github.com/poiesic/docpipe/core"
)

// OCRProcessor turns a document image or PDF into text.
// Implementations must be thread-safe for concurrent use.
type OCRProcessor interface {
	// Process recognizes the text in data, whose content type is mimeType.
	// Network and provider failures should be returned as *core.TransientError
	// so callers can decide whether to retry.
	Process(ctx context.Context, data []byte, mimeType string) (*OCRResult, error)
}

// Extractor derives structured fields from OCR text.
// Implementations must be thread-safe for concurrent use.
type Extractor interface {
	// Extract parses text as a document of the hinted type. An extraction
	// that ran but could not produce data is reported through
	// ExtractionResult.Success and Error rather than a returned error.
	Extract(ctx context.Context, text string, docType core.DocumentType) (*ExtractionResult, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// OCR returns the text recognition service.
	OCR() OCRProcessor

	// Extractor returns the structured extraction service.
	Extractor() Extractor

	// Close releases resources held by the provider and its services.
	Close() error
}
