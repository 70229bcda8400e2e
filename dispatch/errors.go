package dispatch

import "errors"

var (
	// ErrOCRProcessorRequired is returned when an OCR processor is not provided.
	ErrOCRProcessorRequired = errors.New("OCR processor required")

	// ErrDispatcherClosed is returned when work is submitted after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")

	// ErrInvalidBatchSize is returned for a batch size below one.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
)
