package ai

import (
	"time"
)

// OCRResult is the output of an OCRProcessor.
type OCRResult struct {
	Text           string        `json:"text"`
	Model          string        `json:"model"`
	TotalTokens    int           `json:"total_tokens"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// EmptyOCRResult is substituted for documents whose OCR failed every attempt.
// Compare with IsEmpty, not by value.
var EmptyOCRResult = &OCRResult{}

// IsEmpty reports whether r is the EmptyOCRResult sentinel or nil.
func (r *OCRResult) IsEmpty() bool {
	return r == nil || r == EmptyOCRResult
}

// ExtractionResult is the output of an Extractor.
type ExtractionResult struct {
	Success          bool    `json:"success"`
	Data             string  `json:"data,omitempty"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	Error            string  `json:"error,omitempty"`
	Model            string  `json:"model,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`
}
