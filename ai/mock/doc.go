// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.OCRProcessor, ai.Extractor
// and ai.Provider for use in unit tests. The mocks are safe for concurrent use
// so they can sit behind the dispatcher and orchestrator worker pools.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	res, err := provider.OCR().Process(ctx, data, "image/png")
//
//	// Custom behavior injection
//	ocr := mock.NewMockOCR().
//	    WithProcessFunc(func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
//	        return nil, errors.New("provider down")
//	    })
//
//	// Check call counts
//	count := ocr.CallCount()
//
// # Default Behavior
//
//   - MockOCR: Returns "text:<mime>:<len>" as the recognized text
//   - MockExtractor: Returns the text wrapped in a JSON object with confidence 1
//   - MockProvider: Aggregates mock OCR and extractor
package mock
