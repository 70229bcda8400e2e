// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mock

import "github.com/poiesic/docpipe/ai"

// MockProvider is a test double for ai.Provider.
// It aggregates mock OCR and extractor instances.
type MockProvider struct {
	ocr       *MockOCR
	extractor *MockExtractor
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.Provider interface for consistency with production constructors.
// Use GetMockOCR()/GetMockExtractor() to access concrete types for test assertions.
func NewMockProvider() ai.Provider {
	return &MockProvider{
		ocr:       NewMockOCR(),
		extractor: NewMockExtractor(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
func NewMockProviderWithServices(ocr *MockOCR, extractor *MockExtractor) ai.Provider {
	return &MockProvider{
		ocr:       ocr,
		extractor: extractor,
	}
}

// OCR returns the mock OCR processor.
func (p *MockProvider) OCR() ai.OCRProcessor {
	return p.ocr
}

// Extractor returns the mock extractor.
func (p *MockProvider) Extractor() ai.Extractor {
	return p.extractor
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockOCR returns the underlying mock OCR processor for test assertions.
func (p *MockProvider) GetMockOCR() *MockOCR {
	return p.ocr
}

// GetMockExtractor returns the underlying mock extractor for test assertions.
func (p *MockProvider) GetMockExtractor() *MockExtractor {
	return p.extractor
}
