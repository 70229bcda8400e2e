package mock

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
)

// MockExtractor is a test double for ai.Extractor.
type MockExtractor struct {
	mu          sync.RWMutex
	extractFunc func(ctx context.Context, text string, docType core.DocumentType) (*ai.ExtractionResult, error)

	callCount atomic.Int64
}

// NewMockExtractor creates a mock extractor with default behavior.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// WithExtractFunc overrides Extract and returns m for chaining.
func (m *MockExtractor) WithExtractFunc(fn func(ctx context.Context, text string, docType core.DocumentType) (*ai.ExtractionResult, error)) *MockExtractor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractFunc = fn
	return m
}

// Extract wraps text in a JSON object unless overridden.
func (m *MockExtractor) Extract(ctx context.Context, text string, docType core.DocumentType) (*ai.ExtractionResult, error) {
	m.callCount.Add(1)

	m.mu.RLock()
	fn := m.extractFunc
	m.mu.RUnlock()
	if fn != nil {
		return fn(ctx, text, docType)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return &ai.ExtractionResult{Error: "no text to extract from", Model: "mock-extractor"}, nil
	}
	data, err := json.Marshal(map[string]string{"document_type": string(docType), "text": text})
	if err != nil {
		return nil, err
	}
	return &ai.ExtractionResult{
		Success:    true,
		Data:       string(data),
		Confidence: 1,
		Model:      "mock-extractor",
	}, nil
}

// CallCount returns the number of times Extract was called.
func (m *MockExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractFunc = nil
	m.callCount.Store(0)
}
