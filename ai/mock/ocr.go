package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/docpipe/ai"
)

// MockOCR is a test double for ai.OCRProcessor.
type MockOCR struct {
	mu          sync.RWMutex
	processFunc func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error)

	callCount atomic.Int64
}

// NewMockOCR creates a mock OCR processor with default deterministic behavior.
func NewMockOCR() *MockOCR {
	return &MockOCR{}
}

// WithProcessFunc overrides Process and returns m for chaining.
func (m *MockOCR) WithProcessFunc(fn func(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error)) *MockOCR {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processFunc = fn
	return m
}

// Process returns a deterministic transcription unless overridden.
func (m *MockOCR) Process(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
	m.callCount.Add(1)

	m.mu.RLock()
	fn := m.processFunc
	m.mu.RUnlock()
	if fn != nil {
		return fn(ctx, data, mimeType)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ai.OCRResult{
		Text:           fmt.Sprintf("text:%s:%d", mimeType, len(data)),
		Model:          "mock-ocr",
		TotalTokens:    len(data),
		ProcessingTime: time.Millisecond,
	}, nil
}

// CallCount returns the number of times Process was called.
func (m *MockOCR) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockOCR) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processFunc = nil
	m.callCount.Store(0)
}
