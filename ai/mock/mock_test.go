package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockOCR_DefaultAndOverride(t *testing.T) {
	ocr := NewMockOCR()

	res, err := ocr.Process(context.Background(), []byte("abc"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "text:image/png:3", res.Text)

	boom := errors.New("boom")
	ocr.WithProcessFunc(func(context.Context, []byte, string) (*ai.OCRResult, error) { return nil, boom })
	_, err = ocr.Process(context.Background(), []byte("abc"), "image/png")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, ocr.CallCount())

	ocr.Reset()
	assert.Zero(t, ocr.CallCount())
}

func TestMockOCR_ConcurrentCalls(t *testing.T) {
	ocr := NewMockOCR()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ocr.Process(context.Background(), []byte{1}, "image/png")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, ocr.CallCount())
}

func TestMockExtractor_Default(t *testing.T) {
	ex := NewMockExtractor()

	res, err := ex.Extract(context.Background(), "TOTAL 5", core.DocumentTypeReceipt)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.JSONEq(t, `{"document_type":"receipt","text":"TOTAL 5"}`, res.Data)

	res, err = ex.Extract(context.Background(), "", core.DocumentTypeReceipt)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2, ex.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	_, err := p.OCR().Process(context.Background(), []byte{1}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, 1, p.GetMockOCR().CallCount())
	assert.Zero(t, p.GetMockExtractor().CallCount())
	assert.NoError(t, p.Close())
}
