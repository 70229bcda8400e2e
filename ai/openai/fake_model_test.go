package openai

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// fakeModel replays canned responses and records the messages it was sent.
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     [][]llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := ""
	if len(f.responses) > 0 {
		content = f.responses[0]
		if len(f.responses) > 1 {
			f.responses = f.responses[1:]
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:        content,
			GenerationInfo: map[string]any{"TotalTokens": 42},
		}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testOCR(model llms.Model) *OCR {
	return &OCR{client: model, model: "vision-test", logger: slog.Default()}
}

func testExtractor(model llms.Model) *Extractor {
	return &Extractor{client: model, model: "chat-test", minConfidence: 0.5, logger: slog.Default()}
}
