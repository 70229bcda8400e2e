package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/mime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OCR implements ai.OCRProcessor using an OpenAI-compatible vision model.
type OCR struct {
	client  llms.Model
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// newOCR is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newOCR(config *ai.Config) (*OCR, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.OCRHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.OCRModel),
	)
	if err != nil {
		return nil, err
	}

	return &OCR{
		client:  client,
		model:   config.OCRModel,
		timeout: config.RequestTimeout,
		logger:  slog.Default().With("component", "openai-ocr"),
	}, nil
}

// NewOCR creates a new OCR processor using the provided configuration.
//
// Returns ai.OCRProcessor interface to enforce abstraction.
func NewOCR(config *ai.Config) (ai.OCRProcessor, error) {
	return newOCR(config)
}

// Process sends data to the vision model and returns the recognized text.
func (o *OCR) Process(ctx context.Context, data []byte, mimeType string) (*ai.OCRResult, error) {
	if len(data) == 0 {
		return nil, core.NewValidationError("data", "data cannot be empty")
	}
	if mimeType == "" {
		return nil, core.NewValidationError("mimeType", "mime type cannot be empty")
	}

	part, err := contentPart(ai.NewDocumentPayload(data, mimeType))
	if err != nil {
		return nil, err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(ocrSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{part, llms.TextPart(ocrUserPrompt)},
		},
	}

	o.logger.Debug("requesting ocr", "mime", mimeType, "bytes", len(data))
	start := time.Now()
	response, err := o.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		o.logger.Error("ocr request failed", "err", err)
		return nil, &core.TransientError{Op: "ocr", Err: err}
	}

	if len(response.Choices) < 1 {
		return nil, &core.TransientError{Op: "ocr", Err: errors.New("no choices returned from model")}
	}
	choice := response.Choices[0]

	return &ai.OCRResult{
		Text:           normalizeText(choice.Content),
		Model:          o.model,
		TotalTokens:    totalTokens(choice.GenerationInfo),
		ProcessingTime: elapsed,
	}, nil
}

// contentPart renders a payload for the chat API. The switch covers every
// ai.DocumentPayload variant.
func contentPart(p ai.DocumentPayload) (llms.ContentPart, error) {
	switch v := p.(type) {
	case ai.ImageURL:
		return llms.ImageURLPart(v.URL), nil
	case ai.DocumentURL:
		payload, err := mime.ParseDataURI(v.URL)
		if err != nil {
			return nil, err
		}
		defer payload.Release()
		data := make([]byte, len(payload.Bytes()))
		copy(data, payload.Bytes())
		return llms.BinaryPart(v.MimeType, data), nil
	default:
		return nil, fmt.Errorf("%w: %T", ai.ErrUnknownPayloadKind, p)
	}
}

// totalTokens reads the token count langchaingo reports in GenerationInfo.
func totalTokens(info map[string]any) int {
	switch v := info["TotalTokens"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
