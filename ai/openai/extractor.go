package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxParseAttempts is how many times a malformed JSON answer is re-requested.
const maxParseAttempts = 3

// Extractor implements ai.Extractor using OpenAI-compatible chat APIs.
type Extractor struct {
	client        llms.Model
	model         string
	minConfidence float64
	timeout       time.Duration
	logger        *slog.Logger
}

// extraction is the structure expected from the model.
type extraction struct {
	Confidence float64         `json:"confidence"`
	Fields     json.RawMessage `json:"fields"`
}

// newExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newExtractor(config *ai.Config) (*Extractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ExtractionHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ExtractionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		client:        client,
		model:         config.ExtractionModel,
		minConfidence: config.MinConfidence,
		timeout:       config.RequestTimeout,
		logger:        slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewExtractor creates a new extractor using the provided configuration.
//
// Returns ai.Extractor interface to enforce abstraction.
func NewExtractor(config *ai.Config) (ai.Extractor, error) {
	return newExtractor(config)
}

// Extract asks the model for the fields of docType found in text.
func (e *Extractor) Extract(ctx context.Context, text string, docType core.DocumentType) (*ai.ExtractionResult, error) {
	start := time.Now()
	text = normalizeText(text)
	if text == "" {
		return &ai.ExtractionResult{Error: "no text to extract from", Model: e.model}, nil
	}
	if docType == "" {
		docType = core.DocumentTypeUnknown
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildExtractionPrompt(docType))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(text)},
		},
	}

	// Try up to maxParseAttempts times in case of malformed JSON
	var result extraction
	var lastErr error
	tokens := 0
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, ctxErr
			}
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, &core.TransientError{Op: "extract", Err: err}
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			lastErr = errors.New("no choices returned from model")
			continue
		}

		choice := response.Choices[0]
		tokens += totalTokens(choice.GenerationInfo)

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(choice.Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extraction response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	out := &ai.ExtractionResult{
		Model:       e.model,
		TotalTokens: tokens,
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extraction response after retries", "err", lastErr)
		out.Error = fmt.Sprintf("unparseable extraction response: %v", lastErr)
		out.ProcessingTimeMs = time.Since(start).Milliseconds()
		return out, nil
	}

	out.Confidence = result.Confidence
	if len(result.Fields) > 0 && string(result.Fields) != "null" {
		out.Data = string(result.Fields)
	}
	switch {
	case out.Data == "":
		out.Error = "model returned no fields"
	case result.Confidence < e.minConfidence:
		out.Error = fmt.Sprintf("confidence %.2f below threshold %.2f", result.Confidence, e.minConfidence)
	default:
		out.Success = true
	}

	e.logger.Debug("extracted fields",
		"docType", docType,
		"confidence", result.Confidence,
		"success", out.Success)
	out.ProcessingTimeMs = time.Since(start).Milliseconds()
	return out, nil
}
