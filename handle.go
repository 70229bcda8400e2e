package docpipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/mime"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/storage"
)

// Handler exposes Handle as a pipeline node for the orchestrator and builder.
func (e *Engine) Handler() pipeline.Node[*core.Request, *core.Result] {
	return pipeline.NodeFunc[*core.Request, *core.Result](e.Handle)
}

// ProcessImage classifies, recognizes, extracts and stores one document.
func (e *Engine) ProcessImage(ctx context.Context, data []byte, docType core.DocumentType) (*core.Result, error) {
	return e.Handle(ctx, &core.Request{
		Input:        data,
		Kind:         core.InputKindImage,
		DocumentType: docType,
	})
}

// Handle runs one request: classify, OCR through the dispatcher, extract,
// then persist a core.ResultRecord. Text requests skip classification and OCR.
// A record is stored for failed extractions too.
func (e *Engine) Handle(ctx context.Context, req *core.Request) (*core.Result, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if err := core.ValidateRequest(req); err != nil {
		return nil, err
	}
	start := e.clock.Now()

	record := &core.ResultRecord{
		RequestID:    req.ID,
		DocumentType: req.DocumentType,
		Metadata:     req.Metadata,
	}
	if record.DocumentType == "" {
		record.DocumentType = core.DocumentTypeUnknown
	}

	var ocrTokens int
	switch req.Kind {
	case core.InputKindText:
		record.DocumentID = core.IDFromContent(req.Input)
		record.MimeType = "text/plain"
		record.Text = string(req.Input)
	default:
		doc, release, err := e.document(ctx, req)
		if err != nil {
			return nil, err
		}
		ocr, err := e.dispatcher.ProcessOne(ctx, doc)
		if err != nil {
			// A cancelled call may still be reading the buffer, so it is
			// left to the garbage collector.
			return nil, err
		}
		release()
		if ocr.IsEmpty() || ocr.Text == "" {
			return nil, fmt.Errorf("%w: document %s (%s)", ErrNoText, doc.ID, doc.MimeType)
		}
		record.DocumentID = doc.ID
		record.MimeType = doc.MimeType
		record.Text = ocr.Text
		record.Model = ocr.Model
		ocrTokens = ocr.TotalTokens
	}

	extraction, err := e.provider.Extractor().Extract(ctx, record.Text, record.DocumentType)
	if err != nil {
		return nil, err
	}
	e.fill(record, extraction, ocrTokens, start)

	if err := e.reuseRecord(ctx, record); err != nil {
		return nil, err
	}
	if _, err := e.repo.SaveResults(ctx, record); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}
	e.logger.Debug("document processed",
		"request", req.ID,
		"record", record.Id,
		"mimeType", record.MimeType,
		"success", record.Success)

	if !record.Success {
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, record.Error)
	}
	return &core.Result{
		RequestID: req.ID,
		Success:   true,
		Payload:   record.Payload,
		Elapsed:   record.Elapsed,
		Usage:     core.Usage{Model: record.Model, TotalTokens: record.TotalTokens},
	}, nil
}

// document resolves a request's input into a classified document. The
// returned release func must be called once the bytes are no longer needed.
func (e *Engine) document(ctx context.Context, req *core.Request) (core.Document, func(), error) {
	noop := func() {}

	switch req.Kind {
	case core.InputKindDataURI:
		payload, err := mime.ParseDataURI(string(req.Input))
		if err != nil {
			return core.Document{}, noop, err
		}
		data := payload.Bytes()
		doc := core.Document{ID: core.IDFromContent(data), MimeType: payload.MimeType, Data: data}
		if err := core.ValidateDocument(doc); err != nil {
			payload.Release()
			return core.Document{}, noop, err
		}
		return doc, payload.Release, nil

	default:
		if req.MimeHint != "" {
			return core.Document{ID: core.IDFromContent(req.Input), MimeType: req.MimeHint, Data: req.Input}, noop, nil
		}
		doc, err := e.classifier.ClassifyDocument(ctx, req.Input)
		return doc, noop, err
	}
}

func (e *Engine) fill(record *core.ResultRecord, extraction *ai.ExtractionResult, ocrTokens int, start time.Time) {
	record.Payload = extraction.Data
	record.Confidence = extraction.Confidence
	record.Success = extraction.Success
	record.Error = extraction.Error
	if record.Model == "" {
		record.Model = extraction.Model
	}
	record.TotalTokens = ocrTokens + extraction.TotalTokens
	record.Elapsed = e.clock.Now().Sub(start)
	if !record.Success && record.Error == "" {
		record.Error = fmt.Sprintf("confidence %.2f below threshold", extraction.Confidence)
	}
}

// reuseRecord points record at the one already stored for its request, so
// handling a request again replaces its result instead of adding another.
func (e *Engine) reuseRecord(ctx context.Context, record *core.ResultRecord) error {
	if record.RequestID == "" {
		return nil
	}
	existing, err := e.repo.GetResultByRequestID(ctx, record.RequestID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up result: %w", err)
	}
	record.Id = existing.Id
	return nil
}
