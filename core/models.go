package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for documents and stored results.
type ID uint64

// IDFromContent generates a deterministic ID from raw content using BLAKE2b hashing.
// Identical bytes always produce identical IDs.
func IDFromContent(data []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String returns the ID as fixed-width hex.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// InputKind describes how a Request's payload is encoded.
type InputKind int

const (
	// InputKindImage is raw image or PDF bytes.
	InputKindImage InputKind = iota + 1
	// InputKindDataURI is an already classified data: URI.
	InputKindDataURI
	// InputKindText is plain text that skips OCR.
	InputKindText
)

func (k InputKind) String() string {
	switch k {
	case InputKindImage:
		return "image"
	case InputKindDataURI:
		return "data-uri"
	case InputKindText:
		return "text"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

// ParseInputKind is the inverse of InputKind.String.
func ParseInputKind(s string) (InputKind, error) {
	switch s {
	case "image":
		return InputKindImage, nil
	case "data-uri":
		return InputKindDataURI, nil
	case "text":
		return InputKindText, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidInputKind, s)
	}
}

// DocumentType is a hint passed to the extraction collaborator.
type DocumentType string

const (
	DocumentTypeCheck   DocumentType = "check"
	DocumentTypeReceipt DocumentType = "receipt"
	DocumentTypeUnknown DocumentType = "unknown"
)

// Document is a classified binary payload ready for OCR.
type Document struct {
	ID       ID
	MimeType string
	Data     []byte
}

// Request is a unit of work submitted to the orchestrator.
type Request struct {
	ID           string
	Input        []byte
	Kind         InputKind
	MimeHint     string       // Optional; skips classification when set
	Prompt       string       // Optional directive for the collaborators
	DocumentType DocumentType // Optional extraction hint
	Priority     int          // Lower values are served first
	Metadata     map[string]string
}

// Usage is the model and token accounting reported by a collaborator.
type Usage struct {
	Model       string `json:"model"`
	TotalTokens int    `json:"total_tokens"`
}

// Result is produced exactly once per accepted Request.
type Result struct {
	RequestID string        `json:"request_id"`
	Success   bool          `json:"success"`
	Payload   string        `json:"payload,omitempty"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	Usage     Usage         `json:"usage"`
	Err       error         `json:"-"`
}

// RequestState tracks a Request through the orchestrator.
type RequestState int32

const (
	StateReceived RequestState = iota
	StateDispatched
	StateSucceeded
	StateFailed
)

func (s RequestState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateDispatched:
		return "dispatched"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("RequestState(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are allowed.
func (s RequestState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ProgressStatus is the lifecycle stage reported by a progress event.
type ProgressStatus int

const (
	ProgressStarted ProgressStatus = iota + 1
	ProgressCompleted
	ProgressFailed
)

func (s ProgressStatus) String() string {
	switch s {
	case ProgressStarted:
		return "started"
	case ProgressCompleted:
		return "completed"
	case ProgressFailed:
		return "failed"
	default:
		return fmt.Sprintf("ProgressStatus(%d)", int(s))
	}
}

// Progress is emitted in pairs per item: Started, then Completed or Failed.
type Progress[T any] struct {
	Status ProgressStatus
	Item   T
	Err    error
}

// PipelineStatistics is an observational snapshot of running counters.
type PipelineStatistics struct {
	Timestamp   time.Time `json:"timestamp"`
	Succeeded   int64     `json:"succeeded"`
	Failed      int64     `json:"failed"`
	Total       int64     `json:"total"`
	SuccessRate float64   `json:"success_rate"`
}

// NewPipelineStatistics derives totals and success rate from raw counts.
func NewPipelineStatistics(ts time.Time, succeeded, failed int64) PipelineStatistics {
	total := succeeded + failed
	rate := 0.0
	if total > 0 {
		rate = float64(succeeded) / float64(total)
	}
	return PipelineStatistics{
		Timestamp:   ts,
		Succeeded:   succeeded,
		Failed:      failed,
		Total:       total,
		SuccessRate: rate,
	}
}

// ResultRecord is the persisted form of a processed document.
type ResultRecord struct {
	Id           ID
	RequestID    string
	DocumentID   ID
	MimeType     string
	DocumentType DocumentType
	Text         string  // OCR output
	Payload      string  // Structured extraction output (JSON)
	Confidence   float64 // Extraction confidence, 0..1
	Success      bool
	Error        string
	Model        string
	TotalTokens  int
	Elapsed      time.Duration
	InsertedAt   time.Time
	Metadata     map[string]string
}
