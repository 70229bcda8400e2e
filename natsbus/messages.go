package natsbus

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/docpipe/core"
)

// RequestMessage is the wire form of a core.Request. Input is base64 in JSON.
type RequestMessage struct {
	ID           string            `json:"id,omitempty"`
	Input        []byte            `json:"input"`
	Kind         string            `json:"kind"`
	MimeHint     string            `json:"mime_hint,omitempty"`
	Prompt       string            `json:"prompt,omitempty"`
	DocumentType string            `json:"document_type,omitempty"`
	Priority     int               `json:"priority,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Ack is the reply sent to requests that carry a reply subject.
type Ack struct {
	ID       string `json:"id,omitempty"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// NewRequestMessage converts a request for publishing.
func NewRequestMessage(req *core.Request) RequestMessage {
	return RequestMessage{
		ID:           req.ID,
		Input:        req.Input,
		Kind:         req.Kind.String(),
		MimeHint:     req.MimeHint,
		Prompt:       req.Prompt,
		DocumentType: string(req.DocumentType),
		Priority:     req.Priority,
		Metadata:     req.Metadata,
	}
}

// Request converts the message back. Validation is left to the orchestrator.
func (m RequestMessage) Request() (*core.Request, error) {
	kind, err := core.ParseInputKind(m.Kind)
	if err != nil {
		return nil, err
	}
	return &core.Request{
		ID:           m.ID,
		Input:        m.Input,
		Kind:         kind,
		MimeHint:     m.MimeHint,
		Prompt:       m.Prompt,
		DocumentType: core.DocumentType(m.DocumentType),
		Priority:     m.Priority,
		Metadata:     m.Metadata,
	}, nil
}

// DecodeRequest parses a request message payload.
func DecodeRequest(data []byte) (*core.Request, error) {
	var m RequestMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return m.Request()
}
