package mime

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/valyala/bytebufferpool"
)

const (
	dataURIScheme = "data:"
	base64Marker  = ";base64,"
)

// EncodeDataURI renders data as "data:<label>;base64,<payload>". The encoding
// is staged in a pooled buffer so large images do not churn the heap.
func EncodeDataURI(label string, data []byte) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString(dataURIScheme)
	buf.WriteString(label)
	buf.WriteString(base64Marker)

	start := buf.Len()
	buf.B = grow(buf.B, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(buf.B[start:], data)

	return buf.String()
}

// Payload is a decoded data URI. Its bytes live in a pooled buffer that must
// be returned with Release once the caller is done with them.
type Payload struct {
	MimeType string
	buf      *bytebufferpool.ByteBuffer
}

// Bytes returns the decoded content. The slice is invalid after Release.
func (p *Payload) Bytes() []byte {
	if p.buf == nil {
		return nil
	}
	return p.buf.B
}

// Release returns the staging buffer to the pool. It is safe to call twice.
func (p *Payload) Release() {
	if p.buf != nil {
		bytebufferpool.Put(p.buf)
		p.buf = nil
	}
}

// ParseDataURI decodes a base64 data URI.
func ParseDataURI(uri string) (*Payload, error) {
	rest, ok := strings.CutPrefix(uri, dataURIScheme)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q scheme", ErrInvalidDataURI, dataURIScheme)
	}
	label, encoded, ok := strings.Cut(rest, base64Marker)
	if !ok {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	if label == "" {
		return nil, fmt.Errorf("%w: missing media type", ErrInvalidDataURI)
	}

	buf := bytebufferpool.Get()
	buf.B = grow(buf.B, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(buf.B, []byte(encoded))
	if err != nil {
		bytebufferpool.Put(buf)
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataURI, err)
	}
	buf.B = buf.B[:n]

	return &Payload{MimeType: label, buf: buf}, nil
}

// grow extends b by n bytes, reusing spare capacity when possible.
func grow(b []byte, n int) []byte {
	need := len(b) + n
	if cap(b) >= need {
		return b[:need]
	}
	nb := make([]byte, need, need+need/4)
	copy(nb, b)
	return nb
}
