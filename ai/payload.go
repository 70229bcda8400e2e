// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/poiesic/docpipe/mime"
)

// PayloadKind is the wire discriminator of a DocumentPayload.
type PayloadKind string

const (
	PayloadImageURL    PayloadKind = "image_url"
	PayloadDocumentURL PayloadKind = "document_url"
)

// ErrUnknownPayloadKind is returned when decoding a payload with an unrecognized type.
var ErrUnknownPayloadKind = errors.New("unknown document payload type")

// DocumentPayload is how a classified document is handed to a vision model.
// The set of variants is closed: ImageURL and DocumentURL.
type DocumentPayload interface {
	Kind() PayloadKind
	isDocumentPayload()
}

// ImageURL carries a raster image as a data URI.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// DocumentURL carries a paged document (PDF) as a data URI.
type DocumentURL struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

func (ImageURL) Kind() PayloadKind    { return PayloadImageURL }
func (DocumentURL) Kind() PayloadKind { return PayloadDocumentURL }

func (ImageURL) isDocumentPayload()    {}
func (DocumentURL) isDocumentPayload() {}

// NewDocumentPayload picks the payload variant for mimeType.
func NewDocumentPayload(data []byte, mimeType string) DocumentPayload {
	uri := mime.EncodeDataURI(mimeType, data)
	if mimeType == mime.LabelPDF {
		return DocumentURL{URL: uri, MimeType: mimeType}
	}
	return ImageURL{URL: uri, Detail: "high"}
}

type payloadEnvelope struct {
	Type     PayloadKind `json:"type"`
	URL      string      `json:"url"`
	Detail   string      `json:"detail,omitempty"`
	MimeType string      `json:"mime_type,omitempty"`
}

// MarshalPayload encodes p with its "type" discriminator.
func MarshalPayload(p DocumentPayload) ([]byte, error) {
	env := payloadEnvelope{Type: p.Kind()}
	switch v := p.(type) {
	case ImageURL:
		env.URL, env.Detail = v.URL, v.Detail
	case DocumentURL:
		env.URL, env.MimeType = v.URL, v.MimeType
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownPayloadKind, p)
	}
	return json.Marshal(env)
}

// UnmarshalPayload decodes a payload written by MarshalPayload.
func UnmarshalPayload(data []byte) (DocumentPayload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode document payload: %w", err)
	}
	switch env.Type {
	case PayloadImageURL:
		return ImageURL{URL: env.URL, Detail: env.Detail}, nil
	case PayloadDocumentURL:
		return DocumentURL{URL: env.URL, MimeType: env.MimeType}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPayloadKind, env.Type)
	}
}
