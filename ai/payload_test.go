package ai

import (
	"strings"
	"testing"

	"github.com/poiesic/docpipe/mime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentPayload_PicksVariant(t *testing.T) {
	img := NewDocumentPayload([]byte{0xFF, 0xD8, 0xFF}, mime.LabelJPEG)
	require.IsType(t, ImageURL{}, img)
	assert.Equal(t, PayloadImageURL, img.Kind())
	assert.True(t, strings.HasPrefix(img.(ImageURL).URL, "data:image/jpeg;base64,"))

	pdf := NewDocumentPayload([]byte("%PDF-1.7"), mime.LabelPDF)
	require.IsType(t, DocumentURL{}, pdf)
	assert.Equal(t, PayloadDocumentURL, pdf.Kind())
	assert.Equal(t, mime.LabelPDF, pdf.(DocumentURL).MimeType)
}

func TestPayloadWireFormat(t *testing.T) {
	data, err := MarshalPayload(DocumentURL{URL: "data:application/pdf;base64,JVBERg==", MimeType: mime.LabelPDF})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"document_url","url":"data:application/pdf;base64,JVBERg==","mime_type":"application/pdf"}`, string(data))

	decoded, err := UnmarshalPayload(data)
	require.NoError(t, err)
	assert.Equal(t, DocumentURL{URL: "data:application/pdf;base64,JVBERg==", MimeType: mime.LabelPDF}, decoded)
}

func TestUnmarshalPayload_UnknownType(t *testing.T) {
	_, err := UnmarshalPayload([]byte(`{"type":"audio_url","url":"x"}`))
	assert.ErrorIs(t, err, ErrUnknownPayloadKind)

	_, err = UnmarshalPayload([]byte(`not json`))
	assert.Error(t, err)
}

func TestOCRResult_IsEmpty(t *testing.T) {
	var nilResult *OCRResult
	assert.True(t, nilResult.IsEmpty())
	assert.True(t, EmptyOCRResult.IsEmpty())
	assert.False(t, (&OCRResult{}).IsEmpty(), "only the sentinel counts as empty")
}
