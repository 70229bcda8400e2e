package mime

import "fmt"

// Signature is a leading-byte pattern and the MIME label it identifies.
type Signature struct {
	Bytes []byte
	Label string
}

// Labels for the default signature table.
const (
	LabelJPEG = "image/jpeg"
	LabelPNG  = "image/png"
	LabelGIF  = "image/gif"
	LabelBMP  = "image/bmp"
	LabelWEBP = "image/webp"
	LabelTIFF = "image/tiff"
	LabelICO  = "image/x-icon"
	LabelPDF  = "application/pdf"
)

// DefaultSignatures is the seed table for document images.
var DefaultSignatures = []Signature{
	{Bytes: []byte{0xFF, 0xD8, 0xFF}, Label: LabelJPEG},
	{Bytes: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, Label: LabelPNG},
	{Bytes: []byte("GIF87a"), Label: LabelGIF},
	{Bytes: []byte("GIF89a"), Label: LabelGIF},
	{Bytes: []byte{0x42, 0x4D}, Label: LabelBMP},
	{Bytes: []byte("RIFF"), Label: LabelWEBP},
	{Bytes: []byte{0x49, 0x49, 0x2A, 0x00}, Label: LabelTIFF},
	{Bytes: []byte{0x4D, 0x4D, 0x00, 0x2A}, Label: LabelTIFF},
	{Bytes: []byte{0x00, 0x00, 0x01, 0x00}, Label: LabelICO},
	{Bytes: []byte("%PDF"), Label: LabelPDF},
}

// NewTrieFromSignatures builds and freezes a trie from sigs. Any conflict
// aborts construction.
func NewTrieFromSignatures(sigs []Signature) (*Trie, error) {
	t := NewTrie()
	for _, sig := range sigs {
		if err := t.Add(sig.Bytes, sig.Label); err != nil {
			return nil, fmt.Errorf("register %s signature: %w", sig.Label, err)
		}
	}
	return t.Freeze(), nil
}

// NewDefaultTrie builds the trie for DefaultSignatures.
func NewDefaultTrie() (*Trie, error) {
	return NewTrieFromSignatures(DefaultSignatures)
}

// MustDefaultTrie is like NewDefaultTrie but panics on error.
func MustDefaultTrie() *Trie {
	t, err := NewDefaultTrie()
	if err != nil {
		panic(err)
	}
	return t
}
