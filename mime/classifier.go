package mime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docpipe/core"
)

// previewBytes is how many leading bytes are quoted in detection errors.
const previewBytes = 8

// Classifier is the canonical first pipeline stage. It satisfies
// pipeline.Node[[]byte, string] through Process.
type Classifier struct {
	trie      *Trie
	supported string
	logger    *slog.Logger
}

// NewClassifier creates a classifier over a constructed trie.
func NewClassifier(trie *Trie, logger *slog.Logger) (*Classifier, error) {
	if trie == nil {
		return nil, ErrTrieRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		trie:      trie,
		supported: strings.Join(trie.Labels(), ", "),
		logger:    logger.With("component", "mime-classifier"),
	}, nil
}

// Detect returns the MIME label for data. Undetectable data yields a
// *core.ValidationError that lists every recognized label.
func (c *Classifier) Detect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", core.NewValidationError("data", "data cannot be empty")
	}
	label, ok := c.trie.Search(data)
	if !ok {
		c.logger.Debug("no signature matched", "length", len(data))
		return "", &core.ValidationError{
			Field: "data",
			Reason: fmt.Sprintf("unrecognized signature in %d-byte buffer starting % X; supported types: %s",
				len(data), data[:min(len(data), previewBytes)], c.supported),
			Err: core.ErrUnsupportedMime,
		}
	}
	return label, nil
}

// Process classifies data and returns it as a data URI.
func (c *Classifier) Process(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	label, err := c.Detect(data)
	if err != nil {
		return "", err
	}
	return EncodeDataURI(label, data), nil
}

// ClassifyDocument classifies data and returns a core.Document. The document
// references data without copying it.
func (c *Classifier) ClassifyDocument(ctx context.Context, data []byte) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	label, err := c.Detect(data)
	if err != nil {
		return core.Document{}, err
	}
	return core.Document{
		ID:       core.IDFromContent(data),
		MimeType: label,
		Data:     data,
	}, nil
}
