package mime

import (
	"slices"

	"github.com/poiesic/docpipe/core"
)

// Trie is a byte-prefix tree mapping signatures to MIME labels.
//
// Add is not safe for concurrent use. Once construction is finished the trie
// should be frozen; after that Search and Labels may be called from any
// number of goroutines.
type Trie struct {
	root     *trieNode
	labels   map[string]struct{}
	maxDepth int
	frozen   bool
}

type trieNode struct {
	children map[byte]*trieNode
	label    string
}

// NewTrie creates an empty trie.
func NewTrie() *Trie {
	return &Trie{
		root:   &trieNode{},
		labels: make(map[string]struct{}),
	}
}

// Add registers label for signature. Re-adding an identical pair is a no-op;
// adding a different label for an existing signature returns a
// *core.SignatureConflictError naming both labels.
func (t *Trie) Add(signature []byte, label string) error {
	if len(signature) == 0 {
		return core.NewValidationError("signature", "signature cannot be empty")
	}
	if label == "" {
		return core.NewValidationError("label", "label cannot be empty")
	}
	if t.frozen {
		return ErrTrieFrozen
	}

	node := t.root
	for _, b := range signature {
		if node.children == nil {
			node.children = make(map[byte]*trieNode)
		}
		next, ok := node.children[b]
		if !ok {
			next = &trieNode{}
			node.children[b] = next
		}
		node = next
	}

	if node.label != "" {
		if node.label == label {
			return nil
		}
		return &core.SignatureConflictError{
			Signature:   slices.Clone(signature),
			Existing:    node.label,
			Conflicting: label,
		}
	}

	node.label = label
	t.labels[label] = struct{}{}
	if len(signature) > t.maxDepth {
		t.maxDepth = len(signature)
	}
	return nil
}

// Search returns the label of the longest registered signature that is a
// prefix of data. The walk stops at the first byte without a matching edge,
// so its cost is bounded by the longest signature, not by len(data).
func (t *Trie) Search(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}

	var best string
	node := t.root
	for _, b := range data {
		next, ok := node.children[b]
		if !ok {
			break
		}
		node = next
		if node.label != "" {
			best = node.label
		}
	}
	return best, best != ""
}

// Labels returns the distinct registered labels in sorted order.
func (t *Trie) Labels() []string {
	labels := make([]string, 0, len(t.labels))
	for l := range t.labels {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	return labels
}

// MaxSignatureLen returns the length of the longest registered signature.
func (t *Trie) MaxSignatureLen() int {
	return t.maxDepth
}

// Freeze makes the trie read-only. Subsequent Add calls return ErrTrieFrozen.
func (t *Trie) Freeze() *Trie {
	t.frozen = true
	return t
}
